package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"stac-validator/api/schemas"
	"stac-validator/types/registries"
	"stac-validator/types/validators"
)

// SchemasHandler returns an HTTP handler function that lists every schema
// document the registry holds, sorted by URI.
//
// @Summary List known schemas
// @Tags schemas
// @Produce json
// @Success 200 {array} schemas.SchemaOutputSchema
// @Router /schemas [get]
func SchemasHandler(registry *registries.SchemaRegistry) echo.HandlerFunc {
	return func(c echo.Context) error {
		documents := registry.GetAll()

		output := make([]schemas.SchemaOutputSchema, 0, len(documents))
		for uri, document := range documents {
			output = append(output, schemas.NewSchemaOutputSchema(document, registry.FetchCount(uri)))
		}
		sort.Slice(output, func(i, j int) bool {
			return output[i].URI < output[j].URI
		})

		return c.JSON(http.StatusOK, output)
	}
}

// SchemaGraphHandler resolves the reference graph below ?uri=.
//
// @Summary Resolve a schema reference graph
// @Tags schemas
// @Produce json
// @Param uri query string true "Root schema URI"
// @Success 200 {object} schemas.GraphOutputSchema
// @Failure 400 {object} schemas.ErrorOutputSchema
// @Failure 502 {object} schemas.ErrorOutputSchema
// @Router /schemas/graph [get]
func SchemaGraphHandler(schemaValidator *validators.JSONSchemaValidator) echo.HandlerFunc {
	return func(c echo.Context) error {
		uri := c.QueryParam("uri")
		if uri == "" {
			return errorResponse(c, http.StatusBadRequest, errors.New("uri query parameter is required"))
		}

		graph, err := schemaValidator.Graph(c.Request().Context(), uri)
		if err != nil {
			return errorResponse(c, http.StatusBadGateway, err)
		}

		return c.JSON(http.StatusOK, schemas.NewGraphOutputSchema(graph))
	}
}
