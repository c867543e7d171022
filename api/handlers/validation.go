package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/xeipuuv/gojsonschema"

	"stac-validator/api/schemas"
	"stac-validator/types/config"
	"stac-validator/types/dataclasses"
	"stac-validator/types/helpers"
	"stac-validator/types/registries"
	"stac-validator/types/stac"
	"stac-validator/types/validators"
)

func errorResponse(c echo.Context, status int, err error) error {
	return c.JSON(status, schemas.ErrorOutputSchema{Error: err.Error()})
}

// ValidateHandler returns an HTTP handler function that validates the STAC
// object named or carried by the request body and stores the Report.
//
// Parameters:
//   - validator: the STAC validator runs are executed with.
//   - schemaValidator: compiles the request body schema.
//   - reports: keeps finished Reports for GET /validations/:id.
//   - defaults: Options applied where the request leaves a field out.
//
// Returns:
//   - An echo.HandlerFunc responding with the Report, 400 for a malformed
//     request or a location the server does not read, and 502 when the
//     object or its schemas could not be fetched.
//
// @Summary Validate a STAC object
// @Tags validation
// @Accept json
// @Produce json
// @Param input body schemas.ValidateInputSchema true "Validation request"
// @Success 200 {object} dataclasses.Report
// @Failure 400 {object} schemas.ErrorOutputSchema
// @Failure 502 {object} schemas.ErrorOutputSchema
// @Router /validate [post]
func ValidateHandler(
	validator *stac.Validator,
	schemaValidator *validators.JSONSchemaValidator,
	reports *registries.ValidationRegistry,
	defaults stac.Options,
) echo.HandlerFunc {
	requestSchema, _, err := schemaValidator.ValidateSchemaString(schemas.ValidateRequestSchema)
	if err != nil {
		panic(err)
	}

	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, err)
		}

		result, err := requestSchema.Validate(gojsonschema.NewBytesLoader(body))
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, fmt.Errorf("request body is not JSON: %w", err))
		}
		if !result.Valid() {
			return errorResponse(c, http.StatusBadRequest, fmt.Errorf("invalid request: %s", result.Errors()[0]))
		}

		var input schemas.ValidateInputSchema
		if err := json.Unmarshal(body, &input); err != nil {
			return errorResponse(c, http.StatusBadRequest, err)
		}

		options := input.Options(defaults)
		if err := options.Check(); err != nil {
			return errorResponse(c, http.StatusBadRequest, err)
		}
		if err := checkLocations(validator, &input, options); err != nil {
			return errorResponse(c, http.StatusBadRequest, err)
		}

		ctx := c.Request().Context()
		var report *dataclasses.Report
		if input.URL != "" {
			report = validator.Validate(ctx, input.URL, options)
		} else {
			report = validator.ValidateDocument(ctx, input.DocumentLocation(), input.Document, options)
		}

		if err := reports.Add(report); err != nil {
			config.GetLogger().Errorf("Failed to store report %s: %v", report.GetId(), err)
		}

		if message, failed := upstreamFailure(report); failed {
			return c.JSON(http.StatusBadGateway, schemas.ErrorOutputSchema{
				Error:    message,
				ReportID: report.GetId(),
			})
		}

		return c.JSON(http.StatusOK, report)
	}
}

// checkLocations rejects object and custom schema locations no fetcher of
// the server reads, e.g. local paths when no files root is configured.
func checkLocations(validator *stac.Validator, input *schemas.ValidateInputSchema, options stac.Options) error {
	base := input.URL
	if base == "" {
		base = input.DocumentLocation()
	} else if !validator.Supports(base) {
		return fmt.Errorf("location %s is not readable by this server", base)
	}

	if options.Mode == dataclasses.ValidationMethodCustom {
		custom := helpers.ResolveLocation(helpers.StripFragment(base), options.CustomSchema)
		if !validator.Supports(custom) {
			return fmt.Errorf("custom schema %s is not readable by this server", custom)
		}
	}
	return nil
}

// upstreamFailure reports whether the first object of the run could not be
// checked because something it depends on was unreachable.
func upstreamFailure(report *dataclasses.Report) (string, bool) {
	messages := report.GetMessages()
	if len(messages) == 0 {
		return "", false
	}

	switch messages[0].ErrorType {
	case dataclasses.ErrorTypeFetch, dataclasses.ErrorTypeRefResolution:
		return messages[0].ErrorMessage, true
	}
	return "", false
}

// ValidationHandler responds with a stored Report, 404 if the id is unknown.
//
// @Summary Get a validation report
// @Tags validation
// @Produce json
// @Param id path string true "Report id"
// @Success 200 {object} dataclasses.Report
// @Failure 404 {object} schemas.ErrorOutputSchema
// @Router /validations/{id} [get]
func ValidationHandler(reports *registries.ValidationRegistry) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")

		report, found := reports.Get(id)
		if !found {
			return errorResponse(c, http.StatusNotFound, fmt.Errorf("validation %s not found", id))
		}

		return c.JSON(http.StatusOK, report)
	}
}

// ValidationsHandler lists the Reports held in memory, oldest first.
func ValidationsHandler(reports *registries.ValidationRegistry) echo.HandlerFunc {
	return func(c echo.Context) error {
		all := reports.GetAll()

		list := make([]*dataclasses.Report, 0, len(all))
		for _, report := range all {
			list = append(list, report)
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].StartedAt.Before(list[j].StartedAt)
		})

		return c.JSON(http.StatusOK, list)
	}
}
