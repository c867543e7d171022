package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"stac-validator/api/schemas"
	"stac-validator/types/config"
	"stac-validator/types/stac"
)

// @Summary Check service health
// @Description Responds with the service status, its version and the STAC versions it validates.
// @Tags health
// @Produce json
// @Success 200 {object} schemas.HealthOutputSchema
// @Router /health [get]
func HealthHandler(c echo.Context) error {
	version := config.VERSION
	if _config, ok := c.Get("Config").(config.Config); ok {
		version = _config.DNSSD.Version
	}

	return c.JSON(http.StatusOK, schemas.HealthOutputSchema{
		Status:       "OK",
		Version:      version,
		StacVersions: stac.SupportedVersions,
	})
}
