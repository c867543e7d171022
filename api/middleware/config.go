package middlewares

import (
	"github.com/labstack/echo/v4"

	"stac-validator/types/config"
)

func ConfigMiddleware(_config config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("Config", _config)

			return next(c)
		}
	}
}
