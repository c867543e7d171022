package middlewares

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"stac-validator/types/observability"
)

// MetricsMiddleware records every request under its route pattern, so
// /validations/:id is one series.
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var httpError *echo.HTTPError
				if errors.As(err, &httpError) {
					status = httpError.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			observability.RecordHTTPRequest(c.Request().Method, path, status, time.Since(start))

			return err
		}
	}
}
