package middleware

import (
	"strconv"
	"time"

	"errand-marketplace/internal/observability"

	"github.com/labstack/echo/v4"
)

// Metrics records request counts and latencies per route. The route
// template (not the raw URL) is used as the path label to keep
// cardinality bounded.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method

			observability.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
			observability.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
