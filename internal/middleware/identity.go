package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/munreg/internal/metrics"
	"github.com/iliyamo/munreg/internal/telemetry"
)

// userID returns the authenticated subject, or "guest".
func userID(c echo.Context) string {
	if s, ok := c.Get(KeyUserID).(string); ok && s != "" {
		return s
	}
	return "guest"
}

// ClientContext records the caller's IP, user agent and path on the request
// context for the telemetry tracker.
func ClientContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := telemetry.WithClient(req.Context(), telemetry.ClientInfo{
				IP:        c.RealIP(),
				UserAgent: req.UserAgent(),
				Path:      req.URL.Path,
			})
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// Metrics observes every request by route template.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveHTTP(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}
