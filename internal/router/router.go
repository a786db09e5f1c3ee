// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/munreg/internal/handler"
	"github.com/iliyamo/munreg/internal/metrics"
	"github.com/iliyamo/munreg/internal/middleware"
	"github.com/iliyamo/munreg/internal/storage"
)

// RegisterRoutes registers the probes and the metrics endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterFiles serves receipts written by the local storage driver.
func RegisterFiles(e *echo.Echo, dir string) {
	e.Static(storage.FilesRoute, dir)
}

// RegisterAuth registers session endpoints under /v1/auth and the
// authenticated /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/password-reset", a.PasswordReset)
	g.POST("/password-reset/confirm", a.PasswordResetConfirm)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the guest endpoints. Committee reads go through
// the response cache.
func RegisterPublic(e *echo.Echo, cm *handler.CommitteeHandler, r *handler.RegistrationHandler, cache, limit echo.MiddlewareFunc) {
	e.GET("/v1/committees", cm.List, cache)
	e.GET("/v1/committees/:id", cm.Get, cache)

	e.POST("/v1/registrations", r.Submit, limit)
	e.GET("/v1/registrations/:id/receipt", r.Receipt)
}
