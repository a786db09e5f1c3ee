package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/munreg/internal/handler"
	"github.com/iliyamo/munreg/internal/middleware"
	"github.com/iliyamo/munreg/internal/model"
)

// Admin bundles the handlers behind /v1/admin.
type Admin struct {
	Committees    *handler.CommitteeHandler
	Users         *handler.UserHandler
	Registrations *handler.RegistrationHandler
	Audit         *handler.AuditHandler
}

// RegisterAdmin registers ADMIN-scoped endpoints. Every route needs a valid
// JWT with the admin role and is rate limited per operator.
func RegisterAdmin(e *echo.Echo, a Admin, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		limit,
	)

	// ---- Committees ----
	g.GET("/committees", a.Committees.List)
	g.GET("/committees/:id", a.Committees.Get)
	g.POST("/committees/:id/assignments", a.Committees.Assign)
	g.POST("/committees/:id/seats/:index/toggle", a.Committees.Toggle)
	g.PUT("/committees/:id/seats", a.Committees.SetAll)

	// ---- Users ----
	g.GET("/users", a.Users.List)
	g.GET("/users/:id", a.Users.Get)
	g.PUT("/users/:id/admin", a.Users.SetAdmin)
	g.DELETE("/users/:id", a.Users.Delete)

	// ---- Registrations ----
	g.GET("/registrations", a.Registrations.List)
	g.GET("/config/rate", a.Registrations.GetRate)
	g.PUT("/config/rate", a.Registrations.SetRate)

	// ---- Audit ----
	g.GET("/request-logs", a.Audit.RequestLogs)
	g.GET("/assignments", a.Audit.Assignments)
}
