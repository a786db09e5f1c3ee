package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/munreg/internal/middleware"
	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/service"
	"github.com/iliyamo/munreg/internal/validation"
)

// UserHandler is the admin user directory.
type UserHandler struct {
	Users   *service.UserDirectory
	Timeout time.Duration
}

func NewUserHandler(users *service.UserDirectory, timeout time.Duration) *UserHandler {
	return &UserHandler{Users: users, Timeout: timeout}
}

type userListResp struct {
	Users        []model.Profile   `json:"users"`
	Stats        service.UserStats `json:"stats"`
	Institutions []string          `json:"institutions"`
}

// List filters with ?search=&role=&institution=&sort=. Stats and the
// institution list always cover every user.
func (h *UserHandler) List(c echo.Context) error {
	var q service.UserQuery
	if err := c.Bind(&q); err != nil {
		return badBody(c)
	}
	if err := validation.Struct(q); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	users, err := h.Users.List(ctx, q)
	if err != nil {
		return respondError(c, err)
	}
	stats, err := h.Users.Stats(ctx)
	if err != nil {
		return respondError(c, err)
	}
	inst, err := h.Users.Institutions(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, userListResp{Users: users, Stats: stats, Institutions: inst})
}

func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	p, err := h.Users.Get(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

type setAdminReq struct {
	IsAdmin *bool `json:"isAdmin"`
}

// SetAdmin grants or revokes the admin flag.
func (h *UserHandler) SetAdmin(c echo.Context) error {
	var req setAdminReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if req.IsAdmin == nil {
		return respondError(c, validation.Errors{{Field: "isAdmin", Message: "isAdmin is required"}})
	}
	if !*req.IsAdmin && isSelf(c) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot revoke your own admin role"})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Users.SetAdmin(ctx, c.Param("id"), *req.IsAdmin); err != nil {
		return respondError(c, err)
	}
	p, err := h.Users.Get(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Delete removes the profile and its account.
func (h *UserHandler) Delete(c echo.Context) error {
	if isSelf(c) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete your own account"})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Users.Delete(ctx, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func isSelf(c echo.Context) bool {
	uid, _ := c.Get(middleware.KeyUserID).(string)
	return uid != "" && uid == c.Param("id")
}
