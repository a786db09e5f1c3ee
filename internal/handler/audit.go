package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/repository"
	"github.com/iliyamo/munreg/internal/validation"
)

// AuditHandler lists the request telemetry and the assignment journal.
type AuditHandler struct {
	Logs    *repository.RequestLogRepo
	Journal *repository.AssignmentRepo
	Timeout time.Duration
}

func NewAuditHandler(logs *repository.RequestLogRepo, journal *repository.AssignmentRepo, timeout time.Duration) *AuditHandler {
	return &AuditHandler{Logs: logs, Journal: journal, Timeout: timeout}
}

// RequestLogs pages through telemetry newest first. ?status= keeps only
// success or error entries.
func (h *AuditHandler) RequestLogs(c echo.Context) error {
	status := c.QueryParam("status")
	if err := validation.Var("status", status, "omitempty,oneof="+model.StatusSuccess+" "+model.StatusError); err != nil {
		return respondError(c, err)
	}
	size, cursor, err := pageParams(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	page, err := h.Logs.Page(ctx, size, cursor, status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Assignments pages through the assignment journal. ?status= keeps only
// completed or failed runs.
func (h *AuditHandler) Assignments(c echo.Context) error {
	status := c.QueryParam("status")
	if err := validation.Var("status", status, "omitempty,oneof="+model.AssignmentCompleted+" "+model.AssignmentFailed); err != nil {
		return respondError(c, err)
	}
	size, cursor, err := pageParams(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	page, err := h.Journal.Page(ctx, size, cursor, status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}
