package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/munreg/internal/service"
	"github.com/iliyamo/munreg/internal/validation"
)

// CommitteeHandler serves committee reads and the seat workflows.
type CommitteeHandler struct {
	Seats   *service.SeatService
	Timeout time.Duration
	// AssignTimeout bounds the assignment saga, which renders, uploads and
	// mails before it writes.
	AssignTimeout time.Duration
	// OnChange runs after every successful seat write, e.g. to drop cached
	// public listings.
	OnChange func(ctx context.Context)
}

func NewCommitteeHandler(seats *service.SeatService, timeout time.Duration) *CommitteeHandler {
	return &CommitteeHandler{Seats: seats, Timeout: timeout, AssignTimeout: 4 * timeout}
}

func (h *CommitteeHandler) changed(ctx context.Context) {
	if h.OnChange != nil {
		h.OnChange(context.WithoutCancel(ctx))
	}
}

// List returns committees matching ?q= with their seat statistics and the
// aggregate over all committees.
func (h *CommitteeHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	ov, err := h.Seats.Overview(ctx, c.QueryParam("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ov)
}

func (h *CommitteeHandler) Get(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	cm, err := h.Seats.Get(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, service.CommitteeSummary{Committee: cm, Stats: cm.Stats()})
}

// Assign runs the manual assignment saga. Without "confirmed" the answer is
// 428 with the prompt to show the operator.
func (h *CommitteeHandler) Assign(c echo.Context) error {
	var req service.AssignRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.CommitteeID = c.Param("id")

	// once confirmed the saga runs to completion even if the client goes away
	timeout := h.AssignTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), timeout)
	defer cancel()

	res, err := h.Seats.Assign(ctx, req)
	if err != nil {
		return respondError(c, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusCreated, res)
}

// Toggle flips one seat. ?revision= guards against stale snapshots.
func (h *CommitteeHandler) Toggle(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return respondError(c, validation.Errors{{Field: "index", Message: "index must be an integer"}})
	}
	expected, err := revisionParam(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	cm, err := h.Seats.Toggle(ctx, c.Param("id"), index, expected)
	if err != nil {
		return respondError(c, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusOK, service.CommitteeSummary{Committee: cm, Stats: cm.Stats()})
}

type setAllReq struct {
	Available        *bool   `json:"available"`
	Confirmed        bool    `json:"confirmed"`
	ExpectedRevision *uint64 `json:"expectedRevision"`
}

// SetAll marks every seat of a committee available or occupied.
func (h *CommitteeHandler) SetAll(c echo.Context) error {
	var req setAllReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if req.Available == nil {
		return respondError(c, validation.Errors{{Field: "available", Message: "available is required"}})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	cm, err := h.Seats.SetAll(ctx, c.Param("id"), *req.Available, req.Confirmed, req.ExpectedRevision)
	if err != nil {
		return respondError(c, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusOK, service.CommitteeSummary{Committee: cm, Stats: cm.Stats()})
}
