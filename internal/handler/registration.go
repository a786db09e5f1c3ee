package handler

import (
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/munreg/internal/receipt"
	"github.com/iliyamo/munreg/internal/service"
	"github.com/iliyamo/munreg/internal/validation"
)

// RegistrationHandler serves delegate registrations, their receipts and the
// exchange rate setting.
type RegistrationHandler struct {
	Registrations *service.RegistrationService
	Timeout       time.Duration
}

func NewRegistrationHandler(regs *service.RegistrationService, timeout time.Duration) *RegistrationHandler {
	return &RegistrationHandler{Registrations: regs, Timeout: timeout}
}

// Submit stores a registration. Receipt delivery problems do not fail it;
// the receipt can be downloaded later.
func (h *RegistrationHandler) Submit(c echo.Context) error {
	var in service.RegistrationInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := withTimeout(c, 4*h.Timeout)
	defer cancel()

	reg, err := h.Registrations.Submit(ctx, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, reg)
}

// Receipt renders the PDF receipt of a registration.
func (h *RegistrationHandler) Receipt(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	reg, doc, err := h.Registrations.Receipt(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	name := path.Base(receipt.RegistrationFileName(reg.ID, reg.CreatedAt))
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, "application/pdf", doc.PDF)
}

// List pages through registrations with ?size= and ?cursor=.
func (h *RegistrationHandler) List(c echo.Context) error {
	size, cursor, err := pageParams(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	page, err := h.Registrations.List(ctx, size, cursor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

type rateBody struct {
	Rate *float64 `json:"rate"`
}

func (h *RegistrationHandler) GetRate(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	rate, err := h.Registrations.GetRate(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rate": rate})
}

func (h *RegistrationHandler) SetRate(c echo.Context) error {
	var body rateBody
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	if body.Rate == nil {
		return respondError(c, validation.Errors{{Field: "rate", Message: "rate is required"}})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Registrations.SetRate(ctx, *body.Rate); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rate": *body.Rate})
}
