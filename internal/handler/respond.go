package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/logger"
	"github.com/iliyamo/munreg/internal/repository"
	"github.com/iliyamo/munreg/internal/service"
	"github.com/iliyamo/munreg/internal/validation"
)

// defaultTimeout bounds a request when the handler has none configured.
const defaultTimeout = 15 * time.Second

// maxPageSize caps the size query parameter of paginated listings.
const maxPageSize = 100

func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// respondError maps service errors onto HTTP statuses. Anything unknown is
// logged and reported as 500 without details.
func respondError(c echo.Context, err error) error {
	var (
		verrs   validation.Errors
		confirm *service.ConfirmationError
		saga    *service.SagaError
	)
	switch {
	case errors.As(err, &verrs):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": verrs})
	case errors.As(err, &confirm):
		return c.JSON(http.StatusPreconditionRequired, echo.Map{"error": "confirmation required", "prompt": confirm.Prompt})
	case errors.As(err, &saga):
		status := http.StatusBadGateway
		if errors.Is(err, service.ErrStaleRevision) {
			status = http.StatusConflict
		}
		return c.JSON(status, echo.Map{"error": saga.Error(), "failedStep": saga.Failed, "steps": saga.Steps})
	case errors.Is(err, service.ErrStaleRevision):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrAccountDisabled):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, docstore.ErrInvalidCursor), errors.Is(err, docstore.ErrInvalidField):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "request timed out"})
	}
	logger.For("http").WithError(err).WithField("path", c.Path()).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// pageParams reads ?size= and ?cursor=. Size is clamped to maxPageSize and
// zero leaves the store default.
func pageParams(c echo.Context) (int, string, error) {
	size := 0
	if raw := c.QueryParam("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, "", validation.Errors{{Field: "size", Message: "size must be a positive integer"}}
		}
		size = min(n, maxPageSize)
	}
	return size, c.QueryParam("cursor"), nil
}

// revisionParam reads an optional expected revision from ?revision=.
func revisionParam(c echo.Context) (*uint64, error) {
	raw := c.QueryParam("revision")
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, validation.Errors{{Field: "revision", Message: "revision must be a non-negative integer"}}
	}
	return &n, nil
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
}
