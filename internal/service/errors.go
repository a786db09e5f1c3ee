// Package service holds the application workflows: the seat assignment saga
// and seat maintenance, accounts and sessions, registrations and the admin
// user directory.
package service

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/validation"
)

var (
	// ErrConfirmationRequired is matched by every *ConfirmationError.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrStaleRevision is returned when the caller acted on an outdated
	// committee snapshot.
	ErrStaleRevision = docstore.ErrStaleRevision

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// ConfirmationError asks the caller to repeat the request with explicit
// confirmation. Prompt is the question to show the operator.
type ConfirmationError struct {
	Prompt string
}

func (e *ConfirmationError) Error() string { return "confirmation required: " + e.Prompt }

func (e *ConfirmationError) Unwrap() error { return ErrConfirmationRequired }

// SagaError reports a seat assignment that stopped at step Failed. Steps
// holds the outcome of every step, so the caller can see what was committed.
type SagaError struct {
	Failed string
	Steps  []model.StepResult
	Err    error
}

func (e *SagaError) Error() string {
	return fmt.Sprintf("assignment failed at %s: %v", e.Failed, e.Err)
}

func (e *SagaError) Unwrap() error { return e.Err }

// invalid builds a single field validation error.
func invalid(field, msg string) error {
	return validation.Errors{{Field: field, Message: msg}}
}

func emailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return strings.ToLower(email[i+1:])
	}
	return ""
}

// splitName splits on the first space: "Ana María Ruiz" → "Ana", "María Ruiz".
func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	first, last, _ = strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}
