package model

import "time"

// Request log statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RequestLog is an append-only fact about one remote call. Written once,
// never updated.
type RequestLog struct {
	ID           string         `json:"id,omitempty"`
	Service      string         `json:"service" validate:"required"`
	Operation    string         `json:"operation" validate:"required"`
	Status       string         `json:"status" validate:"oneof=success error"`
	DurationMs   int64          `json:"durationMs"`
	Metadata     map[string]any `json:"metadata"`
	ErrorMessage *string        `json:"errorMessage"`
	IPAddress    *string        `json:"ipAddress"`
	UserID       *string        `json:"userId"`
	UserAgent    string         `json:"userAgent"`
	PagePath     string         `json:"pagePath"`
	CreatedAt    time.Time      `json:"createdAt"`
}
