package model

import "time"

// Assignment statuses.
const (
	AssignmentCompleted = "completed"
	AssignmentFailed    = "failed"
)

// Step statuses.
const (
	StepDone    = "done"
	StepFailed  = "failed"
	StepSkipped = "skipped"
)

// StepResult records what one saga step committed.
type StepResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Assignment is the journal entry of one manual seat assignment, stored in
// the `assignments` collection whether it completed or not.
type Assignment struct {
	ID             string       `json:"id,omitempty"`
	CommitteeID    string       `json:"committeeId" validate:"required"`
	CommitteeName  string       `json:"committeeName" validate:"required"`
	SeatIndices    []int        `json:"seatIndices"`
	SeatLabels     []string     `json:"seatLabels"`
	RecipientName  string       `json:"recipientName"`
	RecipientEmail string       `json:"recipientEmail"`
	TransactionID  string       `json:"transactionId"`
	ReceiptPath    string       `json:"receiptPath,omitempty"`
	ReceiptURL     string       `json:"receiptUrl,omitempty"`
	Steps          []StepResult `json:"steps"`
	Status         string       `json:"status" validate:"oneof=completed failed"`
	FailedStep     string       `json:"failedStep,omitempty"`
	Error          string       `json:"error,omitempty"`
	OperatorID     string       `json:"operatorId,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}
