// Package queue carries seat assignment events over RabbitMQ.
package queue

// DefaultQueue is the durable queue assignment events are published to.
const DefaultQueue = "seats.assigned"

// SeatsAssignedEvent is published after a manual assignment has been
// persisted. Consumers can log or notify without reading the store.
type SeatsAssignedEvent struct {
	CommitteeID    string   `json:"committee_id"`
	CommitteeName  string   `json:"committee_name"`
	SeatIndices    []int    `json:"seat_indices"`
	SeatLabels     []string `json:"seats"`
	RecipientName  string   `json:"recipient_name"`
	RecipientEmail string   `json:"recipient_email"`
	TransactionID  string   `json:"transaction_id"`
	ReceiptURL     string   `json:"receipt_url"`
	Revision       uint64   `json:"revision"`
	AssignedBy     string   `json:"assigned_by,omitempty"`
	AssignedAt     string   `json:"assigned_at"`
}
