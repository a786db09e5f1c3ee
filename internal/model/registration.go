package model

import "time"

// Registration is a delegate registration. The same shape carries the
// synthetic records produced by manual seat assignments.
type Registration struct {
	ID                   string    `json:"id,omitempty"`
	UserFirstName        string    `json:"userFirstName" validate:"required"`
	UserLastName         string    `json:"userLastName"`
	UserEmail            string    `json:"userEmail" validate:"required,email"`
	UserInstitution      string    `json:"userInstitution"`
	UserIsFaculty        bool      `json:"userIsFaculty"`
	UserID               string    `json:"userId,omitempty"`
	Seats                int       `json:"seats" validate:"gte=0"`
	SeatsRequested       []string  `json:"seatsRequested"`
	RequiresBackup       bool      `json:"requiresBackup"`
	BackupSeatsRequested []string  `json:"backupSeatsRequested,omitempty"`
	IndependentDelegate  bool      `json:"independentDelegate"`
	IsBigGroup           bool      `json:"isBigGroup"`
	PaymentMethod        string    `json:"paymentMethod"`
	TransactionID        string    `json:"transactionId,omitempty"`
	ReceiptURL           string    `json:"receiptUrl,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

// FullName joins first and last name.
func (r Registration) FullName() string {
	if r.UserLastName == "" {
		return r.UserFirstName
	}
	return r.UserFirstName + " " + r.UserLastName
}

// RegistrationConfig lives at config/registration.
type RegistrationConfig struct {
	Rate float64 `json:"rate" validate:"gt=0"`
}

// DefaultRate is used when config/registration is missing or invalid.
const DefaultRate = 180.0
