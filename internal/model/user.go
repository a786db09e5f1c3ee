package model

import "time"

// Account roles carried in access tokens.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Account is a row of the `accounts` table: the credential side of a user.
//
// Fields:
//   - ID: primary key identifier.
//   - Email: unique, lower-cased email address.
//   - PasswordHash: bcrypt hash.
//   - DisplayName: free-form name given at sign-up.
//   - IsActive: disabled accounts cannot log in.
type Account struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is a document of the `users` collection. Its id is the account id.
type Profile struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email" validate:"required"`
	Institution string    `json:"institution,omitempty"`
	IsFaculty   bool      `json:"isFaculty"`
	IsAdmin     bool      `json:"isAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FullName joins first and last name with a single space.
func (p Profile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Role maps the profile flags to a token role.
func (p Profile) Role() string {
	if p.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// RefreshToken models a row of `refresh_tokens`. Only the SHA-256 of the
// token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// PasswordReset models a row of `password_resets`. Single use.
type PasswordReset struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
}
