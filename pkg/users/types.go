package users

import (
	"time"
)

// Status is the lifecycle state of an account
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// User represents a platform account
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsActive reports whether the account may authenticate
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}
