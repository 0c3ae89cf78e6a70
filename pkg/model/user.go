package model

import (
	"errors"
	"strings"
	"time"
)

var ErrUserIDEmpty = errors.New("user must have an id")
var ErrEmailEmpty = errors.New("email must not be empty")
var ErrEmailInvalid = errors.New("email must contain a local part and a domain")

// User represents the authenticated identity as returned by the backend.
type User struct {
	ID                     int64     `json:"id"`
	Name                   string    `json:"name"`
	Email                  string    `json:"email"`
	Roles                  []string  `json:"roles"`
	Avatar                 string    `json:"avatar,omitempty"`
	RequiresPasswordChange bool      `json:"requires_password_change"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Validate checks the fields the client relies on. Records failing this are
// treated as absent when hydrating a session.
func (u *User) Validate() error {
	if u.ID == 0 {
		return ErrUserIDEmpty
	}
	return ValidateEmail(u.Email)
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidateEmail checks that an address has a non-empty local part and domain.
// Full RFC validation belongs to the backend; the client only guards against
// obviously broken records.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailEmpty
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return ErrEmailInvalid
	}
	return nil
}
