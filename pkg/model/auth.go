package model

import "errors"

var ErrCompanyIDEmpty = errors.New("company must have an id")
var ErrPasswordEmpty = errors.New("password must not be empty")
var ErrPasswordMismatch = errors.New("password confirmation does not match")
var ErrNameEmpty = errors.New("name must not be empty")

// Credentials is the login request payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks credentials before they are sent to the backend.
func (c Credentials) Validate() error {
	if err := ValidateEmail(c.Email); err != nil {
		return err
	}
	if c.Password == "" {
		return ErrPasswordEmpty
	}
	return nil
}

// Registration is the register request payload. The backend creates the
// user and their company in one step.
type Registration struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	CompanyName          string `json:"company_name"`
}

// Validate checks the registration payload before it is sent.
func (r Registration) Validate() error {
	if r.Name == "" {
		return ErrNameEmpty
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return ErrPasswordEmpty
	}
	if r.Password != r.PasswordConfirmation {
		return ErrPasswordMismatch
	}
	return nil
}
