package model

import "time"

// Company represents the tenant a user belongs to.
type Company struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	Address            string    `json:"address,omitempty"`
	TaxNumber          string    `json:"tax_number,omitempty"`
	SubscriptionStatus string    `json:"subscription_status,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Validate checks the fields the client relies on.
func (c *Company) Validate() error {
	if c.ID == 0 {
		return ErrCompanyIDEmpty
	}
	return nil
}
