package model

// UserPatch is a partial user update. Nil fields are left untouched; the
// merge is shallow and never alters the session token.
type UserPatch struct {
	Name                   *string
	Email                  *string
	Avatar                 *string
	Roles                  *[]string
	RequiresPasswordChange *bool
}

// Apply merges the patch into u.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.Roles != nil {
		u.Roles = append([]string(nil), *p.Roles...)
	}
	if p.RequiresPasswordChange != nil {
		u.RequiresPasswordChange = *p.RequiresPasswordChange
	}
}

// CompanyPatch is a partial company update. Nil fields are left untouched.
type CompanyPatch struct {
	Name               *string
	Email              *string
	Phone              *string
	Address            *string
	TaxNumber          *string
	SubscriptionStatus *string
}

// Apply merges the patch into c.
func (p CompanyPatch) Apply(c *Company) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.TaxNumber != nil {
		c.TaxNumber = *p.TaxNumber
	}
	if p.SubscriptionStatus != nil {
		c.SubscriptionStatus = *p.SubscriptionStatus
	}
}
