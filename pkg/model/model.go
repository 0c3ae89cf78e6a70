// Package model defines the core domain types for the Databyte client.
package model

// Session is the unit of authentication state: an opaque bearer token plus
// the user and company it belongs to. The three travel together: a session
// with a token but no user (or vice versa) is never valid.
type Session struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	User         *User    `json:"user,omitempty"`
	Company      *Company `json:"company,omitempty"`
}

// Complete reports whether the session satisfies the all-or-nothing
// invariant: token, user, and company are all present.
func (s *Session) Complete() bool {
	if s == nil {
		return false
	}
	return s.Token != "" && s.User != nil && s.Company != nil
}

// Clone returns a deep copy so callers can hand sessions out without
// exposing internal pointers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := &Session{Token: s.Token, RefreshToken: s.RefreshToken}
	if s.User != nil {
		u := *s.User
		u.Roles = append([]string(nil), s.User.Roles...)
		out.User = &u
	}
	if s.Company != nil {
		c := *s.Company
		out.Company = &c
	}
	return out
}
