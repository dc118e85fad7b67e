package domain

import "strings"

// Credentials is the mio ID / password pair used against the member portal.
// Immutable value; compare with ==.
type Credentials struct {
	MioID    string
	Password string
}

func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.MioID) != "" && strings.TrimSpace(c.Password) != ""
}

// Redacted returns a loggable form that never exposes the password.
func (c Credentials) Redacted() string {
	if c.MioID == "" {
		return "(empty)"
	}
	return c.MioID + ":****"
}
