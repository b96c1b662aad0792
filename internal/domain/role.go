package domain

import "time"

// Role enumerates participant roles. An address holds at most one role for
// the lifetime of the system; certifier/analyst exclusivity on a ticket
// depends on roles being stable.
type Role string

const (
	RoleClient    Role = "CLIENT"
	RoleAnalyst   Role = "ANALYST"
	RoleCertifier Role = "CERTIFIER"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleAnalyst, RoleCertifier:
		return true
	}
	return false
}

// RoleBinding is one address-to-role assignment.
type RoleBinding struct {
	Address    string
	Role       Role
	AssignedAt time.Time
}
