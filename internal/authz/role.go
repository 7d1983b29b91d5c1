// Package authz decides what a tenant-scoped actor may do.
package authz

import (
	"errors"
	"strings"
)

// Role is the closed set of per-organization roles. Role checks go through
// the seeded decision table; there is no string dispatch in handlers.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleUser     Role = "user"
	RoleReadOnly Role = "readonly"
)

var ErrUnknownRole = errors.New("unknown_role")

// ParseRole normalizes and validates a role value.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	case RoleReadOnly:
		return RoleReadOnly, nil
	default:
		return "", ErrUnknownRole
	}
}

// Valid reports whether the role is a member of the closed set.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}
