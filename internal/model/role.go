package model

import (
	"errors"
	"fmt"
)

// Role scopes which document source types a user may query and contribute.
// The set is closed; anything outside it must be rejected at the boundary,
// never mapped to a permissive default.
type Role string

const (
	RoleFullAccess Role = "full-access"
	RolePDFOnly    Role = "pdf-only"
	RoleWebOnly    Role = "web-only"
)

var ErrUnknownRole = errors.New("unknown role")

// ParseRole validates an externally supplied role string (request body,
// token claim, stored record).
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleFullAccess, RolePDFOnly, RoleWebOnly:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}
