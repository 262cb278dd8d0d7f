package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the role a principal acts under
type Role string

const (
	RoleManager Role = "MANAGER"
	RoleStaff   Role = "STAFF"
	RoleSystem  Role = "SYSTEM"
)

// IsValid returns true if the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleManager, RoleStaff, RoleSystem:
		return true
	}
	return false
}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// Principal is the identity on whose behalf a ledger operation runs.
// It is built once at the request boundary and passed explicitly to every call.
type Principal struct {
	ID   uuid.UUID
	Name string
	Role Role
}

// NewPrincipal creates a validated principal
func NewPrincipal(id uuid.UUID, name string, role Role) (Principal, error) {
	p := Principal{ID: id, Name: name, Role: role}
	if err := p.Validate(); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// SystemPrincipal identifies work the service performs on its own behalf
func SystemPrincipal() Principal {
	return Principal{ID: uuid.Nil, Name: "system", Role: RoleSystem}
}

// Validate checks the principal carries an identity and a known role
func (p Principal) Validate() error {
	if p.ID == uuid.Nil && p.Role != RoleSystem {
		return fmt.Errorf("%w: principal ID is required", ErrUnauthorized)
	}
	if !p.Role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", ErrUnauthorized, p.Role)
	}
	return nil
}
