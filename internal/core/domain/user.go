package domain

import (
	"strings"
	"time"
)

// Role is one of the three fixed account roles.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleAdmin      Role = "ADMIN"
)

// ExternalPasswordHash is stored for accounts projected from registration
// events. It is not a bcrypt hash, so no password ever verifies against it.
const ExternalPasswordHash = "<external>"

// ParseRole converts a wire value into a Role. Matching ignores surrounding
// whitespace and case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrRoleNotAllowed
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// SelfService reports whether r may be chosen at self-registration.
func (r Role) SelfService() bool {
	return r == RoleStudent || r == RoleInstructor
}

func (r Role) String() string { return string(r) }

// User models an account in the credential store.
type User struct {
	ID           string    `json:"id,omitempty"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
