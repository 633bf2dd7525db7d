package domain

import "sort"

// Principal is the verified identity attached to a request.
type Principal struct {
	Subject string `json:"username"`
	Role    Role   `json:"role"`
}

// RoleSet is the allow-list a protected route declares. Membership is exact:
// ADMIN does not imply INSTRUCTOR or STUDENT.
type RoleSet map[Role]struct{}

var (
	AnyRole   = NewRoleSet(RoleStudent, RoleInstructor, RoleAdmin)
	AdminOnly = NewRoleSet(RoleAdmin)
)

func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Allows reports whether r is in the set.
func (s RoleSet) Allows(r Role) bool {
	_, ok := s[r]
	return ok
}

// Roles returns the members in lexical order.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
