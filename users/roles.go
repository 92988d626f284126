package users

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Role is one of the closed set of account roles. Stored values are always
// the canonical lowercase form.
type Role string

const (
	RoleAdmin Role = "admin" // Full access to the admin console
	RoleStaff Role = "staff" // Operational access to the admin console
	RoleUser  Role = "user"  // Storefront customer
)

// roleAliases maps every accepted spelling, after case folding, to its canonical role.
var roleAliases = map[string]Role{
	"admin":         RoleAdmin,
	"administrator": RoleAdmin,
	"staff":         RoleStaff,
	"employee":      RoleStaff,
	"user":          RoleUser,
	"customer":      RoleUser,
}

// ErrUnknownRole is returned by ParseRole for values outside the taxonomy.
type ErrUnknownRole string

func (e ErrUnknownRole) Error() string {
	return fmt.Sprintf("unknown role %q", string(e))
}

// ParseRole case-folds a role received at a boundary into its canonical form.
func ParseRole(raw string) (Role, error) {
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", ErrUnknownRole(raw)
	}
	return role, nil
}

// Valid reports whether r is a canonical role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleUser:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// UnmarshalJSON accepts any known spelling and stores the canonical role.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*r = ""
		return nil
	}
	role, err := ParseRole(raw)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// RoleSet is the set of roles a surface or route accepts. The empty set
// accepts any role.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from canonical roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// ParseRoleSet builds a set from raw, possibly mixed-case, role names.
func ParseRoleSet(raw ...string) (RoleSet, error) {
	set := make(RoleSet, len(raw))
	for _, name := range raw {
		role, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		set[role] = struct{}{}
	}
	return set, nil
}

// Allows is the single role predicate used by every surface and guard.
func (s RoleSet) Allows(role Role) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[role]
	return ok
}

// Contains reports membership without the empty-set wildcard.
func (s RoleSet) Contains(role Role) bool {
	_, ok := s[role]
	return ok
}

// Roles returns the members in sorted order.
func (s RoleSet) Roles() []Role {
	roles := make([]Role, 0, len(s))
	for r := range s {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

func (s RoleSet) String() string {
	if len(s) == 0 {
		return "any"
	}
	names := make([]string, 0, len(s))
	for _, r := range s.Roles() {
		names = append(names, string(r))
	}
	return strings.Join(names, ",")
}
