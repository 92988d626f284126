package gateway

import "github.com/jrsteele09/go-shop-console/users"

// Surface is a sign-in entry point and the roles it accepts.
type Surface struct {
	Name  string
	Roles users.RoleSet // empty accepts any role
}

var (
	Storefront = Surface{Name: "storefront"}
	Admin      = Surface{Name: "admin", Roles: users.NewRoleSet(users.RoleAdmin)}
)

// Allows reports whether an account with role may sign in here.
func (s Surface) Allows(role users.Role) bool {
	return s.Roles.Allows(role)
}
