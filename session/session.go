// Package session holds the signed-in identity on the client side and keeps
// it in durable storage so it survives restarts.
package session

import (
	"strings"

	"github.com/jrsteele09/go-shop-console/users"
)

// User is the client-side identity record. It is what gets persisted under
// the user key, so its JSON shape is the storage format.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	FirstName string     `json:"firstName,omitempty"`
	LastName  string     `json:"lastName,omitempty"`
	Role      users.Role `json:"role"`
	Avatar    string     `json:"avatar,omitempty"`
}

// DisplayName prefers the name, then first and last name, then the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}

// Normalized returns a copy with the role in canonical lowercase form.
func (u User) Normalized() (User, error) {
	role, err := users.ParseRole(string(u.Role))
	if err != nil {
		return User{}, err
	}
	u.Role = role
	u.Email = users.NormalizeEmail(u.Email)
	return u, nil
}

// Session is a signed-in user together with their bearer token.
type Session struct {
	User  *User
	Token string
}

// Snapshot is a consistent read of the store.
type Snapshot struct {
	User    *User
	Token   string
	Loading bool
}

// IsAuthenticated is true only when both the user and the token are present.
func (s Snapshot) IsAuthenticated() bool {
	return s.User != nil && s.Token != ""
}

// Role is empty when nobody is signed in.
func (s Snapshot) Role() users.Role {
	if !s.IsAuthenticated() {
		return ""
	}
	return s.User.Role
}

// Session returns the signed-in session, if there is one.
func (s Snapshot) Session() (Session, bool) {
	if !s.IsAuthenticated() {
		return Session{}, false
	}
	return Session{User: s.User, Token: s.Token}, true
}

func (s Snapshot) HasRole(required users.RoleSet) bool {
	return s.IsAuthenticated() && required.Allows(s.User.Role)
}
