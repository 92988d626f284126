package gateway

import (
	"encoding/json"

	"github.com/jrsteele09/go-shop-console/session"
	"github.com/jrsteele09/go-shop-console/users"
)

// envelope is the identity endpoint's response wrapper.
type envelope struct {
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Errors     map[string]string `json:"errors"`
}

type loginData struct {
	AccessToken string     `json:"accessToken"`
	Role        users.Role `json:"role"`
	Sub         string     `json:"sub"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Avatar      string     `json:"avatar"`
}

func (d loginData) user() *session.User {
	return &session.User{
		ID:        d.Sub,
		Email:     d.Email,
		Name:      d.Name,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Role:      d.Role,
		Avatar:    d.Avatar,
	}
}

type registerData struct {
	User        *session.User `json:"user"`
	AccessToken string        `json:"accessToken"`
}

// sessionResponse is returned by the refresh and profile endpoints
type sessionResponse struct {
	User  *session.User `json:"user"`
	Token string        `json:"token"`
}
