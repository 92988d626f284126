package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	autherrors "github.com/jrsteele09/go-shop-console/internal/errors"
	"github.com/jrsteele09/go-shop-console/internal/validation"
	"github.com/jrsteele09/go-shop-console/users"
	"github.com/rs/zerolog/log"
)

// envelope is the body shape shared by every /api/auth response
type envelope struct {
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message,omitempty"`
	Data       any               `json:"data,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// UserView is the user record as sent to clients
type UserView struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	FirstName string     `json:"firstName,omitempty"`
	LastName  string     `json:"lastName,omitempty"`
	Role      users.Role `json:"role"`
	Avatar    string     `json:"avatar,omitempty"`
}

func newUserView(u *users.User) UserView {
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.DisplayName(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Avatar:    u.Avatar,
	}
}

// LoginData is the data block of a successful login
type LoginData struct {
	AccessToken string     `json:"accessToken"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	Role        users.Role `json:"role"`
	Sub         string     `json:"sub"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	Avatar      string     `json:"avatar,omitempty"`
}

// RegisterData is the data block of a successful registration
type RegisterData struct {
	User        UserView   `json:"user"`
	AccessToken string     `json:"accessToken,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// SessionResponse is returned by refresh and me
type SessionResponse struct {
	User      UserView  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{StatusCode: status, Message: message})
}

func writeFieldErrors(w http.ResponseWriter, status int, message string, fields map[string]string) {
	writeJSON(w, status, envelope{StatusCode: status, Message: message, Errors: fields})
}

// writeServiceError maps auth service failures onto status codes and client messages
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs *validation.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		writeFieldErrors(w, http.StatusBadRequest, "Validation failed", fieldErrs.Errors)
	case errors.Is(err, autherrors.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "Invalid request body")
	case errors.Is(err, autherrors.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, autherrors.ErrUserBlocked):
		writeError(w, http.StatusForbidden, "This account has been blocked")
	case errors.Is(err, autherrors.ErrEmailTaken):
		writeFieldErrors(w, http.StatusConflict, "Email is already registered", map[string]string{
			"email": "Email is already registered",
		})
	case errors.Is(err, autherrors.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "Token has expired")
	case errors.Is(err, autherrors.ErrRefreshWindowClosed),
		errors.Is(err, autherrors.ErrGrantNotFound):
		writeError(w, http.StatusUnauthorized, "Session has ended, please sign in again")
	case errors.Is(err, autherrors.ErrInvalidToken),
		errors.Is(err, autherrors.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "Invalid token")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", autherrors.Wrapf(autherrors.ErrInvalidToken, "missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", autherrors.Wrapf(autherrors.ErrInvalidToken, "invalid Authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// maxBodyBytes bounds request bodies on the credential routes
const maxBodyBytes = 1 << 16

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return autherrors.Wrapf(autherrors.ErrInvalidRequest, "decode body: %s", err.Error())
	}
	return nil
}
