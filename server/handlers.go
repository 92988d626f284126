package server

import (
	"net/http"

	"github.com/jrsteele09/go-shop-console/auth"
	"github.com/jrsteele09/go-shop-console/internal/utils"
	"github.com/rs/zerolog/log"
)

// LoginHandler checks credentials and returns a signed access token
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		sess, err := s.auth.Login(r.Context(), req)
		if err != nil {
			s.metrics.Logins.WithLabelValues("failed").Inc()
			writeServiceError(w, r, err)
			return
		}
		s.metrics.Logins.WithLabelValues("success").Inc()

		u := sess.User
		writeJSON(w, http.StatusOK, envelope{
			StatusCode: http.StatusOK,
			Message:    "Login successful",
			Data: LoginData{
				AccessToken: sess.Token.AccessToken,
				ExpiresAt:   sess.Token.ExpiresAt,
				Role:        u.Role,
				Sub:         u.ID,
				Email:       u.Email,
				Name:        u.DisplayName(),
				FirstName:   u.FirstName,
				LastName:    u.LastName,
				Avatar:      u.Avatar,
			},
		})
	}
}

// RegisterHandler creates a user account
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		sess, err := s.auth.Register(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		s.metrics.Registrations.Inc()

		data := RegisterData{User: newUserView(sess.User)}
		message := "Account created, please sign in"
		if sess.Token != nil {
			data.AccessToken = sess.Token.AccessToken
			data.ExpiresAt = utils.Ptr(sess.Token.ExpiresAt)
			message = "Account created"
		}
		writeJSON(w, http.StatusCreated, envelope{
			StatusCode: http.StatusCreated,
			Message:    message,
			Data:       data,
		})
	}
}

// RefreshHandler exchanges the bearer token for a new one
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		sess, err := s.auth.Refresh(r.Context(), raw)
		if err != nil {
			s.metrics.Refreshes.WithLabelValues("failed").Inc()
			writeServiceError(w, r, err)
			return
		}
		s.metrics.Refreshes.WithLabelValues("success").Inc()

		writeJSON(w, http.StatusOK, SessionResponse{
			User:      newUserView(sess.User),
			Token:     sess.Token.AccessToken,
			ExpiresAt: sess.Token.ExpiresAt,
		})
	}
}

// MeHandler returns the profile behind the bearer token
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		sess, err := s.auth.Profile(r.Context(), raw)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, SessionResponse{
			User:      newUserView(sess.User),
			Token:     sess.Token.AccessToken,
			ExpiresAt: sess.Token.ExpiresAt,
		})
	}
}

// LogoutHandler ends the session behind the bearer token
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := s.auth.Logout(r.Context(), raw); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.repos.Users.List(r.Context(), 0, 1); err != nil {
			log.Error().Err(err).Msg("health check failed")
			writeError(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeJSON(w, http.StatusOK, envelope{StatusCode: http.StatusOK, Message: "ok"})
	}
}
