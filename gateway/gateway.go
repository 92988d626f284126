// Package gateway performs the identity operations against the identity
// endpoint and records their outcome in a session.Store.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-shop-console/internal/validation"
	"github.com/jrsteele09/go-shop-console/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Endpoint paths on the identity service
const (
	PathLogin    = "/api/auth/login"
	PathRegister = "/api/auth/register"
	PathRefresh  = "/api/auth/refresh"
	PathMe       = "/api/auth/me"
	PathLogout   = "/api/auth/logout"
)

const maxResponseBytes = 1 << 20

// Credentials is a login form submission.
type Credentials struct {
	Email    string `json:"email" validate:"required,shopemail"`
	Password string `json:"password" validate:"required"`
}

// Registration is a sign-up form submission.
type Registration struct {
	Email           string `json:"email" validate:"required,shopemail,max=254"`
	Password        string `json:"password" validate:"required,password,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	FirstName       string `json:"firstName" validate:"required,max=64"`
	LastName        string `json:"lastName" validate:"required,max=64"`
	Phone           string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Avatar          string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// RegisterResult reports whether the new account was also signed in. When
// SignedIn is false the caller has to log in explicitly.
type RegisterResult struct {
	User     *session.User
	SignedIn bool
}

// Translator turns a server message into one fit for the user. Returning ""
// falls back to the generic message.
type Translator func(serverMessage string) string

type Gateway struct {
	baseURL    *url.URL
	httpClient *http.Client
	store      *session.Store
	validator  *validation.Validator
	translate  Translator

	submitting   atomic.Bool
	refreshGroup singleflight.Group
}

var _ session.ProfileFetcher = (*Gateway)(nil)

// Option configures a Gateway instance.
type Option func(*Gateway)

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

func WithTranslator(t Translator) Option {
	return func(g *Gateway) {
		g.translate = t
	}
}

func New(baseURL string, store *session.Store, opts ...Option) (*Gateway, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[gateway New] invalid identity URL %q", baseURL)
	}
	if store == nil {
		return nil, errors.New("[gateway New] session store is required")
	}

	g := &Gateway{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		store:      store,
		validator:  validation.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Store is the session store the gateway writes to.
func (g *Gateway) Store() *session.Store {
	return g.store
}

// Login signs in through surface. An account whose role the surface does
// not accept fails with KindAuthorization and nothing is persisted.
func (g *Gateway) Login(ctx context.Context, creds Credentials, surface Surface) (*session.User, error) {
	if !g.submitting.CompareAndSwap(false, true) {
		return nil, &Error{Kind: KindValidation, Message: msgInFlight, Err: ErrSubmissionInFlight}
	}
	defer g.submitting.Store(false)

	creds.Email = strings.TrimSpace(creds.Email)
	if err := g.validate(creds); err != nil {
		return nil, err
	}

	status, env, err := g.do(ctx, http.MethodPost, PathLogin, creds)
	if err != nil {
		return nil, authenticationError(msgInvalidCredentials, err)
	}
	if !isSuccess(status) || !isSuccess(env.StatusCode) {
		return nil, authenticationError(g.message(env.Message, msgInvalidCredentials), fmt.Errorf("login returned %d", status))
	}

	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, authenticationError(msgInvalidCredentials, fmt.Errorf("decode login data: %w", err))
	}
	if data.AccessToken == "" || data.Sub == "" || data.Role == "" {
		return nil, authenticationError(msgInvalidCredentials, errors.New("login response missing token, subject or role"))
	}

	user, err := data.user().Normalized()
	if err != nil {
		return nil, authenticationError(msgInvalidCredentials, err)
	}
	if !surface.Allows(user.Role) {
		// the token is never stored, so end its server session too
		g.notifyLogout(ctx, data.AccessToken)
		return nil, &Error{
			Kind:    KindAuthorization,
			Message: fmt.Sprintf("This account lacks %s access", surface.Name),
		}
	}

	if err := g.store.SetSession(ctx, &user, data.AccessToken); err != nil {
		return nil, authenticationError("Could not save the session", err)
	}
	log.Info().Str("email", user.Email).Str("surface", surface.Name).Msg("signed in")
	return &user, nil
}

// Register creates an account. Form problems are reported per field before
// any request is made; the server's own field errors come back the same way.
func (g *Gateway) Register(ctx context.Context, reg Registration) (*RegisterResult, error) {
	if !g.submitting.CompareAndSwap(false, true) {
		return nil, &Error{Kind: KindValidation, Message: msgInFlight, Err: ErrSubmissionInFlight}
	}
	defer g.submitting.Store(false)

	reg.Email = strings.TrimSpace(reg.Email)
	if err := g.validate(reg); err != nil {
		return nil, err
	}

	status, env, err := g.do(ctx, http.MethodPost, PathRegister, reg)
	if err != nil {
		return nil, authenticationError(msgRegistrationFailed, err)
	}
	if len(env.Errors) > 0 {
		return nil, validationError(env.Errors, g.message(env.Message, msgRegistrationFailed))
	}
	if !isSuccess(status) || !isSuccess(env.StatusCode) {
		return nil, authenticationError(g.message(env.Message, msgRegistrationFailed), fmt.Errorf("register returned %d", status))
	}

	var data registerData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, authenticationError(msgRegistrationFailed, fmt.Errorf("decode register data: %w", err))
	}
	if data.User == nil {
		return nil, authenticationError(msgRegistrationFailed, errors.New("register response missing user"))
	}
	user, err := data.User.Normalized()
	if err != nil {
		return nil, authenticationError(msgRegistrationFailed, err)
	}

	if data.AccessToken == "" {
		return &RegisterResult{User: &user}, nil
	}
	if err := g.store.SetSession(ctx, &user, data.AccessToken); err != nil {
		return nil, authenticationError("Could not save the session", err)
	}
	return &RegisterResult{User: &user, SignedIn: true}, nil
}

// Refresh exchanges the current token for a new one. Concurrent callers
// share one request. Any failure clears the session before returning a
// KindSessionExpired error.
func (g *Gateway) Refresh(ctx context.Context) (*session.User, error) {
	// one caller leaving must not fail the refresh shared with the others
	shared := context.WithoutCancel(ctx)
	v, err, _ := g.refreshGroup.Do("refresh", func() (any, error) {
		return g.refresh(shared)
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.User), nil
}

func (g *Gateway) refresh(ctx context.Context) (*session.User, error) {
	fail := func(cause error) (*session.User, error) {
		if err := g.store.ClearSession(ctx); err != nil {
			log.Error().Err(err).Msg("failed to clear session after refresh failure")
		}
		return nil, sessionExpiredError(cause)
	}

	token := g.store.Token()
	if token == "" {
		return fail(errors.New("no session to refresh"))
	}

	user, newToken, err := g.fetchSession(ctx, PathRefresh, http.MethodPost, token)
	if err != nil {
		return fail(err)
	}
	normalized, err := user.Normalized()
	if err != nil {
		return fail(err)
	}
	if err := g.store.SetSession(ctx, &normalized, newToken); err != nil {
		return fail(err)
	}
	return &normalized, nil
}

// Logout tells the server the session is over, best effort, and always
// clears the local session.
func (g *Gateway) Logout(ctx context.Context) error {
	if token := g.store.Token(); token != "" {
		g.notifyLogout(ctx, token)
	}
	return g.store.ClearSession(ctx)
}

// FetchProfile returns the user behind token without touching the store.
func (g *Gateway) FetchProfile(ctx context.Context, token string) (*session.User, error) {
	user, _, err := g.fetchSession(ctx, PathMe, http.MethodGet, token)
	if err != nil {
		return nil, authenticationError("Could not load the profile", err)
	}
	return user, nil
}

func (g *Gateway) notifyLogout(ctx context.Context, token string) {
	req, err := g.newRequest(ctx, http.MethodPost, PathLogout, nil)
	if err != nil {
		log.Warn().Err(err).Msg("logout notification failed")
		return
	}
	resp, err := g.bearerClient(ctx, token).Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("logout notification failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	if !isSuccess(resp.StatusCode) {
		log.Warn().Int("status", resp.StatusCode).Msg("logout notification rejected")
	}
}

func (g *Gateway) fetchSession(ctx context.Context, path, method, token string) (*session.User, string, error) {
	if token == "" {
		return nil, "", errors.New("no token")
	}
	req, err := g.newRequest(ctx, method, path, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := g.bearerClient(ctx, token).Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, "", fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}
	var body sessionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", path, err)
	}
	if body.User == nil || body.Token == "" {
		return nil, "", fmt.Errorf("%s response missing user or token", path)
	}
	return body.User, body.Token, nil
}

// bearerClient attaches token to every request made with it.
func (g *Gateway) bearerClient(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	client.Timeout = g.httpClient.Timeout
	return client
}

func (g *Gateway) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u := *g.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do posts a JSON body and decodes the envelope. Non-2xx responses still
// return the decoded envelope so callers can surface server messages.
func (g *Gateway) do(ctx context.Context, method, path string, payload any) (int, *envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := g.newRequest(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	env := &envelope{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(env); err != nil {
		if isSuccess(resp.StatusCode) {
			return resp.StatusCode, nil, fmt.Errorf("decode %s response: %w", path, err)
		}
		// error bodies that aren't envelopes carry no usable message
		env = &envelope{StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, env, nil
}

func (g *Gateway) validate(v any) error {
	err := g.validator.Validate(v)
	if err == nil {
		return nil
	}
	var fe *validation.FieldErrors
	if errors.As(err, &fe) {
		return validationError(fe.Errors, "Please correct the highlighted fields")
	}
	return &Error{Kind: KindValidation, Message: "Invalid form", Err: err}
}

// message picks the user-facing text for a server rejection.
func (g *Gateway) message(serverMessage, generic string) string {
	if serverMessage == "" {
		return generic
	}
	if g.translate == nil {
		return serverMessage
	}
	if translated := g.translate(serverMessage); translated != "" {
		return translated
	}
	return generic
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
