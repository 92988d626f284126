// Package guard decides whether a request may reach a protected view.
package guard

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-shop-console/session"
	"github.com/jrsteele09/go-shop-console/users"
	"github.com/rs/zerolog/log"
)

// Decision is the routing policy's answer for a settled session.
type Decision int

const (
	Allow Decision = iota
	RedirectToLogin
	RedirectToForbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect to login"
	case RedirectToForbidden:
		return "redirect to forbidden"
	}
	return "decision(" + strconv.Itoa(int(d)) + ")"
}

// Decide is the route policy. An empty required set admits any
// authenticated role.
func Decide(isAuthenticated bool, role users.Role, required users.RoleSet) Decision {
	if !isAuthenticated {
		return RedirectToLogin
	}
	if !required.Allows(role) {
		return RedirectToForbidden
	}
	return Allow
}

// State is where a single navigation stands.
type State int

const (
	Checking State = iota
	Allowed
	DeniedUnauthenticated
	DeniedWrongRole
)

func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Allowed:
		return "allowed"
	case DeniedUnauthenticated:
		return "denied: unauthenticated"
	case DeniedWrongRole:
		return "denied: wrong role"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Evaluate stays in Checking until the store has finished loading, so a
// persisted session is never judged before it has been restored.
func Evaluate(snap session.Snapshot, required users.RoleSet) State {
	if snap.Loading {
		return Checking
	}
	switch Decide(snap.IsAuthenticated(), snap.Role(), required) {
	case RedirectToLogin:
		return DeniedUnauthenticated
	case RedirectToForbidden:
		return DeniedWrongRole
	}
	return Allowed
}

// SnapshotSource is satisfied by *session.Store.
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

const (
	DefaultLoginPath     = "/login"
	DefaultForbiddenPath = "/forbidden"
	NextParam            = "next"
)

type Guard struct {
	source        SnapshotSource
	loginPath     string
	forbiddenPath string
	retryAfter    int
}

type Option func(*Guard)

func WithLoginPath(path string) Option {
	return func(g *Guard) {
		g.loginPath = path
	}
}

func WithForbiddenPath(path string) Option {
	return func(g *Guard) {
		g.forbiddenPath = path
	}
}

// WithRetryAfter sets the Retry-After seconds sent while the session is still loading.
func WithRetryAfter(seconds int) Option {
	return func(g *Guard) {
		g.retryAfter = seconds
	}
}

func New(source SnapshotSource, opts ...Option) *Guard {
	g := &Guard{
		source:        source,
		loginPath:     DefaultLoginPath,
		forbiddenPath: DefaultForbiddenPath,
		retryAfter:    1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State evaluates the current session against required.
func (g *Guard) State(required users.RoleSet) State {
	return Evaluate(g.source.Snapshot(), required)
}

// Require wraps next so it is only reached by a session holding one of
// roles. No roles means any signed-in user. The session is read on every
// request, so a sign-out takes effect on the next navigation.
func (g *Guard) Require(roles ...users.Role) func(http.HandlerFunc) http.HandlerFunc {
	required := users.NewRoleSet(roles...)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			switch state := g.State(required); state {
			case Allowed:
				next(w, r)
			case Checking:
				w.Header().Set("Retry-After", strconv.Itoa(g.retryAfter))
				w.Header().Set("Cache-Control", "no-store")
				http.Error(w, "Checking your session, please retry shortly", http.StatusServiceUnavailable)
			case DeniedUnauthenticated:
				http.Redirect(w, r, g.LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
			default:
				log.Debug().Str("path", r.URL.Path).Str("required", required.String()).Msg("role not permitted")
				http.Redirect(w, r, g.forbiddenPath, http.StatusSeeOther)
			}
		}
	}
}

// LoginURL is the login path carrying next as the return destination.
func (g *Guard) LoginURL(next string) string {
	next = SafeNext(next, "")
	if next == "" {
		return g.loginPath
	}
	return g.loginPath + "?" + url.Values{NextParam: {next}}.Encode()
}

// SafeNext returns next when it is a local absolute path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return fallback
	}
	// protocol-relative and backslash tricks resolve to another host
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") || strings.ContainsAny(next, "\r\n") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}
