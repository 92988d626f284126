// Package console is the web surface for shoppers and operators. It holds a
// single session, shared by every request, through the gateway's store.
package console

import (
	"crypto/rand"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/jrsteele09/go-shop-console/gateway"
	"github.com/jrsteele09/go-shop-console/guard"
	"github.com/jrsteele09/go-shop-console/session"
	"github.com/rs/zerolog/log"
)

type Console struct {
	mux     *http.ServeMux
	gateway *gateway.Gateway
	store   *session.Store
	guard   *guard.Guard
	cookies *sessions.CookieStore
	pages   map[string]*template.Template
	appName string
	secure  bool
}

type Option func(*Console)

func WithAppName(name string) Option {
	return func(c *Console) {
		c.appName = name
	}
}

// WithSecureCookies marks the flash cookie Secure, for consoles served over TLS.
func WithSecureCookies(secure bool) Option {
	return func(c *Console) {
		c.secure = secure
	}
}

// New builds the console around gw. cookieKey signs the flash cookie; an
// empty key is replaced by a random one, so flashes do not survive a restart.
func New(gw *gateway.Gateway, cookieKey []byte, opts ...Option) (*Console, error) {
	if gw == nil {
		return nil, errors.New("[console New] gateway is required")
	}
	if len(cookieKey) == 0 {
		cookieKey = make([]byte, 32)
		if _, err := rand.Read(cookieKey); err != nil {
			return nil, fmt.Errorf("[console New] generate cookie key: %w", err)
		}
	}

	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("[console New] %w", err)
	}

	c := &Console{
		mux:     http.NewServeMux(),
		gateway: gw,
		store:   gw.Store(),
		pages:   pages,
		appName: "Shop",
	}
	for _, opt := range opts {
		opt(c)
	}

	c.guard = guard.New(c.store, guard.WithLoginPath(RouteLogin), guard.WithForbiddenPath(RouteForbidden))
	c.cookies = sessions.NewCookieStore(cookieKey)
	c.cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}

	c.initRoutes()
	return c, nil
}

func (c *Console) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mux.ServeHTTP(w, r)
}

// pageData is what every template receives
type pageData struct {
	AppName      string
	Title        string
	User         *session.User
	Flashes      []string
	Error        string
	Fields       map[string]string
	Form         map[string]string
	Next         string
	Action       string
	AdminSurface bool
	CSRFToken    string
}

func (c *Console) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	tmpl, ok := c.pages[page]
	if !ok {
		http.Error(w, "Page not found", http.StatusInternalServerError)
		return
	}

	data.AppName = c.appName
	data.User = c.store.Snapshot().User
	data.CSRFToken = c.csrfToken(w, r)
	data.Flashes = append(data.Flashes, c.popFlashes(w, r)...)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		log.Error().Err(err).Str("page", page).Msg("failed to render page")
	}
}
