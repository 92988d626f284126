package console

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
)

const (
	csrfSessionName = "shop_console_csrf"
	csrfTokenKey    = "token"
	// CSRFField is the hidden form field every POST form carries
	CSRFField = "csrf_token"

	csrfMaxAge = 12 * 60 * 60
)

const msgCSRFRejected = "This form has expired, please try again"

// csrfToken returns the browser's form token, issuing one on first use.
// It must be called before the response header is written.
func (c *Console) csrfToken(w http.ResponseWriter, r *http.Request) string {
	sess, err := c.cookies.Get(r, csrfSessionName)
	if err != nil {
		log.Debug().Err(err).Msg("discarding unreadable csrf cookie")
	}
	if token, ok := sess.Values[csrfTokenKey].(string); ok && token != "" {
		return token
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		log.Error().Err(err).Msg("failed to generate csrf token")
		return ""
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	opts := *c.cookies.Options
	opts.MaxAge = csrfMaxAge
	sess.Options = &opts
	sess.Values[csrfTokenKey] = token
	if err := sess.Save(r, w); err != nil {
		log.Error().Err(err).Msg("failed to save csrf token")
		return ""
	}
	return token
}

// CSRFMiddleware rejects form posts from other origins and posts whose
// token does not match the one issued to this browser.
func (c *Console) CSRFMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sameOrigin(r) {
			log.Warn().Str("origin", r.Header.Get("Origin")).Str("path", r.URL.Path).Msg("cross-origin form post rejected")
			c.rejectForm(w, r)
			return
		}

		sess, err := c.cookies.Get(r, csrfSessionName)
		expected, _ := sess.Values[csrfTokenKey].(string)
		if err != nil || expected == "" {
			log.Warn().Str("path", r.URL.Path).Msg("form post without csrf cookie rejected")
			c.rejectForm(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		got := r.PostForm.Get(CSRFField)
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			log.Warn().Str("path", r.URL.Path).Msg("form post with bad csrf token rejected")
			c.rejectForm(w, r)
			return
		}
		next(w, r)
	}
}

func (c *Console) rejectForm(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusForbidden, pageForbidden, pageData{Title: "Access denied", Error: msgCSRFRejected})
}

// sameOrigin accepts requests without browser origin headers, so non-browser
// clients still work once they present a token.
func sameOrigin(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		return false
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
