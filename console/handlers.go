package console

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/jrsteele09/go-shop-console/gateway"
	"github.com/jrsteele09/go-shop-console/guard"
	"github.com/rs/zerolog/log"
)

const msgUnexpected = "Something went wrong, please try again"

func (c *Console) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.render(w, r, http.StatusOK, pageHome, pageData{Title: "Home"})
	}
}

// loginSurface describes one of the two sign-in pages
type loginSurface struct {
	surface     gateway.Surface
	title       string
	action      string
	defaultNext string
}

func surfaceFor(admin bool) loginSurface {
	if admin {
		return loginSurface{surface: gateway.Admin, title: "Admin sign in", action: RouteAdminLogin, defaultNext: RouteAdmin}
	}
	return loginSurface{surface: gateway.Storefront, title: "Sign in", action: RouteLogin, defaultNext: RouteAccount}
}

func (ls loginSurface) page(next string) pageData {
	return pageData{
		Title:        ls.title,
		Action:       ls.action,
		AdminSurface: ls.surface.Name == gateway.Admin.Name,
		Next:         next,
	}
}

func (c *Console) LoginPageHandler(admin bool) http.HandlerFunc {
	ls := surfaceFor(admin)
	return func(w http.ResponseWriter, r *http.Request) {
		next := guard.SafeNext(r.URL.Query().Get(guard.NextParam), "")
		c.render(w, r, http.StatusOK, pageLogin, ls.page(next))
	}
}

// LoginSubmitHandler signs in and continues to next. A failed attempt shows
// the form again with the email kept and the password cleared.
func (c *Console) LoginSubmitHandler(admin bool) http.HandlerFunc {
	ls := surfaceFor(admin)
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		creds := gateway.Credentials{
			Email:    strings.TrimSpace(r.PostForm.Get("email")),
			Password: r.PostForm.Get("password"),
		}
		next := guard.SafeNext(r.PostForm.Get(guard.NextParam), "")

		if _, err := c.gateway.Login(r.Context(), creds, ls.surface); err != nil {
			data := ls.page(next)
			data.Form = map[string]string{"email": creds.Email}
			status := c.describeFailure(err, &data)
			if gateway.IsKind(err, gateway.KindAuthorization) {
				status = http.StatusForbidden
			}
			c.render(w, r, status, pageLogin, data)
			return
		}

		http.Redirect(w, r, guard.SafeNext(next, ls.defaultNext), http.StatusSeeOther)
	}
}

func (c *Console) RegisterPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.render(w, r, http.StatusOK, pageRegister, pageData{Title: "Create account"})
	}
}

func (c *Console) RegisterSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		reg := gateway.Registration{
			Email:           strings.TrimSpace(r.PostForm.Get("email")),
			Password:        r.PostForm.Get("password"),
			ConfirmPassword: r.PostForm.Get("confirmPassword"),
			FirstName:       strings.TrimSpace(r.PostForm.Get("firstName")),
			LastName:        strings.TrimSpace(r.PostForm.Get("lastName")),
			Phone:           strings.TrimSpace(r.PostForm.Get("phone")),
			Avatar:          strings.TrimSpace(r.PostForm.Get("avatar")),
		}

		res, err := c.gateway.Register(r.Context(), reg)
		if err != nil {
			data := pageData{
				Title: "Create account",
				Form: map[string]string{
					"email":     reg.Email,
					"firstName": reg.FirstName,
					"lastName":  reg.LastName,
					"phone":     reg.Phone,
					"avatar":    reg.Avatar,
				},
			}
			status := c.describeFailure(err, &data)
			c.render(w, r, status, pageRegister, data)
			return
		}

		if res.SignedIn {
			c.addFlash(w, r, flashWelcome)
			http.Redirect(w, r, RouteAccount, http.StatusSeeOther)
			return
		}
		c.addFlash(w, r, flashAccountCreated)
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

func (c *Console) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.gateway.Logout(r.Context()); err != nil {
			log.Error().Err(err).Msg("failed to clear session on logout")
		}
		c.addFlash(w, r, flashSignedOut)
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

// RefreshHandler renews the session. When that fails the session is already
// gone, so the user is sent to sign in and the original request is dropped.
func (c *Console) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := guard.SafeNext(r.FormValue(guard.NextParam), RouteAccount)

		if _, err := c.gateway.Refresh(r.Context()); err != nil {
			var gerr *gateway.Error
			if errors.As(err, &gerr) {
				c.addFlash(w, r, gerr.Message)
			}
			http.Redirect(w, r, c.guard.LoginURL(next), http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
	}
}

func (c *Console) ForbiddenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.render(w, r, http.StatusForbidden, pageForbidden, pageData{Title: "Access denied"})
	}
}

func (c *Console) AccountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.render(w, r, http.StatusOK, pageAccount, pageData{Title: "Your account"})
	}
}

func (c *Console) AdminHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.render(w, r, http.StatusOK, pageAdmin, pageData{Title: "Dashboard"})
	}
}

func (c *Console) AdminUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.render(w, r, http.StatusOK, pageAdminUsers, pageData{Title: "Users"})
	}
}

func (c *Console) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("path", r.URL.Path).
					Msg("recovered from panic")
				http.Error(w, msgUnexpected, http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// describeFailure copies a gateway error onto the form and picks the status.
func (c *Console) describeFailure(err error, data *pageData) int {
	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		log.Error().Err(err).Msg("unexpected gateway error")
		data.Error = msgUnexpected
		return http.StatusInternalServerError
	}
	data.Error = gerr.Message
	data.Fields = gerr.Fields
	return http.StatusUnprocessableEntity
}
