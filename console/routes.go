package console

import (
	"net/http"

	"github.com/jrsteele09/go-shop-console/server"
	"github.com/jrsteele09/go-shop-console/users"
)

// Route path constants
const (
	RouteHome           = "/"
	RouteLogin          = "/login"
	RouteAdminLogin     = "/admin/login"
	RouteRegister       = "/register"
	RouteLogout         = "/logout"
	RouteSessionRefresh = "/session/refresh"
	RouteForbidden      = "/forbidden"
	RouteAccount        = "/account"
	RouteAdmin          = "/admin"
	RouteAdminUsers     = "/admin/users"
)

func (c *Console) initRoutes() {
	public := c.PageMiddleware()
	forms := c.PageMiddleware(c.CSRFMiddleware)

	c.mux.HandleFunc("GET /{$}", server.ChainMiddleware(c.HomeHandler(), public...))
	c.mux.HandleFunc("GET "+RouteLogin, server.ChainMiddleware(c.LoginPageHandler(false), public...))
	c.mux.HandleFunc("POST "+RouteLogin, server.ChainMiddleware(c.LoginSubmitHandler(false), forms...))
	c.mux.HandleFunc("GET "+RouteAdminLogin, server.ChainMiddleware(c.LoginPageHandler(true), public...))
	c.mux.HandleFunc("POST "+RouteAdminLogin, server.ChainMiddleware(c.LoginSubmitHandler(true), forms...))
	c.mux.HandleFunc("GET "+RouteRegister, server.ChainMiddleware(c.RegisterPageHandler(), public...))
	c.mux.HandleFunc("POST "+RouteRegister, server.ChainMiddleware(c.RegisterSubmitHandler(), forms...))
	c.mux.HandleFunc("POST "+RouteLogout, server.ChainMiddleware(c.LogoutHandler(), forms...))
	c.mux.HandleFunc("POST "+RouteSessionRefresh, server.ChainMiddleware(c.RefreshHandler(), forms...))
	c.mux.HandleFunc("GET "+RouteForbidden, server.ChainMiddleware(c.ForbiddenHandler(), public...))

	// Guarded views are re-evaluated on every request
	c.mux.HandleFunc("GET "+RouteAccount, server.ChainMiddleware(c.AccountHandler(), c.PageMiddleware(c.guard.Require())...))
	c.mux.HandleFunc("GET "+RouteAdmin, server.ChainMiddleware(c.AdminHandler(), c.PageMiddleware(c.guard.Require(users.RoleAdmin, users.RoleStaff))...))
	c.mux.HandleFunc("GET "+RouteAdminUsers, server.ChainMiddleware(c.AdminUsersHandler(), c.PageMiddleware(c.guard.Require(users.RoleAdmin))...))
}

// PageMiddleware is the standard stack for HTML routes, followed by any route specific middleware.
func (c *Console) PageMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chained := []func(http.HandlerFunc) http.HandlerFunc{
		server.RequestLogger(nil),
		c.RecoverMiddleware,
	}
	return append(chained, mw...)
}
