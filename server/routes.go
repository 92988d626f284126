package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route path constants
const (
	RouteAPILogin    = "/api/auth/login"
	RouteAPIRegister = "/api/auth/register"
	RouteAPIRefresh  = "/api/auth/refresh"
	RouteAPIMe       = "/api/auth/me"
	RouteAPILogout   = "/api/auth/logout"

	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

func (s *Server) initRoutes() {
	// Credential submissions are rate limited per client IP
	s.RegisterRouteHandler("POST "+RouteAPILogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteAPIRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteAPIRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware(s.RateLimitMiddleware)...))

	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPILogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Preflight for browser clients
	s.RegisterRouteHandler("OPTIONS /api/auth/{action}", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}
