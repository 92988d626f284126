package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-shop-console/auth"
	"github.com/jrsteele09/go-shop-console/internal/config"
	"github.com/jrsteele09/go-shop-console/token"
	"github.com/jrsteele09/go-shop-console/token/refresh"
	"github.com/jrsteele09/go-shop-console/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Repos holds the storage the identity endpoint depends on
type Repos struct {
	Users  users.UserRepo
	Grants refresh.Repo
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	auth     *auth.Service
	repos    Repos
	limiter  *RateLimiter
	registry *prometheus.Registry
	metrics  *Metrics
}

func New(config config.Config, repos Repos) (*Server, error) {
	if repos.Users == nil || repos.Grants == nil {
		return nil, fmt.Errorf("[Server New] users and grants repos are required")
	}

	tokens := token.New(
		token.NewHMACSigner(config.GetTokenSecret()),
		refresh.NewManager(repos.Grants, config.GetRefreshWindow()),
		token.WithIssuer(config.GetTokenIssuer()),
		token.WithAccessTokenExpiry(config.GetAccessTokenExpiry()),
	)

	authService, err := auth.NewService(repos.Users, tokens, auth.WithIssueTokenOnRegister(config.GetIssueTokenOnRegister()))
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create auth service: %w", err)
	}

	registry := prometheus.NewRegistry()
	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		auth:     authService,
		repos:    repos,
		registry: registry,
		metrics:  NewMetrics(registry),
	}
	if config.GetEnableRateLimiting() {
		s.limiter = NewRateLimiter(rate.Limit(config.GetRateLimitPerSecond()), config.GetRateLimitBurst())
	}

	if config.GetSeedAccounts() {
		if err := s.SeedAccounts(context.Background()); err != nil {
			return nil, fmt.Errorf("[Server New] failed to seed accounts: %w", err)
		}
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// RunMaintenance prunes expired grants and idle rate limiter entries until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.auth.CleanupExpiredSessions()
			if err != nil {
				log.Error().Err(err).Msg("grant cleanup failed")
			} else if removed > 0 {
				log.Debug().Int("removed", removed).Msg("expired grants removed")
			}
			if s.limiter != nil {
				s.limiter.Cleanup(5 * time.Minute)
			}
		}
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Info().Msgf("[%s] %s", colourMethod(parts[0]), parts[1])
		} else {
			log.Info().Msgf("[%s] %s", colourMethod(""), parts[0])
		}
	}
}
