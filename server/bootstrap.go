package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-shop-console/users"
	"github.com/rs/zerolog/log"
)

// SeedAccount is a demo account created at startup
type SeedAccount struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      users.Role
}

// DefaultSeedAccounts has one account per role
var DefaultSeedAccounts = []SeedAccount{
	{Email: "admin@test.com", Password: "Admin123", FirstName: "Admin", LastName: "User", Role: users.RoleAdmin},
	{Email: "staff@test.com", Password: "Staff123", FirstName: "Staff", LastName: "User", Role: users.RoleStaff},
	{Email: "user@test.com", Password: "User123", FirstName: "Test", LastName: "User", Role: users.RoleUser},
}

// SeedAccounts creates the default accounts that don't exist yet. Existing
// accounts are left alone so changed passwords survive restarts.
func (s *Server) SeedAccounts(ctx context.Context) error {
	for _, acct := range DefaultSeedAccounts {
		_, err := s.repos.Users.GetByEmail(ctx, acct.Email)
		if err == nil {
			log.Debug().Str("email", acct.Email).Msg("seed account already exists")
			continue
		}
		if !errors.Is(err, users.ErrNotFound) {
			return fmt.Errorf("[Server SeedAccounts] lookup %s: %w", acct.Email, err)
		}

		hash, err := users.HashPassword(acct.Password)
		if err != nil {
			return fmt.Errorf("[Server SeedAccounts] failed to hash password: %w", err)
		}
		err = s.repos.Users.Create(ctx, &users.User{
			ID:           uuid.New().String(),
			Email:        acct.Email,
			PasswordHash: hash,
			FirstName:    acct.FirstName,
			LastName:     acct.LastName,
			Role:         acct.Role,
		})
		if err != nil && !errors.Is(err, users.ErrEmailExists) {
			return fmt.Errorf("[Server SeedAccounts] create %s: %w", acct.Email, err)
		}
		log.Info().Str("email", acct.Email).Str("role", acct.Role.String()).Msg("seeded account")
	}
	return nil
}
