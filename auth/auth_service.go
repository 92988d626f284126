package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-shop-console/internal/errors"
	"github.com/jrsteele09/go-shop-console/internal/validation"
	"github.com/jrsteele09/go-shop-console/token"
	"github.com/jrsteele09/go-shop-console/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// LoginRequest is the body of a login call.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,shopemail"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of a registration call.
type RegisterRequest struct {
	Email           string `json:"email" validate:"required,shopemail,max=254"`
	Password        string `json:"password" validate:"required,password,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	FirstName       string `json:"firstName" validate:"required,max=64"`
	LastName        string `json:"lastName" validate:"required,max=64"`
	Phone           string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Avatar          string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// Session is an authenticated user plus the access token issued for them.
// Token is nil after a registration that does not sign the user in.
type Session struct {
	User  *users.User
	Token *token.Issued
}

// Service implements the identity operations behind the /api/auth routes.
type Service struct {
	users                users.UserRepo
	tokens               *token.Manager
	validator            *validation.Validator
	issueTokenOnRegister bool
	checkPassword        func(password, hash string) bool
	nowTime              func() time.Time // injectable for testing
}

// unknownUserHash is compared against when the email has no account, so a
// miss costs the same bcrypt work as a wrong password.
var unknownUserHash = sync.OnceValue(func() string {
	hash, err := users.HashPassword("unknown-user-placeholder")
	if err != nil {
		log.Error().Err(err).Msg("failed to prepare placeholder password hash")
		return ""
	}
	return hash
})

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithPasswordCheck replaces the bcrypt comparison (primarily for testing)
func WithPasswordCheck(check func(password, hash string) bool) ServiceOption {
	return func(s *Service) {
		s.checkPassword = check
	}
}

// WithIssueTokenOnRegister signs new accounts in straight away.
func WithIssueTokenOnRegister(issue bool) ServiceOption {
	return func(s *Service) {
		s.issueTokenOnRegister = issue
	}
}

func NewService(userRepo users.UserRepo, tokens *token.Manager, options ...ServiceOption) (*Service, error) {
	if userRepo == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}

	s := &Service{
		users:     userRepo,
		tokens:    tokens,
		validator:     validation.New(),
		checkPassword: users.CheckPasswordHash,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login checks the credentials and opens a new session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, users.NormalizeEmail(req.Email))
	if errors.Is(err, users.ErrNotFound) {
		s.checkPassword(req.Password, unknownUserHash())
		return nil, autherrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] GetByEmail")
	}

	if !s.checkPassword(req.Password, user.PasswordHash) {
		return nil, autherrors.ErrInvalidCredentials
	}
	if user.Blocked {
		return nil, autherrors.ErrUserBlocked
	}

	now := s.nowTime()
	if err := s.users.SetLastLogin(ctx, user.Email, now); err != nil {
		log.Warn().Err(err).Str("email", user.Email).Msg("failed to record last login")
	}
	user.LastLogin = now

	issued, err := s.tokens.Issue(user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] Issue")
	}
	return &Session{User: user, Token: issued}, nil
}

// Register creates a user account with the user role. Validation failures
// are returned as *validation.FieldErrors.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] HashPassword")
	}

	user := &users.User{
		ID:           uuid.New().String(),
		Email:        users.NormalizeEmail(req.Email),
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Avatar:       req.Avatar,
		Role:         users.RoleUser,
		DateJoined:   s.nowTime(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrEmailExists) {
			return nil, autherrors.ErrEmailTaken
		}
		return nil, errors.Wrap(err, "[Service.Register] Create")
	}
	log.Info().Str("email", user.Email).Msg("account registered")

	if !s.issueTokenOnRegister {
		return &Session{User: user}, nil
	}
	issued, err := s.tokens.Issue(user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] Issue")
	}
	return &Session{User: user, Token: issued}, nil
}

// Refresh exchanges a token whose grant is still inside the refresh window
// for a new one. The old grant stops working.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*Session, error) {
	claims, err := s.tokens.VerifyForRefresh(rawToken)
	if err != nil {
		return nil, err
	}

	user, err := s.activeUser(ctx, claims.Subject)
	if err != nil {
		if revokeErr := s.tokens.Revoke(rawToken); revokeErr != nil {
			log.Warn().Err(revokeErr).Str("user_id", claims.Subject).Msg("failed to revoke session of inactive user")
		}
		return nil, err
	}

	issued, err := s.tokens.Reissue(claims, user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: issued}, nil
}

// Profile returns the user behind a valid, unexpired token.
func (s *Service) Profile(ctx context.Context, rawToken string) (*Session, error) {
	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		return nil, err
	}

	user, err := s.activeUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	return &Session{User: user, Token: &token.Issued{
		AccessToken: rawToken,
		ExpiresAt:   claims.ExpiresAt.Time,
		SessionID:   claims.SessionID,
	}}, nil
}

// Logout ends the session the token belongs to.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	return s.tokens.Revoke(rawToken)
}

// CleanupExpiredSessions removes grants that have left the refresh window
func (s *Service) CleanupExpiredSessions() (int, error) {
	return s.tokens.CleanupGrants()
}

func (s *Service) activeUser(ctx context.Context, id string) (*users.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, users.ErrNotFound) {
		return nil, autherrors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Service.activeUser] GetByID")
	}
	if user.Blocked {
		return nil, autherrors.ErrUserBlocked
	}
	return user, nil
}
