package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-shop-console/internal/errors"
	"github.com/jrsteele09/go-shop-console/token/refresh"
	"github.com/jrsteele09/go-shop-console/users"
	"github.com/pkg/errors"
)

// Claims carried by every access token.
type Claims struct {
	jwt.RegisteredClaims
	Email     string     `json:"email"`
	Role      users.Role `json:"role"`
	SessionID string     `json:"sid"`
}

// Issued is a freshly signed access token.
type Issued struct {
	AccessToken string
	ExpiresAt   time.Time
	SessionID   string
}

type Manager struct {
	signer            Signer
	grants            *refresh.Manager
	issuer            string
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time
}

type ManagerOption func(*Manager)

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithAccessTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(signer Signer, grants *refresh.Manager, options ...ManagerOption) *Manager {
	m := &Manager{
		signer: signer,
		grants: grants,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.issuer == "" {
		m.issuer = "shop-identity"
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Issue opens a new grant for the user and signs an access token bound to it.
func (m *Manager) Issue(user *users.User) (*Issued, error) {
	grant, err := m.grants.Create(user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Issue] grants.Create")
	}
	return m.sign(user, grant.ID)
}

// Verify validates signature, issuer and expiry, and that the token's grant is still live.
func (m *Manager) Verify(raw string) (*Claims, error) {
	claims, err := m.parse(raw)
	if err != nil {
		return nil, err
	}
	if _, err := m.grants.Active(claims.SessionID); err != nil {
		return nil, autherrors.ErrGrantNotFound
	}
	return claims, nil
}

// VerifyForRefresh accepts an expired token as long as its signature is valid
// and its grant is still inside the refresh window.
func (m *Manager) VerifyForRefresh(raw string) (*Claims, error) {
	claims, err := m.parse(raw, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.Issuer != m.issuer {
		return nil, autherrors.ErrInvalidToken
	}
	if _, err := m.grants.Active(claims.SessionID); err != nil {
		return nil, autherrors.ErrRefreshWindowClosed
	}
	return claims, nil
}

// Reissue rotates the grant behind claims and signs a new token for user.
func (m *Manager) Reissue(claims *Claims, user *users.User) (*Issued, error) {
	grant, err := m.grants.Rotate(claims.SessionID)
	if err != nil {
		return nil, autherrors.ErrRefreshWindowClosed
	}
	return m.sign(user, grant.ID)
}

// Revoke ends the session a token belongs to. Expired tokens can still be revoked.
func (m *Manager) Revoke(raw string) error {
	claims, err := m.parse(raw, jwt.WithoutClaimsValidation())
	if err != nil {
		return err
	}
	return m.grants.Delete(claims.SessionID)
}

// CleanupGrants drops grants that can no longer be refreshed.
func (m *Manager) CleanupGrants() (int, error) {
	return m.grants.Cleanup()
}

func (m *Manager) sign(user *users.User, sessionID string) (*Issued, error) {
	now := m.nowFunc()
	expiresAt := now.Add(m.accessTokenExpiry)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
		Email:     user.Email,
		Role:      user.Role,
		SessionID: sessionID,
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.sign]")
	}
	return &Issued{AccessToken: signed, ExpiresAt: expiresAt, SessionID: sessionID}, nil
}

func (m *Manager) parse(raw string, extra ...jwt.ParserOption) (*Claims, error) {
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.nowFunc),
	}, extra...)

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, m.signer.GetVerificationKey, opts...)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, autherrors.ErrTokenExpired
	default:
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "%s", err.Error())
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, autherrors.ErrInvalidToken
	}
	return claims, nil
}
