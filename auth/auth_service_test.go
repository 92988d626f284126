package auth_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-shop-console/auth"
	autherrors "github.com/jrsteele09/go-shop-console/internal/errors"
	"github.com/jrsteele09/go-shop-console/internal/validation"
	"github.com/jrsteele09/go-shop-console/token"
	"github.com/jrsteele09/go-shop-console/token/refresh"
	"github.com/jrsteele09/go-shop-console/users"
	fakeuserrepo "github.com/jrsteele09/go-shop-console/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

const (
	secretStr        = "1234"
	issuer           = "com.testissuer"
	testUserID       = "user-1"
	testUserEmail    = "john.doe@example.com"
	testUserPassword = "Password123"
)

// testFixture holds all test dependencies
type testFixture struct {
	userRepo *fakeuserrepo.FakeUserRepo
	tokens   *token.Manager
	service  *auth.Service
	now      time.Time
}

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T, options ...auth.ServiceOption) *testFixture {
	t.Helper()

	f := &testFixture{
		userRepo: fakeuserrepo.NewFakeUserRepo(),
		now:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	nowFunc := func() time.Time { return f.now }

	refresh.NowTimeFunc = nowFunc
	t.Cleanup(func() { refresh.NowTimeFunc = time.Now })

	f.tokens = token.New(
		token.NewHMACSigner(secretStr),
		refresh.NewManager(refresh.NewInMemoryRepo(), 24*time.Hour),
		token.WithIssuer(issuer),
		token.WithAccessTokenExpiry(15*time.Minute),
		token.WithNowFunc(nowFunc),
	)

	service, err := auth.NewService(f.userRepo, f.tokens, append([]auth.ServiceOption{auth.WithNowTime(nowFunc)}, options...)...)
	require.NoError(t, err)
	f.service = service
	return f
}

// createTestUser creates and stores a test user
func (f *testFixture) createTestUser(t *testing.T, role users.Role, blocked bool) {
	t.Helper()

	passwordHash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)

	err = f.userRepo.Upsert(context.Background(), &users.User{
		ID:           testUserID,
		Email:        testUserEmail,
		PasswordHash: passwordHash,
		FirstName:    "John",
		LastName:     "Doe",
		Role:         role,
		Blocked:      blocked,
	})
	require.NoError(t, err)
}

func validRegistration() auth.RegisterRequest {
	return auth.RegisterRequest{
		Email:           "Jane.Roe@Example.com",
		Password:        "Secret12",
		ConfirmPassword: "Secret12",
		FirstName:       "Jane",
		LastName:        "Roe",
	}
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := auth.NewService(nil, nil)
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t, users.RoleStaff, false)

		sess, err := f.service.Login(ctx, auth.LoginRequest{Email: "JOHN.DOE@example.com", Password: testUserPassword})
		require.NoError(t, err)
		require.Equal(t, testUserID, sess.User.ID)
		require.Equal(t, users.RoleStaff, sess.User.Role)
		require.NotEmpty(t, sess.Token.AccessToken)

		stored, err := f.userRepo.GetByEmail(ctx, testUserEmail)
		require.NoError(t, err)
		require.Equal(t, f.now, stored.LastLogin)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t, users.RoleUser, false)

		_, err := f.service.Login(ctx, auth.LoginRequest{Email: testUserEmail, Password: "Wrong123"})
		require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.service.Login(ctx, auth.LoginRequest{Email: "nobody@example.com", Password: testUserPassword})
		require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	})

	t.Run("unknown user still pays for a hash comparison", func(t *testing.T) {
		var hashes []string
		f := setupTestFixture(t, auth.WithPasswordCheck(func(password, hash string) bool {
			hashes = append(hashes, hash)
			return users.CheckPasswordHash(password, hash)
		}))

		_, err := f.service.Login(ctx, auth.LoginRequest{Email: "nobody@example.com", Password: testUserPassword})
		require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
		require.Len(t, hashes, 1)
		require.True(t, strings.HasPrefix(hashes[0], "$2"))

		f.createTestUser(t, users.RoleUser, false)
		_, err = f.service.Login(ctx, auth.LoginRequest{Email: testUserEmail, Password: "Wrong123"})
		require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
		require.Len(t, hashes, 2)
	})

	t.Run("blocked", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t, users.RoleUser, true)

		_, err := f.service.Login(ctx, auth.LoginRequest{Email: testUserEmail, Password: testUserPassword})
		require.ErrorIs(t, err, autherrors.ErrUserBlocked)
	})

	t.Run("malformed email", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.service.Login(ctx, auth.LoginRequest{Email: "john", Password: testUserPassword})
		var fe *validation.FieldErrors
		require.ErrorAs(t, err, &fe)
		require.Contains(t, fe.Errors, "email")
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("signs in when configured", func(t *testing.T) {
		f := setupTestFixture(t, auth.WithIssueTokenOnRegister(true))

		sess, err := f.service.Register(ctx, validRegistration())
		require.NoError(t, err)
		require.Equal(t, "jane.roe@example.com", sess.User.Email)
		require.Equal(t, users.RoleUser, sess.User.Role)
		require.NotNil(t, sess.Token)
		require.NotEmpty(t, sess.User.ID)
	})

	t.Run("requires login when not configured", func(t *testing.T) {
		f := setupTestFixture(t)

		sess, err := f.service.Register(ctx, validRegistration())
		require.NoError(t, err)
		require.Nil(t, sess.Token)

		_, err = f.service.Login(ctx, auth.LoginRequest{Email: "jane.roe@example.com", Password: "Secret12"})
		require.NoError(t, err)
	})

	t.Run("email taken", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t, users.RoleUser, false)

		req := validRegistration()
		req.Email = testUserEmail
		_, err := f.service.Register(ctx, req)
		require.ErrorIs(t, err, autherrors.ErrEmailTaken)
	})

	t.Run("field errors", func(t *testing.T) {
		f := setupTestFixture(t)

		req := validRegistration()
		req.Password = "secret"
		req.ConfirmPassword = "other"
		req.LastName = ""
		_, err := f.service.Register(ctx, req)

		var fe *validation.FieldErrors
		require.ErrorAs(t, err, &fe)
		require.Equal(t, "password must contain at least one uppercase letter", fe.Errors["password"])
		require.Equal(t, "Passwords do not match", fe.Errors["confirmPassword"])
		require.Equal(t, "lastName is required", fe.Errors["lastName"])
	})
}

func TestRefreshProfileLogout(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.createTestUser(t, users.RoleAdmin, false)

	sess, err := f.service.Login(ctx, auth.LoginRequest{Email: testUserEmail, Password: testUserPassword})
	require.NoError(t, err)

	profile, err := f.service.Profile(ctx, sess.Token.AccessToken)
	require.NoError(t, err)
	require.Equal(t, users.RoleAdmin, profile.User.Role)
	require.Equal(t, sess.Token.AccessToken, profile.Token.AccessToken)

	// the access token has expired but the grant is still live
	f.now = f.now.Add(time.Hour)
	_, err = f.service.Profile(ctx, sess.Token.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrTokenExpired)

	refreshed, err := f.service.Refresh(ctx, sess.Token.AccessToken)
	require.NoError(t, err)
	require.NotEqual(t, sess.Token.AccessToken, refreshed.Token.AccessToken)

	_, err = f.service.Refresh(ctx, sess.Token.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrRefreshWindowClosed)

	require.NoError(t, f.service.Logout(ctx, refreshed.Token.AccessToken))
	_, err = f.service.Profile(ctx, refreshed.Token.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrGrantNotFound)
	_, err = f.service.Refresh(ctx, refreshed.Token.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrRefreshWindowClosed)
}

func TestRefresh_BlockedUserLosesSession(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.createTestUser(t, users.RoleUser, false)

	sess, err := f.service.Login(ctx, auth.LoginRequest{Email: testUserEmail, Password: testUserPassword})
	require.NoError(t, err)

	require.NoError(t, f.userRepo.SetBlocked(ctx, testUserEmail, true))
	_, err = f.service.Refresh(ctx, sess.Token.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrUserBlocked)

	require.NoError(t, f.userRepo.SetBlocked(ctx, testUserEmail, false))
	_, err = f.service.Refresh(ctx, sess.Token.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrRefreshWindowClosed)
}

// stuckGrantRepo cannot delete grants
type stuckGrantRepo struct {
	*refresh.InMemoryRepo
}

func (r stuckGrantRepo) Delete(string) (bool, error) {
	return false, errors.New("grant store unavailable")
}

func TestRefresh_RevokeFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	userRepo := fakeuserrepo.NewFakeUserRepo()
	tokens := token.New(
		token.NewHMACSigner(secretStr),
		refresh.NewManager(stuckGrantRepo{refresh.NewInMemoryRepo()}, 24*time.Hour),
		token.WithIssuer(issuer),
	)
	service, err := auth.NewService(userRepo, tokens)
	require.NoError(t, err)

	f := &testFixture{userRepo: userRepo}
	f.createTestUser(t, users.RoleUser, false)

	sess, err := service.Login(ctx, auth.LoginRequest{Email: testUserEmail, Password: testUserPassword})
	require.NoError(t, err)
	require.NoError(t, userRepo.SetBlocked(ctx, testUserEmail, true))

	_, err = service.Refresh(ctx, sess.Token.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrUserBlocked)
	require.Contains(t, buf.String(), "failed to revoke session of inactive user")
	require.Contains(t, buf.String(), "grant store unavailable")
}

func TestCleanupExpiredSessions(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.createTestUser(t, users.RoleUser, false)

	_, err := f.service.Login(ctx, auth.LoginRequest{Email: testUserEmail, Password: testUserPassword})
	require.NoError(t, err)

	f.now = f.now.Add(25 * time.Hour)
	removed, err := f.service.CleanupExpiredSessions()
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}
