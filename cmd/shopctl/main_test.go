package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jrsteele09/go-shop-console/internal/config"
	"github.com/jrsteele09/go-shop-console/server"
	"github.com/jrsteele09/go-shop-console/token/refresh"
	fakeuserrepo "github.com/jrsteele09/go-shop-console/users/repofake"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	identityURL string
	sessionFile string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	t.Setenv("ENV", "TEST")
	t.Setenv("IDENTITY_TOKEN_SECRET", "shopctl-test-secret")
	t.Setenv("IDENTITY_SEED_ACCOUNTS", "true")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	cfg, err := config.New()
	require.NoError(t, err)

	s, err := server.New(cfg, server.Repos{Users: fakeuserrepo.NewFakeUserRepo(), Grants: refresh.NewInMemoryRepo()})
	require.NoError(t, err)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	return &testFixture{
		identityURL: ts.URL,
		sessionFile: filepath.Join(t.TempDir(), "session.json"),
	}
}

// run executes one shopctl invocation, a fresh process as far as the session is concerned.
func (f *testFixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--identity-url", f.identityURL, "--session-file", f.sessionFile, "--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSessionLifecycle(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.run(t, "", "whoami")
	require.ErrorIs(t, err, errNotSignedIn)

	out, err := f.run(t, "User123\n", "login", "--email", "user@test.com")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in to the storefront")

	// the next invocation restores the session from the file
	out, err = f.run(t, "", "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "user@test.com")
	require.Contains(t, out, "user")

	_, err = f.run(t, "", "can", "user")
	require.NoError(t, err)
	out, err = f.run(t, "", "can", "admin,staff")
	require.Error(t, err)
	require.Contains(t, out, "denied: wrong role")

	out, err = f.run(t, "", "refresh")
	require.NoError(t, err)
	require.Contains(t, out, "Session refreshed")

	_, err = f.run(t, "", "logout")
	require.NoError(t, err)
	_, err = f.run(t, "", "whoami")
	require.ErrorIs(t, err, errNotSignedIn)

	out, err = f.run(t, "", "can")
	require.Error(t, err)
	require.Contains(t, out, "sign in first")
}

func TestAdminLoginWithCustomerAccount(t *testing.T) {
	f := setupTestFixture(t)

	out, err := f.run(t, "", "login", "--admin", "--email", "user@test.com", "--password", "User123")
	require.Error(t, err)
	require.Contains(t, out, "This account lacks admin access")

	// nothing was persisted
	_, statErr := os.Stat(f.sessionFile)
	require.True(t, os.IsNotExist(statErr))

	_, err = f.run(t, "", "login", "--admin", "--email", "admin@test.com", "--password", "Admin123")
	require.NoError(t, err)
	_, err = f.run(t, "", "can", "admin")
	require.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	f := setupTestFixture(t)

	out, err := f.run(t, "123\n123\n", "register", "--email", "new@test.com", "--first-name", "Ada", "--last-name", "Shopper")
	require.Error(t, err)
	require.Contains(t, out, "password must be at least 6 characters long")

	out, err = f.run(t, "Secret1\nSecret1\n", "register", "--email", "new@test.com", "--first-name", "Ada", "--last-name", "Shopper")
	require.NoError(t, err)
	require.Contains(t, out, "Account created")
}

func TestUnknownRole(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.run(t, "", "can", "root")
	require.Error(t, err)
}
