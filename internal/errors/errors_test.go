package errors_test

import (
	"testing"

	autherrors "github.com/jrsteele09/go-shop-console/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	require.NoError(t, autherrors.Wrapf(nil, "login %s", "x"))

	err := autherrors.Wrapf(autherrors.ErrInvalidCredentials, "login %s", "user@test.com")
	require.EqualError(t, err, "login user@test.com: invalid credentials")
	require.True(t, autherrors.Is(err, autherrors.ErrInvalidCredentials))
	require.False(t, autherrors.Is(err, autherrors.ErrUserBlocked))
}
