package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jrsteele09/go-shop-console/users"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "email", "password_hash", "first_name", "last_name", "phone", "avatar", "role", "date_joined", "last_login", "blocked"}

func createTestRepo(t *testing.T) (*UserRepo, pgxmock.PgxPoolIface) {
	t.Helper()

	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockDB.Close)

	return NewUserRepo(mockDB), mockDB
}

func TestUserRepo_Create(t *testing.T) {
	tests := []struct {
		name    string
		setupDB func(pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "inserts lowercased email",
			setupDB: func(mockDB pgxmock.PgxPoolIface) {
				mockDB.ExpectExec("INSERT INTO users").
					WithArgs(pgxmock.AnyArg(), "jane@test.com", "hash", "Jane", "Doe", "", "", "staff", pgxmock.AnyArg(), pgxmock.AnyArg(), false).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate email",
			setupDB: func(mockDB pgxmock.PgxPoolIface) {
				mockDB.ExpectExec("INSERT INTO users").
					WithArgs(pgxmock.AnyArg(), "jane@test.com", "hash", "Jane", "Doe", "", "", "staff", pgxmock.AnyArg(), pgxmock.AnyArg(), false).
					WillReturnError(&pgconn.PgError{Code: uniqueViolation})
			},
			wantErr: users.ErrEmailExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mockDB := createTestRepo(t)
			tt.setupDB(mockDB)

			u := &users.User{
				Email:        "Jane@Test.com",
				PasswordHash: "hash",
				FirstName:    "Jane",
				LastName:     "Doe",
				Role:         users.RoleStaff,
				DateJoined:   time.Now(),
			}
			err := repo.Create(context.Background(), u)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NotEmpty(t, u.ID)
			}
			require.NoError(t, mockDB.ExpectationsWereMet())
		})
	}
}

func TestUserRepo_GetByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mockDB := createTestRepo(t)
		joined := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		lastLogin := joined.Add(time.Hour)

		mockDB.ExpectQuery("SELECT (.+) FROM users WHERE email").
			WithArgs("user@test.com").
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow("u-1", "user@test.com", "hash", "Test", "User", "", "", "USER", joined, &lastLogin, false))

		u, err := repo.GetByEmail(context.Background(), " User@Test.com ")
		require.NoError(t, err)
		require.Equal(t, "u-1", u.ID)
		require.Equal(t, users.RoleUser, u.Role)
		require.True(t, u.LastLogin.Equal(lastLogin))
		require.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mockDB := createTestRepo(t)
		mockDB.ExpectQuery("SELECT (.+) FROM users WHERE email").
			WithArgs("missing@test.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByEmail(context.Background(), "missing@test.com")
		require.ErrorIs(t, err, users.ErrNotFound)
		require.NoError(t, mockDB.ExpectationsWereMet())
	})
}

func TestUserRepo_SetBlocked(t *testing.T) {
	repo, mockDB := createTestRepo(t)

	mockDB.ExpectExec("UPDATE users SET blocked").
		WithArgs("user@test.com", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.SetBlocked(context.Background(), "user@test.com", true))

	mockDB.ExpectExec("UPDATE users SET blocked").
		WithArgs("missing@test.com", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, repo.SetBlocked(context.Background(), "missing@test.com", true), users.ErrNotFound)

	require.NoError(t, mockDB.ExpectationsWereMet())
}
