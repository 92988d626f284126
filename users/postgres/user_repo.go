// Package postgres stores identity users in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-shop-console/users"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	first_name    TEXT NOT NULL DEFAULT '',
	last_name     TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	avatar        TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL,
	date_joined   TIMESTAMPTZ NOT NULL,
	last_login    TIMESTAMPTZ,
	blocked       BOOLEAN NOT NULL DEFAULT FALSE
)`

const selectColumns = `id, email, password_hash, first_name, last_name, phone, avatar, role, date_joined, last_login, blocked`

// DB is the subset of *pgxpool.Pool the repo needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ users.UserRepo = (*UserRepo)(nil)

type UserRepo struct {
	db DB
}

func NewUserRepo(db DB) *UserRepo {
	return &UserRepo{db: db}
}

// Connect opens a pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[postgres Connect] pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("[postgres Connect] ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the users table when missing.
func (r *UserRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("[UserRepo.Migrate] %w", err)
	}
	return nil
}

func (r *UserRepo) Create(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = users.NormalizeEmail(user.Email)

	_, err := r.db.Exec(ctx,
		`INSERT INTO users (`+selectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Phone, user.Avatar,
		string(user.Role), user.DateJoined, nullableTime(user.LastLogin), user.Blocked,
	)
	if isUniqueViolation(err) {
		return users.ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("[UserRepo.Create] %w", err)
	}
	return nil
}

func (r *UserRepo) Upsert(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = users.NormalizeEmail(user.Email)

	_, err := r.db.Exec(ctx,
		`INSERT INTO users (`+selectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			avatar = EXCLUDED.avatar,
			role = EXCLUDED.role,
			blocked = EXCLUDED.blocked`,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Phone, user.Avatar,
		string(user.Role), user.DateJoined, nullableTime(user.LastLogin), user.Blocked,
	)
	if err != nil {
		return fmt.Errorf("[UserRepo.Upsert] %w", err)
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, email string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE email = $1`, users.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("[UserRepo.Delete] %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE email = $1`, users.NormalizeEmail(email))
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("[UserRepo.GetByEmail] %w", err)
	}
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("[UserRepo.GetByID] %w", err)
	}
	return u, nil
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) (users.UsersListResponse, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return users.UsersListResponse{}, fmt.Errorf("[UserRepo.List] count: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM users ORDER BY email OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return users.UsersListResponse{}, fmt.Errorf("[UserRepo.List] query: %w", err)
	}
	defer rows.Close()

	list := make([]*users.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return users.UsersListResponse{}, fmt.Errorf("[UserRepo.List] scan: %w", err)
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return users.UsersListResponse{}, fmt.Errorf("[UserRepo.List] rows: %w", err)
	}

	return users.UsersListResponse{Users: list, Total: total, Offset: offset, Limit: limit}, nil
}

func (r *UserRepo) SetBlocked(ctx context.Context, email string, blocked bool) error {
	return r.updateOne(ctx, "SetBlocked", `UPDATE users SET blocked = $2 WHERE email = $1`, users.NormalizeEmail(email), blocked)
}

func (r *UserRepo) SetLastLogin(ctx context.Context, email string, at time.Time) error {
	return r.updateOne(ctx, "SetLastLogin", `UPDATE users SET last_login = $2 WHERE email = $1`, users.NormalizeEmail(email), at)
}

func (r *UserRepo) updateOne(ctx context.Context, op, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("[UserRepo.%s] %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		u         users.User
		role      string
		lastLogin *time.Time
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Avatar,
		&role, &u.DateJoined, &lastLogin, &u.Blocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Role, err = users.ParseRole(role); err != nil {
		return nil, err
	}
	if lastLogin != nil {
		u.LastLogin = *lastLogin
	}
	return &u, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
