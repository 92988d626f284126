package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("email already registered")
)

// UsersListResponse is a page of users.
type UsersListResponse struct {
	Users  []*User `json:"users"`
	Total  int     `json:"total"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

type UserRepo interface {
	// Create stores a new user, assigning an ID when empty. Fails with
	// ErrEmailExists when the email is already taken.
	Create(ctx context.Context, user *User) error
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, email string) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, offset, limit int) (UsersListResponse, error)
	SetBlocked(ctx context.Context, email string, blocked bool) error
	SetLastLogin(ctx context.Context, email string, at time.Time) error
}
