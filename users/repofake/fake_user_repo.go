package fakeuserrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-shop-console/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	email := users.NormalizeEmail(user.Email)
	if _, ok := ur.emailIds[email]; ok {
		return users.ErrEmailExists
	}
	ur.store(user, email)
	return nil
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	email := users.NormalizeEmail(user.Email)
	if existingID, ok := ur.emailIds[email]; ok && user.ID == "" {
		user.ID = existingID
	}
	ur.store(user, email)
	return nil
}

func (ur *FakeUserRepo) store(user *users.User, email string) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = email
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[email] = user.ID
}

func (ur *FakeUserRepo) Delete(_ context.Context, email string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	email = users.NormalizeEmail(email)
	userID, ok := ur.emailIds[email]
	if !ok {
		return users.ErrNotFound
	}
	delete(ur.emailIds, email)
	delete(ur.users, userID)
	return nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[users.NormalizeEmail(email)]
	if !ok {
		return nil, users.ErrNotFound
	}
	return ur.copyOf(id), nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if _, ok := ur.users[id]; !ok {
		return nil, users.ErrNotFound
	}
	return ur.copyOf(id), nil
}

func (ur *FakeUserRepo) copyOf(id string) *users.User {
	u := *ur.users[id]
	return &u
}

func (ur *FakeUserRepo) List(_ context.Context, offset, limit int) (users.UsersListResponse, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0, len(ur.users))
	for id := range ur.users {
		userList = append(userList, ur.copyOf(id))
	}

	sort.Slice(userList, func(i, j int) bool {
		return userList[i].Email < userList[j].Email
	})

	total := len(userList)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return users.UsersListResponse{Users: []*users.User{}, Total: total, Offset: offset, Limit: limit}, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	return users.UsersListResponse{
		Users:  userList[offset:end],
		Total:  total,
		Offset: offset,
		Limit:  limit,
	}, nil
}

func (ur *FakeUserRepo) SetBlocked(_ context.Context, email string, blocked bool) error {
	return ur.update(email, func(u *users.User) { u.Blocked = blocked })
}

func (ur *FakeUserRepo) SetLastLogin(_ context.Context, email string, at time.Time) error {
	return ur.update(email, func(u *users.User) { u.LastLogin = at })
}

func (ur *FakeUserRepo) update(email string, apply func(*users.User)) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIds[users.NormalizeEmail(email)]
	if !ok {
		return users.ErrNotFound
	}
	apply(ur.users[id])
	return nil
}
