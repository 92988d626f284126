package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-shop-console/session"
	"github.com/jrsteele09/go-shop-console/users"
	"github.com/stretchr/testify/require"
)

const testToken = "tok-123"

func testUser(role users.Role) *session.User {
	return &session.User{ID: "u-1", Email: "user@test.com", Name: "Test User", Role: role}
}

// failingStorage fails writes to one key
type failingStorage struct {
	*session.MemoryStorage
	failKey string
}

func (f *failingStorage) Set(ctx context.Context, key, value string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.MemoryStorage.Set(ctx, key, value)
}

func readyStore(t *testing.T, storage session.Storage) *session.Store {
	t.Helper()
	store := session.NewStore(storage)
	require.NoError(t, store.Initialize(context.Background(), session.ProfileFetcherFunc(
		func(ctx context.Context, token string) (*session.User, error) {
			return nil, errors.New("no profile")
		})))
	return store
}

func TestStore_SetThenClear(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()
	store := readyStore(t, storage)

	var (
		mu   sync.Mutex
		seen []session.Snapshot
	)
	cancel := store.Subscribe(func(s session.Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer cancel()

	require.False(t, store.Snapshot().IsAuthenticated())

	require.NoError(t, store.SetSession(ctx, testUser(users.RoleUser), testToken))
	snap := store.Snapshot()
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, users.RoleUser, snap.Role())
	sess, ok := snap.Session()
	require.True(t, ok)
	require.Equal(t, testToken, sess.Token)

	token, ok, err := storage.Get(ctx, store.TokenKey())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testToken, token)

	require.NoError(t, store.ClearSession(ctx))
	require.False(t, store.Snapshot().IsAuthenticated())
	_, ok = store.Snapshot().Session()
	require.False(t, ok)
	require.Equal(t, 0, storage.Len())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	for _, s := range seen {
		// never half a session
		require.Equal(t, s.User != nil, s.Token != "")
	}
}

func TestStore_SetSessionRejectsIncomplete(t *testing.T) {
	ctx := context.Background()
	store := readyStore(t, session.NewMemoryStorage())

	require.ErrorIs(t, store.SetSession(ctx, nil, testToken), session.ErrIncompleteSession)
	require.ErrorIs(t, store.SetSession(ctx, testUser(users.RoleUser), ""), session.ErrIncompleteSession)

	var unknown users.ErrUnknownRole
	require.ErrorAs(t, store.SetSession(ctx, testUser("root"), testToken), &unknown)
	require.False(t, store.Snapshot().IsAuthenticated())
}

func TestStore_SetSessionRollsBackPartialWrite(t *testing.T) {
	ctx := context.Background()
	storage := &failingStorage{MemoryStorage: session.NewMemoryStorage()}
	store := readyStore(t, storage)
	storage.failKey = store.UserKey()

	err := store.SetSession(ctx, testUser(users.RoleUser), testToken)
	require.Error(t, err)
	require.False(t, store.Snapshot().IsAuthenticated())
	require.Equal(t, 0, storage.Len())
}

func TestStore_ClearSessionTwice(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()
	store := readyStore(t, storage)
	require.NoError(t, store.SetSession(ctx, testUser(users.RoleAdmin), testToken))

	require.NoError(t, store.ClearSession(ctx))
	once := store.Snapshot()
	require.NoError(t, store.ClearSession(ctx))
	require.Equal(t, once, store.Snapshot())
	require.Equal(t, 0, storage.Len())

	// and on a store that never had a session
	fresh := readyStore(t, session.NewMemoryStorage())
	require.NoError(t, fresh.ClearSession(ctx))
	require.NoError(t, fresh.ClearSession(ctx))
}

func TestStore_RestoreAfterReload(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()

	first := readyStore(t, storage)
	user := testUser("ADMIN")
	require.NoError(t, first.SetSession(ctx, user, testToken))

	// the profile endpoint echoes the role in whatever case it likes
	reloaded := session.NewStore(storage)
	require.True(t, reloaded.Snapshot().Loading)
	err := reloaded.Initialize(ctx, session.ProfileFetcherFunc(func(ctx context.Context, token string) (*session.User, error) {
		require.Equal(t, testToken, token)
		u := *user
		u.Role = "Admin"
		return &u, nil
	}))
	require.NoError(t, err)

	snap := reloaded.Snapshot()
	require.False(t, snap.Loading)
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, users.RoleAdmin, snap.Role())

	raw, ok, err := storage.Get(ctx, reloaded.UserKey())
	require.NoError(t, err)
	require.True(t, ok)
	var stored session.User
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	require.Equal(t, users.RoleAdmin, stored.Role)
}

func TestStore_InitializeOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing persisted", func(t *testing.T) {
		var calls atomic.Int32
		store := session.NewStore(session.NewMemoryStorage())
		require.NoError(t, store.Initialize(ctx, session.ProfileFetcherFunc(func(context.Context, string) (*session.User, error) {
			calls.Add(1)
			return nil, nil
		})))
		require.False(t, store.Snapshot().Loading)
		require.False(t, store.Snapshot().IsAuthenticated())
		require.Zero(t, calls.Load())
	})

	t.Run("profile rejected leaves storage alone", func(t *testing.T) {
		storage := session.NewMemoryStorage()
		require.NoError(t, storage.Set(ctx, "shop.session.token", testToken))
		require.NoError(t, storage.Set(ctx, "shop.session.user", `{"id":"u-1","email":"user@test.com","role":"user"}`))

		store := session.NewStore(storage)
		require.NoError(t, store.Initialize(ctx, session.ProfileFetcherFunc(func(context.Context, string) (*session.User, error) {
			return nil, errors.New("401")
		})))

		snap := store.Snapshot()
		require.False(t, snap.Loading)
		require.False(t, snap.IsAuthenticated())
		require.Empty(t, store.Token())
		require.Equal(t, 2, storage.Len())
	})

	t.Run("runs once", func(t *testing.T) {
		storage := session.NewMemoryStorage()
		require.NoError(t, storage.Set(ctx, "shop.session.token", testToken))

		var calls atomic.Int32
		fetcher := session.ProfileFetcherFunc(func(context.Context, string) (*session.User, error) {
			calls.Add(1)
			return testUser(users.RoleStaff), nil
		})
		store := session.NewStore(storage)

		var loadingTransitions atomic.Int32
		store.Subscribe(func(s session.Snapshot) {
			if !s.Loading {
				loadingTransitions.Add(1)
			}
		})

		var wg sync.WaitGroup
		errs := make(chan error, 5)
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.Initialize(ctx, fetcher)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		require.Equal(t, int32(1), calls.Load())
		require.True(t, store.Snapshot().IsAuthenticated())
		require.Equal(t, int32(1), loadingTransitions.Load())
	})
}

func TestStore_InitializeCallerGoesAway(t *testing.T) {
	storage := session.NewMemoryStorage()
	require.NoError(t, storage.Set(context.Background(), "shop.session.token", testToken))

	release := make(chan struct{})
	fetcher := session.ProfileFetcherFunc(func(ctx context.Context, token string) (*session.User, error) {
		<-release
		return testUser(users.RoleUser), nil
	})

	store := session.NewStore(storage)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- store.Initialize(ctx, fetcher) }()

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.True(t, store.Snapshot().Loading)

	close(release)
	select {
	case <-store.Ready():
	case <-time.After(time.Second):
		t.Fatal("store never finished loading")
	}
	require.False(t, store.Snapshot().Loading)
	require.True(t, store.Snapshot().IsAuthenticated())
}

func TestStore_LoginDuringRestoreWins(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, "shop.session.token", "stale"))

	entered := make(chan struct{})
	release := make(chan struct{})
	store := session.NewStore(storage)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Initialize(ctx, session.ProfileFetcherFunc(func(context.Context, string) (*session.User, error) {
			close(entered)
			<-release
			return testUser(users.RoleUser), nil
		}))
	}()

	<-entered

	require.NoError(t, store.SetSession(ctx, testUser(users.RoleAdmin), "fresh"))
	close(release)
	<-done

	snap := store.Snapshot()
	require.Equal(t, "fresh", snap.Token)
	require.Equal(t, users.RoleAdmin, snap.Role())
}

// stallingStorage blocks the first read until release is closed
type stallingStorage struct {
	*session.MemoryStorage
	first   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if s.first.CompareAndSwap(false, true) {
		close(s.entered)
		<-s.release
	}
	return s.MemoryStorage.Get(ctx, key)
}

func TestStore_LoginDuringTokenReadWins(t *testing.T) {
	ctx := context.Background()
	storage := &stallingStorage{
		MemoryStorage: session.NewMemoryStorage(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	require.NoError(t, storage.MemoryStorage.Set(ctx, "shop.session.token", "stale"))

	var fetched atomic.Int32
	store := session.NewStore(storage)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Initialize(ctx, session.ProfileFetcherFunc(func(context.Context, string) (*session.User, error) {
			fetched.Add(1)
			return nil, errors.New("token rejected")
		}))
	}()

	<-storage.entered
	require.NoError(t, store.SetSession(ctx, testUser(users.RoleAdmin), "fresh"))
	close(storage.release)
	<-done

	snap := store.Snapshot()
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, "fresh", snap.Token)
	require.Equal(t, users.RoleAdmin, snap.Role())
	require.Zero(t, fetched.Load())

	stored, ok, err := storage.MemoryStorage.Get(ctx, "shop.session.token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh", stored)
}

func TestStore_Namespace(t *testing.T) {
	store := session.NewStore(session.NewMemoryStorage(), session.WithNamespace("admin"))
	require.Equal(t, "admin.token", store.TokenKey())
	require.Equal(t, "admin.user", store.UserKey())
}
