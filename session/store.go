package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrIncompleteSession = errors.New("session needs both a user and a token")

// ProfileFetcher resolves the user behind a persisted token.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token string) (*User, error)
}

// ProfileFetcherFunc adapts a function to ProfileFetcher.
type ProfileFetcherFunc func(ctx context.Context, token string) (*User, error)

func (f ProfileFetcherFunc) FetchProfile(ctx context.Context, token string) (*User, error) {
	return f(ctx, token)
}

// Store owns the current session. It is the only writer of the namespaced
// token and user keys in its Storage.
type Store struct {
	storage     Storage
	tokenKey    string
	userKey     string
	initTimeout time.Duration

	writeMu sync.Mutex // serialises mutations, held across storage writes

	mu      sync.RWMutex
	user    *User
	token   string
	loading bool
	version uint64

	initOnce sync.Once
	ready    chan struct{}

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// StoreOption configures a Store instance.
type StoreOption func(*Store)

// WithNamespace sets the key pair to <namespace>.token and <namespace>.user.
func WithNamespace(namespace string) StoreOption {
	return func(s *Store) {
		s.tokenKey, s.userKey = Keys(namespace)
	}
}

// WithInitTimeout bounds session restoration. Zero means no bound.
func WithInitTimeout(timeout time.Duration) StoreOption {
	return func(s *Store) {
		s.initTimeout = timeout
	}
}

// NewStore returns a store in the loading state. Call Initialize once to
// restore the persisted session.
func NewStore(storage Storage, opts ...StoreOption) *Store {
	s := &Store{
		storage:     storage,
		loading:     true,
		ready:       make(chan struct{}),
		subs:        make(map[int]func(Snapshot)),
		initTimeout: 15 * time.Second,
	}
	s.tokenKey, s.userKey = Keys(DefaultNamespace)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) TokenKey() string { return s.tokenKey }
func (s *Store) UserKey() string  { return s.userKey }

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Token: s.token, Loading: s.loading}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	// A speculatively held token is not a session
	if snap.User == nil {
		snap.Token = ""
	}
	return snap
}

// Token is the bearer token of the current session, if any.
func (s *Store) Token() string {
	return s.Snapshot().Token
}

// Ready is closed once restoration has finished, whatever its outcome.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Initialize restores the persisted session. Only the first call does any
// work; later calls wait for the same result. Restoration is detached from
// ctx: if ctx ends first Initialize returns ctx.Err() while the store still
// finishes loading in the background. Restoration failures are logged and
// leave the store unauthenticated.
func (s *Store) Initialize(ctx context.Context, fetcher ProfileFetcher) error {
	s.initOnce.Do(func() {
		go s.restore(context.WithoutCancel(ctx), fetcher)
	})

	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) restore(ctx context.Context, fetcher ProfileFetcher) {
	defer s.finishLoading()

	if s.initTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.initTimeout)
		defer cancel()
	}

	startVersion := s.currentVersion()

	token, ok, err := s.storage.Get(ctx, s.tokenKey)
	if err != nil {
		log.Warn().Err(err).Str("key", s.tokenKey).Msg("session restore: read token failed")
		return
	}
	if !ok || token == "" {
		return
	}

	s.mu.Lock()
	if s.version != startVersion {
		// A login or logout during the read owns the state now
		s.mu.Unlock()
		return
	}
	s.token = token
	s.mu.Unlock()

	user, err := fetcher.FetchProfile(ctx, token)
	if err == nil && user == nil {
		err = errors.New("empty profile")
	}
	var normalized User
	if err == nil {
		normalized, err = user.Normalized()
	}
	if err != nil {
		log.Info().Err(err).Msg("session restore: persisted token rejected")
		s.dropSpeculativeToken(startVersion)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// A login or logout during restoration wins
	if s.currentVersion() != startVersion {
		return
	}
	if err := s.persist(ctx, &normalized, token); err != nil {
		log.Warn().Err(err).Msg("session restore: persist failed")
		s.dropSpeculativeToken(startVersion)
		return
	}
	s.commit(&normalized, token)
}

func (s *Store) dropSpeculativeToken(startVersion uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version == startVersion {
		s.token = ""
		s.user = nil
	}
}

func (s *Store) currentVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) finishLoading() {
	s.mu.Lock()
	s.loading = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	close(s.ready)
	s.notify(snap)
}

// SetSession replaces the session. Both storage keys are written before the
// in-memory state changes, so dependents never see a session that was not
// persisted. The role is canonicalised on the way in.
func (s *Store) SetSession(ctx context.Context, user *User, token string) error {
	if user == nil || token == "" {
		return ErrIncompleteSession
	}
	normalized, err := user.Normalized()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.persist(ctx, &normalized, token); err != nil {
		return err
	}
	s.commit(&normalized, token)
	return nil
}

// persist writes both keys, restoring the previous values if the second write fails.
func (s *Store) persist(ctx context.Context, user *User, token string) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}

	prevToken, hadToken, err := s.storage.Get(ctx, s.tokenKey)
	if err != nil {
		return fmt.Errorf("read session token: %w", err)
	}
	if err := s.storage.Set(ctx, s.tokenKey, token); err != nil {
		return fmt.Errorf("write session token: %w", err)
	}
	if err := s.storage.Set(ctx, s.userKey, string(data)); err != nil {
		var rollbackErr error
		if hadToken {
			rollbackErr = s.storage.Set(ctx, s.tokenKey, prevToken)
		} else {
			rollbackErr = s.storage.Delete(ctx, s.tokenKey)
		}
		if rollbackErr != nil {
			log.Error().Err(rollbackErr).Msg("session token rollback failed")
		}
		return fmt.Errorf("write session user: %w", err)
	}
	return nil
}

func (s *Store) commit(user *User, token string) {
	s.mu.Lock()
	s.user = user
	s.token = token
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// ClearSession signs out locally. Memory is cleared even when storage
// fails; calling it with no session is a no-op on storage.
func (s *Store) ClearSession(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	changed := s.user != nil || s.token != ""
	s.user = nil
	s.token = ""
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	err := errors.Join(
		s.storage.Delete(ctx, s.tokenKey),
		s.storage.Delete(ctx, s.userKey),
	)
	if changed {
		s.notify(snap)
	}
	if err != nil {
		return fmt.Errorf("clear session storage: %w", err)
	}
	return nil
}

// Subscribe calls fn with a snapshot after every change. fn runs
// synchronously and must not mutate the store. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
