package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const grantIDLength = 32 // 32 bytes = 256 bits

// Manager handles grant creation, validation, and rotation
type Manager struct {
	repo   Repo
	window time.Duration
}

// NewManager creates a grant manager. window is how long a grant stays
// refreshable after it was issued or last rotated.
func NewManager(repo Repo, window time.Duration) *Manager {
	return &Manager{
		repo:   repo,
		window: window,
	}
}

// Create generates a new grant for the user and stores it
func (m *Manager) Create(userID string) (*Grant, error) {
	idBytes := make([]byte, grantIDLength)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	grant := &Grant{
		ID:       hex.EncodeToString(idBytes),
		UserID:   userID,
		IssuedAt: NowTimeFunc(),
	}
	if err := m.repo.Upsert(grant); err != nil {
		return nil, fmt.Errorf("failed to store refresh grant: %w", err)
	}
	return grant, nil
}

// Active returns the grant when it exists and is inside the refresh window
func (m *Manager) Active(id string) (*Grant, error) {
	grant, err := m.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if m.IsExpired(grant) {
		_, _ = m.repo.Delete(id)
		return nil, ErrGrantNotFound
	}
	return grant, nil
}

// Rotate replaces a live grant with a fresh one for the same user. When
// two callers rotate the same grant only the one that removes it succeeds.
func (m *Manager) Rotate(id string) (*Grant, error) {
	grant, err := m.Active(id)
	if err != nil {
		return nil, err
	}
	removed, err := m.repo.Delete(grant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete rotated grant: %w", err)
	}
	if !removed {
		return nil, ErrGrantNotFound
	}
	return m.Create(grant.UserID)
}

// Delete removes a grant from storage
func (m *Manager) Delete(id string) error {
	_, err := m.repo.Delete(id)
	return err
}

// IsExpired checks if a grant has left the refresh window
func (m *Manager) IsExpired(g *Grant) bool {
	return NowTimeFunc().Sub(g.IssuedAt) > m.window
}

// Window is the configured refresh window
func (m *Manager) Window() time.Duration {
	return m.window
}

// Cleanup removes grants that can no longer be refreshed
func (m *Manager) Cleanup() (int, error) {
	return m.repo.DeleteIssuedBefore(NowTimeFunc().Add(-m.window))
}
