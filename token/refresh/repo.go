package refresh

import (
	"errors"
	"time"
)

var ErrGrantNotFound = errors.New("refresh grant not found")

// Grant is the server-side record behind a signed-in session. Its ID travels
// in the access token's sid claim; deleting the grant ends the session for
// both refresh and profile requests.
type Grant struct {
	ID       string    // Opaque random identifier
	UserID   string    // Owner of the session
	IssuedAt time.Time // When the grant was created or last rotated
}

// Repo manages server-side storage of grants keyed by ID.
type Repo interface {
	Upsert(grant *Grant) error
	// Delete reports whether this call removed the grant
	Delete(id string) (bool, error)
	Get(id string) (*Grant, error)
	DeleteIssuedBefore(cutoff time.Time) (int, error)
}
