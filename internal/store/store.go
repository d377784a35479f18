// Package store is the persistence boundary for scrim sessions. The engine
// and the scheduler only see the Store interface; the PocketBase
// implementation is the durable one, the in-memory implementation backs
// tests and local development without a pb_data volume.
package store

import (
	"context"
	"time"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/models"
)

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	Region string
	Status models.Status
	From   time.Time
	To     time.Time
}

// Store is the transactional session persistence contract. UpdateSession
// is the single mutation primitive: it re-reads the session, applies fn
// and commits atomically, bumping the version. No partial state is ever
// committed; any error from fn rolls the whole mutation back.
type Store interface {
	CreateSession(ctx context.Context, sess *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]*models.Session, error)

	// ListForRecovery returns every non-terminal session whose tournament
	// setup has not completed, for the scheduler's startup scan.
	ListForRecovery(ctx context.Context) ([]*models.Session, error)

	// FindSessionByCallbackTag correlates a provider callback metadata tag
	// back to exactly one session.
	FindSessionByCallbackTag(ctx context.Context, tag string) (*models.Session, error)

	// ListEligibleUsers returns ids of users in the region, minus excluded,
	// for admin random fill.
	ListEligibleUsers(ctx context.Context, region string, exclude []string) ([]string, error)

	// AppendEditHistory appends one immutable audit entry for a session.
	AppendEditHistory(ctx context.Context, sessionID string, entry models.EditEntry) error
}
