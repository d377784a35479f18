package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/models"
)

// MemStore is an in-memory Store. The single mutex gives it the same
// contract as the durable store: one committed mutation per session at a
// time, read-modify-write atomic, rollback by discarding the working copy.
// Used by tests and by local runs without a pb_data volume.
type MemStore struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*models.Session
	history  map[string][]models.EditEntry
	users    map[string]string // user id -> region
}

func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]*models.Session),
		history:  make(map[string][]models.EditEntry),
		users:    make(map[string]string),
	}
}

// AddUser registers a user for eligibility queries.
func (s *MemStore) AddUser(id, region string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = region
}

func (s *MemStore) CreateSession(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		s.seq++
		sess.ID = fmt.Sprintf("scrim-%d", s.seq)
	}
	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("memstore: session %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *MemStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, &status.NotFoundError{Resource: "session", ID: id}
	}
	return sess.Clone(), nil
}

func (s *MemStore) UpdateSession(_ context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, &status.NotFoundError{Resource: "session", ID: id}
	}
	work := sess.Clone()
	if err := fn(work); err != nil {
		return nil, err // working copy discarded, nothing committed
	}
	work.Version++
	s.sessions[id] = work
	return work.Clone(), nil
}

func (s *MemStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return &status.NotFoundError{Resource: "session", ID: id}
	}
	delete(s.sessions, id)
	delete(s.history, id)
	return nil
}

func (s *MemStore) ListSessions(_ context.Context, filter SessionFilter) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Session
	for _, sess := range s.sessions {
		if filter.Region != "" && sess.Region != filter.Region {
			continue
		}
		if filter.Status != "" && sess.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && sess.GameStartTime.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && sess.GameStartTime.After(filter.To) {
			continue
		}
		out = append(out, sess.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Session) int {
		return b.GameStartTime.Compare(a.GameStartTime)
	})
	return out, nil
}

func (s *MemStore) ListForRecovery(_ context.Context) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.Status.Terminal() || sess.SetupCompleted() {
			continue
		}
		out = append(out, sess.Clone())
	}
	return out, nil
}

func (s *MemStore) FindSessionByCallbackTag(_ context.Context, tag string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.Tournament != nil && sess.Tournament.CallbackTag == tag {
			return sess.Clone(), nil
		}
	}
	return nil, &status.NotFoundError{Resource: "session", ID: "tag:" + tag}
}

func (s *MemStore) ListEligibleUsers(_ context.Context, region string, exclude []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, userRegion := range s.users {
		if userRegion != region || slices.Contains(exclude, id) {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (s *MemStore) AppendEditHistory(_ context.Context, sessionID string, entry models.EditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[sessionID] = append(s.history[sessionID], entry)
	return nil
}

// EditHistory returns the appended entries for a session, oldest first.
func (s *MemStore) EditHistory(sessionID string) []models.EditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history[sessionID])
}
