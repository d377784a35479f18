package provider

import (
	"context"
	"fmt"
	"sync"
)

// Stub is a deterministic in-process Provider for development runs without
// an API key and for scheduler tests.
type Stub struct {
	mu          sync.Mutex
	providers   int
	tournaments int
	codes       int

	// Calls counts CreateLobbyCode invocations, which a test can use to
	// assert setup ran exactly once.
	Calls int

	// Fail, when set, makes every operation return this error.
	Fail error
}

func NewStub() *Stub { return &Stub{} }

func (s *Stub) CreateProvider(_ context.Context, _, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return 0, s.Fail
	}
	s.providers++
	return s.providers, nil
}

func (s *Stub) CreateTournament(_ context.Context, _ string, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return 0, s.Fail
	}
	s.tournaments++
	return 1000 + s.tournaments, nil
}

func (s *Stub) CreateLobbyCode(_ context.Context, tournamentID int, params CodeParams) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	s.codes++
	s.Calls++
	return []string{fmt.Sprintf("STUB-%d-%d-%s", tournamentID, s.codes, params.Metadata)}, nil
}

func (s *Stub) UpdateLobbyCode(_ context.Context, _ string, _ []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Fail
}
