// Package status defines the error taxonomy shared by the roster engine,
// the scheduler and the HTTP handlers. Every error a mutation can surface
// is one of the types below, so callers can branch with errors.As and
// self-correct (e.g. retry with one of the open slots from a ConflictError).
package status

import (
	"errors"
	"fmt"
	"strings"
)

// ConflictCode identifies why a roster mutation was rejected.
type ConflictCode string

const (
	ConflictSpotTaken         ConflictCode = "SpotTaken"
	ConflictAlreadyPlaying    ConflictCode = "AlreadyPlaying"
	ConflictAlreadyCasting    ConflictCode = "AlreadyCasting"
	ConflictCastersFull       ConflictCode = "CastersFull"
	ConflictInsufficientUsers ConflictCode = "InsufficientEligibleUsers"
)

// Slot is one open (team, role) pair, returned with SpotTaken conflicts so
// the caller can pick an available spot instead of guessing.
type Slot struct {
	Team string `json:"team"`
	Role string `json:"role"`
}

// ValidationError reports malformed input: bad role, bad team name, missing ids.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an absent session, placement or user.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConflictError reports a mutation that lost to current roster state.
// OpenSlots is populated for SpotTaken; Eligible/Missing for
// InsufficientEligibleUsers.
type ConflictError struct {
	Code      ConflictCode
	Message   string
	OpenSlots []Slot
	Eligible  int
	Missing   int
}

func (e *ConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "conflict %s: %s", e.Code, e.Message)
	if len(e.OpenSlots) > 0 {
		fmt.Fprintf(&b, " (open slots: %d)", len(e.OpenSlots))
	}
	return b.String()
}

// AuthorizationError reports an actor that is neither the target user nor an admin.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "authorization: " + e.Reason
}

// ExternalServiceError wraps a failure from the tournament provider or
// another collaborator outside this process.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ConcurrencyError reports a lost race on a session: another mutation holds
// the session lock or committed first. The caller should retry the whole
// mutation.
type ConcurrencyError struct {
	SessionID string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrent mutation in flight for session %s, retry", e.SessionID)
}

// IsConflict reports whether err is a ConflictError with the given code.
func IsConflict(err error, code ConflictCode) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Code == code
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConcurrency reports whether err is a ConcurrencyError.
func IsConcurrency(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}
