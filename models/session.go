package models

import (
	"fmt"
	"time"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusAbandoned
}

// allowed transitions out of each non-terminal state
var transitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusCancelled, StatusAbandoned},
	StatusActive:  {StatusCompleted, StatusCancelled, StatusAbandoned},
}

// MaxCasters is the caster cap per session.
const MaxCasters = 2

// TournamentSetup is the persisted result of the external lobby setup.
// SetupCompleted is the idempotency guard: once true, Initialize is a no-op.
type TournamentSetup struct {
	ProviderID     int       `json:"providerId"`
	TournamentID   int       `json:"tournamentId"`
	Code           string    `json:"code"`
	CallbackTag    string    `json:"callbackTag"`
	SetupCompleted bool      `json:"setupCompleted"`
	SetupAt        time.Time `json:"setupAt"`
}

// EditEntry is one append-only edit history record. Entries are never
// mutated after creation.
type EditEntry struct {
	Payload       map[string]any `json:"payload"`
	ActingUserID  string         `json:"actingUserId"`
	PreviousTitle string         `json:"previousTitle"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Session is one scrim: two rosters, optional casters, a scheduled start
// and a lifecycle ending in completed, cancelled or abandoned.
type Session struct {
	ID              string           `json:"id"`
	Status          Status           `json:"status"`
	StatusUpdatedAt time.Time        `json:"statusUpdatedAt"`
	Region          string           `json:"region"`
	Title           string           `json:"title"`
	GameStartTime   time.Time        `json:"gameStartTime"`
	TeamOne         Roster           `json:"teamOne"`
	TeamTwo         Roster           `json:"teamTwo"`
	Casters         []string         `json:"casters"`
	LobbyHost       string           `json:"lobbyHost,omitempty"`
	Tournament      *TournamentSetup `json:"tournament,omitempty"`
	WinningTeam     string           `json:"winningTeam,omitempty"`
	CreatedBy       string           `json:"createdBy"`
	Version         int              `json:"version"`
}

// NewSession returns a pending session with empty rosters.
func NewSession(id, region, title string, start time.Time, createdBy string, now time.Time) *Session {
	return &Session{
		ID:              id,
		Status:          StatusPending,
		StatusUpdatedAt: now,
		Region:          region,
		Title:           title,
		GameStartTime:   start,
		TeamOne:         Roster{},
		TeamTwo:         Roster{},
		CreatedBy:       createdBy,
		Version:         1,
	}
}

// Clone returns a deep copy, so stores can hand out sessions without
// sharing roster maps.
func (s *Session) Clone() *Session {
	out := *s
	out.TeamOne = s.TeamOne.Clone()
	out.TeamTwo = s.TeamTwo.Clone()
	out.Casters = append([]string(nil), s.Casters...)
	if s.Tournament != nil {
		t := *s.Tournament
		out.Tournament = &t
	}
	return &out
}

// Transition moves the session to a new status, recording the time.
// Exits from terminal states are rejected.
func (s *Session) Transition(to Status, now time.Time) error {
	if s.Status == to {
		return nil
	}
	for _, allowed := range transitions[s.Status] {
		if allowed == to {
			s.Status = to
			s.StatusUpdatedAt = now
			return nil
		}
	}
	return &status.ValidationError{
		Field:  "status",
		Reason: fmt.Sprintf("cannot transition from %s to %s", s.Status, to),
	}
}

// Team returns the roster for a normalized team name.
func (s *Session) Team(team string) Roster {
	if team == TeamTwo {
		return s.TeamTwo
	}
	return s.TeamOne
}

// FindPlacement locates a user's current slot across both teams.
func (s *Session) FindPlacement(userID string) (team string, role Role, ok bool) {
	if r, found := s.TeamOne.RoleOf(userID); found {
		return TeamOne, r, true
	}
	if r, found := s.TeamTwo.RoleOf(userID); found {
		return TeamTwo, r, true
	}
	return "", "", false
}

// IsCaster reports whether the user is currently casting.
func (s *Session) IsCaster(userID string) bool {
	for _, c := range s.Casters {
		if c == userID {
			return true
		}
	}
	return false
}

// HasUser reports whether the user occupies any roster or caster spot.
func (s *Session) HasUser(userID string) bool {
	if _, _, ok := s.FindPlacement(userID); ok {
		return true
	}
	return s.IsCaster(userID)
}

// OpenSlots enumerates free (team, role) pairs in canonical order.
func (s *Session) OpenSlots() []status.Slot {
	var out []status.Slot
	for _, team := range []string{TeamOne, TeamTwo} {
		roster := s.Team(team)
		for _, role := range RoleOrder {
			if _, taken := roster[role]; !taken {
				out = append(out, status.Slot{Team: team, Role: string(role)})
			}
		}
	}
	return out
}

// Players returns all team members, team one first, in role order.
func (s *Session) Players() []string {
	return append(s.TeamOne.Users(), s.TeamTwo.Users()...)
}

// Participants returns players plus casters, the notification audience.
func (s *Session) Participants() []string {
	return append(s.Players(), s.Casters...)
}

// Placements renders both rosters in canonical order.
func (s *Session) Placements() []Placement {
	var out []Placement
	for _, team := range []string{TeamOne, TeamTwo} {
		roster := s.Team(team)
		for _, role := range RoleOrder {
			if uid, ok := roster[role]; ok {
				out = append(out, Placement{Team: team, Role: role, UserID: uid})
			}
		}
	}
	return out
}

// TeamsFull reports whether both rosters are at five players.
func (s *Session) TeamsFull() bool {
	return s.TeamOne.Full() && s.TeamTwo.Full()
}

// SetupCompleted reports whether the external tournament setup already ran.
func (s *Session) SetupCompleted() bool {
	return s.Tournament != nil && s.Tournament.SetupCompleted
}

// ReadyForSetup reports the initialize condition a mutation checks after
// commit: rosters full, countdown elapsed, setup not yet done.
func (s *Session) ReadyForSetup(now time.Time) bool {
	return !s.Status.Terminal() &&
		s.TeamsFull() &&
		!now.Before(s.GameStartTime) &&
		!s.SetupCompleted()
}

// RecomputeLobbyHost rederives the captain after a roster change:
// the first occupied slot in role order, team one before team two.
// Empty rosters leave no host.
func (s *Session) RecomputeLobbyHost() {
	for _, team := range []string{TeamOne, TeamTwo} {
		roster := s.Team(team)
		for _, role := range RoleOrder {
			if uid, ok := roster[role]; ok {
				s.LobbyHost = uid
				return
			}
		}
	}
	s.LobbyHost = ""
}

// mutable reports whether roster mutations are still accepted.
func (s *Session) mutable() error {
	if s.Status.Terminal() {
		return &status.ValidationError{
			Field:  "session",
			Reason: fmt.Sprintf("session is %s and no longer accepts roster changes", s.Status),
		}
	}
	return nil
}

// InsertPlacement puts a user into an open (team, role) slot.
func (s *Session) InsertPlacement(userID, team string, role Role) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if userID == "" {
		return &status.ValidationError{Field: "userId", Reason: "missing user id"}
	}
	if _, _, ok := s.FindPlacement(userID); ok {
		return &status.ConflictError{Code: status.ConflictAlreadyPlaying, Message: fmt.Sprintf("user %s already has a placement", userID)}
	}
	if s.IsCaster(userID) {
		return &status.ConflictError{Code: status.ConflictAlreadyCasting, Message: fmt.Sprintf("user %s is casting this scrim", userID)}
	}
	roster := s.Team(team)
	if holder, taken := roster[role]; taken {
		return &status.ConflictError{
			Code:      status.ConflictSpotTaken,
			Message:   fmt.Sprintf("%s/%s is taken by %s", team, role, holder),
			OpenSlots: s.OpenSlots(),
		}
	}
	roster[role] = userID
	s.RecomputeLobbyHost()
	return nil
}

// RemovePlacement takes a user out of whichever team holds them.
func (s *Session) RemovePlacement(userID string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	team, role, ok := s.FindPlacement(userID)
	if !ok {
		return &status.NotFoundError{Resource: "placement", ID: userID}
	}
	delete(s.Team(team), role)
	if s.LobbyHost == userID {
		s.LobbyHost = ""
	}
	s.RecomputeLobbyHost()
	return nil
}

// MovePlacement relocates a user to a new (team, role). A cross-team move
// removes and reinserts in one step; the map representation makes the swap
// atomic, the user is never duplicated or absent from both teams.
func (s *Session) MovePlacement(userID, newTeam string, newRole Role) error {
	if err := s.mutable(); err != nil {
		return err
	}
	curTeam, curRole, ok := s.FindPlacement(userID)
	if !ok {
		return &status.NotFoundError{Resource: "placement", ID: userID}
	}
	target := s.Team(newTeam)
	if holder, taken := target[newRole]; taken && holder != userID {
		return &status.ConflictError{
			Code:      status.ConflictSpotTaken,
			Message:   fmt.Sprintf("%s/%s is taken by %s", newTeam, newRole, holder),
			OpenSlots: s.OpenSlots(),
		}
	}
	delete(s.Team(curTeam), curRole)
	target[newRole] = userID
	s.RecomputeLobbyHost()
	return nil
}

// SwapPlacements exchanges two users' slots, each slot keeping its team
// and role. If only one user is placed, the unplaced user moves into that
// slot and the placed user steps out. With neither placed there is
// nothing to swap.
func (s *Session) SwapPlacements(userA, userB string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	teamA, roleA, okA := s.FindPlacement(userA)
	teamB, roleB, okB := s.FindPlacement(userB)
	switch {
	case okA && okB:
		s.Team(teamA)[roleA] = userB
		s.Team(teamB)[roleB] = userA
	case okA && !okB:
		// degrade: B has no slot, so A's slot simply changes hands
		if s.IsCaster(userB) {
			return &status.ConflictError{Code: status.ConflictAlreadyCasting, Message: fmt.Sprintf("user %s is casting this scrim", userB)}
		}
		s.Team(teamA)[roleA] = userB
	case !okA && okB:
		if s.IsCaster(userA) {
			return &status.ConflictError{Code: status.ConflictAlreadyCasting, Message: fmt.Sprintf("user %s is casting this scrim", userA)}
		}
		s.Team(teamB)[roleB] = userA
	default:
		return &status.NotFoundError{Resource: "placement", ID: userA}
	}
	s.RecomputeLobbyHost()
	return nil
}

// InsertCaster adds a caster, enforcing the cap and the caster/player
// mutual exclusion.
func (s *Session) InsertCaster(userID string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if userID == "" {
		return &status.ValidationError{Field: "userId", Reason: "missing user id"}
	}
	if s.IsCaster(userID) {
		return &status.ConflictError{Code: status.ConflictAlreadyCasting, Message: fmt.Sprintf("user %s is already casting", userID)}
	}
	if _, _, ok := s.FindPlacement(userID); ok {
		return &status.ConflictError{Code: status.ConflictAlreadyPlaying, Message: fmt.Sprintf("user %s is playing this scrim", userID)}
	}
	if len(s.Casters) >= MaxCasters {
		return &status.ConflictError{Code: status.ConflictCastersFull, Message: fmt.Sprintf("caster spots are full (%d)", MaxCasters)}
	}
	s.Casters = append(s.Casters, userID)
	return nil
}

// RemoveCaster drops a caster.
func (s *Session) RemoveCaster(userID string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	for i, c := range s.Casters {
		if c == userID {
			s.Casters = append(s.Casters[:i], s.Casters[i+1:]...)
			return nil
		}
	}
	return &status.NotFoundError{Resource: "caster", ID: userID}
}

// TeamOf reports which team the given users mostly belong to, used to
// resolve the winning side from a provider callback participant list.
func (s *Session) TeamOf(userIDs []string) string {
	one, two := 0, 0
	for _, uid := range userIDs {
		if _, ok := s.TeamOne.RoleOf(uid); ok {
			one++
		}
		if _, ok := s.TeamTwo.RoleOf(uid); ok {
			two++
		}
	}
	switch {
	case one > two:
		return TeamOne
	case two > one:
		return TeamTwo
	}
	return ""
}

// RecordWinner stores the winning team and completes the session.
func (s *Session) RecordWinner(team string, now time.Time) error {
	if team != TeamOne && team != TeamTwo {
		return &status.ValidationError{Field: "winningTeam", Reason: "unknown team " + team}
	}
	if s.WinningTeam != "" {
		return nil // already recorded
	}
	if err := s.Transition(StatusCompleted, now); err != nil {
		return err
	}
	s.WinningTeam = team
	return nil
}
