package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
)

func newTestSession() *Session {
	start := time.Now().Add(time.Hour)
	return NewSession("scrim-1", "NA", "Test Scrim", start, "creator", time.Now())
}

func fillTeams(t *testing.T, s *Session) {
	t.Helper()
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8", "u9", "u10"}
	i := 0
	for _, team := range []string{TeamOne, TeamTwo} {
		for _, role := range RoleOrder {
			require.NoError(t, s.InsertPlacement(users[i], team, role))
			i++
		}
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]Role{
		"top":     RoleTop,
		"TOP":     RoleTop,
		"Jungle":  RoleJungle,
		"mid":     RoleMid,
		"middle":  RoleMid,
		"adc":     RoleADC,
		"bot":     RoleADC,
		"Bottom":  RoleADC,
		"support": RoleSupport,
		"supp":    RoleSupport,
		" Top ":   RoleTop,
	}
	for input, want := range cases {
		role, err := NormalizeRole(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, role, input)
	}

	_, err := NormalizeRole("feeder")
	var ve *status.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestNormalizeTeam(t *testing.T) {
	team, err := NormalizeTeam("teamOne")
	require.NoError(t, err)
	assert.Equal(t, TeamOne, team)

	_, err = NormalizeTeam("teamThree")
	var ve *status.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestSession_InsertPlacement_Success(t *testing.T) {
	s := newTestSession()

	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleMid))

	team, role, ok := s.FindPlacement("u1")
	require.True(t, ok)
	assert.Equal(t, TeamOne, team)
	assert.Equal(t, RoleMid, role)
	assert.Equal(t, "u1", s.LobbyHost)
}

func TestSession_InsertPlacement_SpotTaken(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleMid))

	err := s.InsertPlacement("u2", TeamOne, RoleMid)
	var ce *status.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, status.ConflictSpotTaken, ce.Code)
	assert.Len(t, ce.OpenSlots, 9)

	// the rejected user is nowhere on the rosters
	_, _, ok := s.FindPlacement("u2")
	assert.False(t, ok)
}

func TestSession_InsertPlacement_AlreadyPlaying(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleMid))

	err := s.InsertPlacement("u1", TeamTwo, RoleTop)
	assert.True(t, status.IsConflict(err, status.ConflictAlreadyPlaying))
}

func TestSession_InsertPlacement_CasterExclusion(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertCaster("u1"))

	err := s.InsertPlacement("u1", TeamOne, RoleMid)
	assert.True(t, status.IsConflict(err, status.ConflictAlreadyCasting))
}

func TestSession_RemovePlacement_RederivesLobbyHost(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleTop))
	require.NoError(t, s.InsertPlacement("u2", TeamOne, RoleJungle))
	require.Equal(t, "u1", s.LobbyHost)

	require.NoError(t, s.RemovePlacement("u1"))
	assert.Equal(t, "u2", s.LobbyHost)

	require.NoError(t, s.RemovePlacement("u2"))
	assert.Empty(t, s.LobbyHost)
}

func TestSession_RemovePlacement_NotPlaced(t *testing.T) {
	s := newTestSession()
	err := s.RemovePlacement("ghost")
	assert.True(t, status.IsNotFound(err))
}

func TestSession_MovePlacement_CrossTeam(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleMid))

	require.NoError(t, s.MovePlacement("u1", TeamTwo, RoleSupport))

	team, role, ok := s.FindPlacement("u1")
	require.True(t, ok)
	assert.Equal(t, TeamTwo, team)
	assert.Equal(t, RoleSupport, role)
	assert.Equal(t, 0, s.TeamOne.Count())
}

func TestSession_MovePlacement_TargetTaken(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleMid))
	require.NoError(t, s.InsertPlacement("u2", TeamTwo, RoleSupport))

	err := s.MovePlacement("u1", TeamTwo, RoleSupport)
	assert.True(t, status.IsConflict(err, status.ConflictSpotTaken))

	// nothing moved
	team, role, _ := s.FindPlacement("u1")
	assert.Equal(t, TeamOne, team)
	assert.Equal(t, RoleMid, role)
}

func TestSession_SwapPlacements_BothPlaced(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleMid))
	require.NoError(t, s.InsertPlacement("u2", TeamTwo, RoleTop))

	require.NoError(t, s.SwapPlacements("u1", "u2"))

	team, role, _ := s.FindPlacement("u1")
	assert.Equal(t, TeamTwo, team)
	assert.Equal(t, RoleTop, role)
	team, role, _ = s.FindPlacement("u2")
	assert.Equal(t, TeamOne, team)
	assert.Equal(t, RoleMid, role)
}

func TestSession_SwapPlacements_OneUnplaced(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleMid))

	require.NoError(t, s.SwapPlacements("u1", "u2"))

	team, role, _ := s.FindPlacement("u2")
	assert.Equal(t, TeamOne, team)
	assert.Equal(t, RoleMid, role)
	_, _, ok := s.FindPlacement("u1")
	assert.False(t, ok)
}

func TestSession_SwapPlacements_UnplacedCaster(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleMid))
	require.NoError(t, s.InsertCaster("u2"))

	err := s.SwapPlacements("u1", "u2")
	assert.True(t, status.IsConflict(err, status.ConflictAlreadyCasting))
}

func TestSession_SwapPlacements_NeitherPlaced(t *testing.T) {
	s := newTestSession()
	err := s.SwapPlacements("u1", "u2")
	assert.True(t, status.IsNotFound(err))
}

func TestSession_InsertCaster_CapAndExclusion(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertCaster("c1"))
	require.NoError(t, s.InsertCaster("c2"))

	err := s.InsertCaster("c3")
	assert.True(t, status.IsConflict(err, status.ConflictCastersFull))

	err = s.InsertCaster("c1")
	assert.True(t, status.IsConflict(err, status.ConflictAlreadyCasting))

	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleTop))
	err = s.InsertCaster("u1")
	assert.True(t, status.IsConflict(err, status.ConflictAlreadyPlaying))
}

func TestSession_RemoveCaster(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertCaster("c1"))
	require.NoError(t, s.RemoveCaster("c1"))
	assert.Empty(t, s.Casters)

	err := s.RemoveCaster("c1")
	assert.True(t, status.IsNotFound(err))
}

func TestSession_MutationsRejectedWhenTerminal(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusCancelled, StatusAbandoned} {
		s := newTestSession()
		s.Status = StatusActive
		require.NoError(t, s.Transition(terminal, time.Now()))

		err := s.InsertPlacement("u1", TeamOne, RoleTop)
		var ve *status.ValidationError
		assert.True(t, errors.As(err, &ve), string(terminal))
	}
}

func TestSession_Transition_Rules(t *testing.T) {
	s := newTestSession()
	require.Equal(t, StatusPending, s.Status)

	// pending cannot complete directly
	err := s.Transition(StatusCompleted, time.Now())
	require.Error(t, err)

	require.NoError(t, s.Transition(StatusActive, time.Now()))
	require.NoError(t, s.Transition(StatusCompleted, time.Now()))

	// terminal states accept no exits
	err = s.Transition(StatusActive, time.Now())
	require.Error(t, err)

	// self transition is a no-op
	require.NoError(t, s.Transition(StatusCompleted, time.Now()))
}

func TestSession_OpenSlots_CanonicalOrder(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleTop))

	slots := s.OpenSlots()
	require.Len(t, slots, 9)
	assert.Equal(t, status.Slot{Team: TeamOne, Role: "Jungle"}, slots[0])
	assert.Equal(t, status.Slot{Team: TeamTwo, Role: "Top"}, slots[4])
}

func TestSession_ReadyForSetup(t *testing.T) {
	s := newTestSession()
	now := s.GameStartTime.Add(time.Minute)

	assert.False(t, s.ReadyForSetup(now), "teams not full")

	fillTeams(t, s)
	assert.False(t, s.ReadyForSetup(s.GameStartTime.Add(-time.Minute)), "countdown not elapsed")
	assert.True(t, s.ReadyForSetup(now))

	s.Tournament = &TournamentSetup{SetupCompleted: true}
	assert.False(t, s.ReadyForSetup(now), "setup already done")
}

func TestSession_TeamOf(t *testing.T) {
	s := newTestSession()
	fillTeams(t, s)

	assert.Equal(t, TeamOne, s.TeamOf([]string{"u1", "u2", "u3", "u4", "u5"}))
	assert.Equal(t, TeamTwo, s.TeamOf([]string{"u6", "u7", "u8", "u9", "u10"}))
	assert.Empty(t, s.TeamOf([]string{"stranger"}))
}

func TestSession_RecordWinner(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.Transition(StatusActive, time.Now()))

	require.NoError(t, s.RecordWinner(TeamOne, time.Now()))
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, TeamOne, s.WinningTeam)

	// repeat delivery keeps the first result
	require.NoError(t, s.RecordWinner(TeamTwo, time.Now()))
	assert.Equal(t, TeamOne, s.WinningTeam)
}

func TestSession_Clone_Isolated(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.InsertPlacement("u1", TeamOne, RoleTop))

	clone := s.Clone()
	require.NoError(t, clone.InsertPlacement("u2", TeamOne, RoleJungle))

	assert.Equal(t, 1, s.TeamOne.Count())
	assert.Equal(t, 2, clone.TeamOne.Count())
}
