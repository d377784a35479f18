package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/models"
)

func newStoredSession(t *testing.T, st *MemStore, region string, start time.Time) *models.Session {
	t.Helper()
	sess := models.NewSession("", region, "Test Scrim", start, "creator", time.Now())
	require.NoError(t, st.CreateSession(context.Background(), sess))
	return sess
}

func TestMemStore_CreateAssignsID(t *testing.T) {
	st := NewMemStore()
	sess := newStoredSession(t, st, "NA", time.Now().Add(time.Hour))
	assert.NotEmpty(t, sess.ID)
}

func TestMemStore_UpdateSession_CommitBumpsVersion(t *testing.T) {
	st := NewMemStore()
	ctx := context.Background()
	sess := newStoredSession(t, st, "NA", time.Now().Add(time.Hour))

	updated, err := st.UpdateSession(ctx, sess.ID, func(cur *models.Session) error {
		return cur.InsertPlacement("u1", models.TeamOne, models.RoleTop)
	})
	require.NoError(t, err)
	// new sessions start at version 1; every committed write bumps it
	assert.Equal(t, 2, updated.Version)

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TeamOne.Count())
}

func TestMemStore_UpdateSession_RollbackOnError(t *testing.T) {
	st := NewMemStore()
	ctx := context.Background()
	sess := newStoredSession(t, st, "NA", time.Now().Add(time.Hour))

	boom := errors.New("boom")
	_, err := st.UpdateSession(ctx, sess.ID, func(cur *models.Session) error {
		require.NoError(t, cur.InsertPlacement("u1", models.TeamOne, models.RoleTop))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, getErr := st.GetSession(ctx, sess.ID)
	require.NoError(t, getErr)
	assert.Zero(t, got.TeamOne.Count(), "partial writes discarded")
	assert.Equal(t, 1, got.Version, "version unchanged on rollback")
}

func TestMemStore_GetSession_ReturnsIsolatedCopy(t *testing.T) {
	st := NewMemStore()
	ctx := context.Background()
	sess := newStoredSession(t, st, "NA", time.Now().Add(time.Hour))

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NoError(t, got.InsertPlacement("u1", models.TeamOne, models.RoleTop))

	fresh, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Zero(t, fresh.TeamOne.Count())
}

func TestMemStore_ListSessions_Filter(t *testing.T) {
	st := NewMemStore()
	ctx := context.Background()
	now := time.Now()

	na := newStoredSession(t, st, "NA", now.Add(time.Hour))
	newStoredSession(t, st, "EUW", now.Add(time.Hour))
	old := newStoredSession(t, st, "NA", now.Add(-48*time.Hour))

	list, err := st.ListSessions(ctx, SessionFilter{Region: "NA"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = st.ListSessions(ctx, SessionFilter{Region: "NA", From: now})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, na.ID, list[0].ID)

	list, err = st.ListSessions(ctx, SessionFilter{To: now})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, old.ID, list[0].ID)
}

func TestMemStore_ListForRecovery(t *testing.T) {
	st := NewMemStore()
	ctx := context.Background()

	open := newStoredSession(t, st, "NA", time.Now().Add(time.Hour))

	done := newStoredSession(t, st, "NA", time.Now().Add(time.Hour))
	_, err := st.UpdateSession(ctx, done.ID, func(cur *models.Session) error {
		cur.Tournament = &models.TournamentSetup{SetupCompleted: true}
		return nil
	})
	require.NoError(t, err)

	cancelled := newStoredSession(t, st, "NA", time.Now().Add(time.Hour))
	_, err = st.UpdateSession(ctx, cancelled.ID, func(cur *models.Session) error {
		return cur.Transition(models.StatusCancelled, time.Now())
	})
	require.NoError(t, err)

	list, err := st.ListForRecovery(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)
}

func TestMemStore_FindSessionByCallbackTag(t *testing.T) {
	st := NewMemStore()
	ctx := context.Background()
	sess := newStoredSession(t, st, "NA", time.Now().Add(time.Hour))

	_, err := st.UpdateSession(ctx, sess.ID, func(cur *models.Session) error {
		cur.Tournament = &models.TournamentSetup{CallbackTag: "TAG1", SetupCompleted: true}
		return nil
	})
	require.NoError(t, err)

	got, err := st.FindSessionByCallbackTag(ctx, "TAG1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = st.FindSessionByCallbackTag(ctx, "TAG2")
	assert.True(t, status.IsNotFound(err))
}

func TestMemStore_ListEligibleUsers(t *testing.T) {
	st := NewMemStore()
	st.AddUser("u1", "NA")
	st.AddUser("u2", "NA")
	st.AddUser("u3", "EUW")

	users, err := st.ListEligibleUsers(context.Background(), "NA", []string{"u2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}

func TestMemStore_EditHistory_AppendOnly(t *testing.T) {
	st := NewMemStore()
	ctx := context.Background()
	sess := newStoredSession(t, st, "NA", time.Now().Add(time.Hour))

	for i, op := range []string{"insertPlacement", "removePlacement"} {
		err := st.AppendEditHistory(ctx, sess.ID, models.EditEntry{
			Payload:      map[string]any{"op": op},
			ActingUserID: "u1",
			CreatedAt:    time.Now().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	history := st.EditHistory(sess.ID)
	require.Len(t, history, 2)
	assert.Equal(t, "insertPlacement", history[0].Payload["op"])
	assert.Equal(t, "removePlacement", history[1].Payload["op"])
}
