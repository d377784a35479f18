package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/services/provider"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/store"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/models"
)

func setupTestSessionService(t *testing.T) (*SessionService, *Scheduler, *store.MemStore, *recordingNotifier) {
	t.Helper()
	st := store.NewMemStore()
	notifier := newRecordingNotifier()
	scheduler := NewScheduler(st, provider.NewStub(), notifier, testConfig())
	t.Cleanup(scheduler.Shutdown)
	service := NewSessionService(st, notifier, scheduler)
	return service, scheduler, st, notifier
}

func TestSessionService_CreateSession_SchedulesCountdown(t *testing.T) {
	service, scheduler, _, _ := setupTestSessionService(t)

	sess, err := service.CreateSession(context.Background(), CreateSessionInput{
		Region:        "NA",
		GameStartTime: time.Now().Add(time.Hour),
		CreatedBy:     "creator",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, models.StatusPending, sess.Status)
	assert.Equal(t, "creator's scrim", sess.Title)
	assert.Equal(t, 1, scheduler.TimerCount())
}

func TestSessionService_CreateSession_Validation(t *testing.T) {
	service, _, _, _ := setupTestSessionService(t)
	ctx := context.Background()

	cases := []CreateSessionInput{
		{GameStartTime: time.Now(), CreatedBy: "creator"},
		{Region: "NA", CreatedBy: "creator"},
		{Region: "NA", GameStartTime: time.Now()},
	}
	for _, in := range cases {
		_, err := service.CreateSession(ctx, in)
		var ve *status.ValidationError
		assert.True(t, errors.As(err, &ve), "%+v", in)
	}
}

func TestSessionService_UpdateSessionInfo_TitleAndStart(t *testing.T) {
	service, scheduler, st, _ := setupTestSessionService(t)
	ctx := context.Background()

	sess, err := service.CreateSession(ctx, CreateSessionInput{
		Region:        "NA",
		Title:         "Old Title",
		GameStartTime: time.Now().Add(time.Hour),
		CreatedBy:     "creator",
	})
	require.NoError(t, err)

	newTitle := "New Title"
	newStart := time.Now().Add(2 * time.Hour)
	updated, err := service.UpdateSessionInfo(ctx, sess.ID, "creator", &newTitle, &newStart)
	require.NoError(t, err)

	assert.Equal(t, "New Title", updated.Title)
	assert.True(t, updated.GameStartTime.Equal(newStart))
	assert.Equal(t, 1, scheduler.TimerCount(), "timer replaced, not stacked")

	history := st.EditHistory(sess.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "Old Title", history[0].PreviousTitle)
}

func TestSessionService_UpdateSessionInfo_TerminalRejected(t *testing.T) {
	service, _, st, _ := setupTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, st, time.Now().Add(time.Hour), false)
	_, err := st.UpdateSession(ctx, sess.ID, func(cur *models.Session) error {
		return cur.Transition(models.StatusCancelled, time.Now())
	})
	require.NoError(t, err)

	newTitle := "too late"
	_, err = service.UpdateSessionInfo(ctx, sess.ID, "creator", &newTitle, nil)
	var ve *status.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestSessionService_SetWinner(t *testing.T) {
	service, _, st, notifier := setupTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, st, time.Now().Add(time.Hour), true)
	_, err := st.UpdateSession(ctx, sess.ID, func(cur *models.Session) error {
		return cur.Transition(models.StatusActive, time.Now())
	})
	require.NoError(t, err)

	updated, err := service.SetWinner(ctx, sess.ID, "admin", "teamTwo")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, models.TeamTwo, updated.WinningTeam)
	assert.Contains(t, notifier.broadcastTypes(), "scrim_completed")
}

func TestSessionService_SetWinner_PendingRejected(t *testing.T) {
	service, _, st, _ := setupTestSessionService(t)
	sess := createSession(t, st, time.Now().Add(time.Hour), false)

	_, err := service.SetWinner(context.Background(), sess.ID, "admin", "teamOne")
	require.Error(t, err, "pending sessions have no result to record")
}

func TestSessionService_CancelSession_DisarmsTimer(t *testing.T) {
	service, scheduler, _, notifier := setupTestSessionService(t)
	ctx := context.Background()

	sess, err := service.CreateSession(ctx, CreateSessionInput{
		Region:        "NA",
		GameStartTime: time.Now().Add(time.Hour),
		CreatedBy:     "creator",
	})
	require.NoError(t, err)
	require.Equal(t, 1, scheduler.TimerCount())

	updated, err := service.CancelSession(ctx, sess.ID, "creator")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)
	assert.Zero(t, scheduler.TimerCount())
	assert.Contains(t, notifier.broadcastTypes(), "scrim_cancelled")
}

func TestSessionService_DeleteSession(t *testing.T) {
	service, _, st, _ := setupTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, st, time.Now().Add(time.Hour), false)

	require.NoError(t, service.DeleteSession(ctx, sess.ID))

	_, err := st.GetSession(ctx, sess.ID)
	assert.True(t, status.IsNotFound(err))
}

func TestSessionService_CompleteFromCallback(t *testing.T) {
	service, scheduler, st, _ := setupTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, st, time.Now().Add(-time.Minute), true)
	require.NoError(t, scheduler.Initialize(ctx, sess.ID))

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	tag := got.Tournament.CallbackTag
	require.NotEmpty(t, tag)

	updated, err := service.CompleteFromCallback(ctx, tag, []string{"u6", "u7", "u8", "u9", "u10"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, models.TeamTwo, updated.WinningTeam)

	// duplicate delivery keeps the first result
	updated, err = service.CompleteFromCallback(ctx, tag, []string{"u1", "u2", "u3", "u4", "u5"})
	require.NoError(t, err)
	assert.Equal(t, models.TeamTwo, updated.WinningTeam)
}

func TestSessionService_CompleteFromCallback_UnknownTag(t *testing.T) {
	service, _, _, _ := setupTestSessionService(t)

	_, err := service.CompleteFromCallback(context.Background(), "nope", []string{"u1"})
	assert.True(t, status.IsNotFound(err))
}

func TestSessionService_CompleteFromCallback_UnmatchedParticipants(t *testing.T) {
	service, scheduler, st, _ := setupTestSessionService(t)
	ctx := context.Background()
	sess := createSession(t, st, time.Now().Add(-time.Minute), true)
	require.NoError(t, scheduler.Initialize(ctx, sess.ID))

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)

	_, err = service.CompleteFromCallback(ctx, got.Tournament.CallbackTag, []string{"stranger1", "stranger2"})
	var ve *status.ValidationError
	assert.True(t, errors.As(err, &ve))
}
