package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/store"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/models"
)

// SessionService owns the scrim lifecycle outside the roster: creation,
// info edits, winner recording, cancellation and the provider callback.
type SessionService struct {
	Store     store.Store
	Notifier  Notifier
	Scheduler *Scheduler
}

func NewSessionService(st store.Store, notifier Notifier, scheduler *Scheduler) *SessionService {
	return &SessionService{Store: st, Notifier: notifier, Scheduler: scheduler}
}

// CreateSessionInput is the caller-supplied part of a new scrim.
type CreateSessionInput struct {
	Region        string    `json:"region"`
	Title         string    `json:"title"`
	GameStartTime time.Time `json:"gameStartTime"`
	CreatedBy     string    `json:"createdBy"`
}

// CreateSession persists a pending session and arms its countdown timer.
func (s *SessionService) CreateSession(ctx context.Context, in CreateSessionInput) (*models.Session, error) {
	if in.Region == "" {
		return nil, &status.ValidationError{Field: "region", Reason: "missing region"}
	}
	if in.GameStartTime.IsZero() {
		return nil, &status.ValidationError{Field: "gameStartTime", Reason: "missing start time"}
	}
	if in.CreatedBy == "" {
		return nil, &status.ValidationError{Field: "createdBy", Reason: "missing creator"}
	}
	title := in.Title
	if title == "" {
		title = fmt.Sprintf("%s's scrim", in.CreatedBy)
	}

	sess := models.NewSession("", in.Region, title, in.GameStartTime, in.CreatedBy, time.Now())
	if err := s.Store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	if s.Scheduler != nil {
		if err := s.Scheduler.Schedule(ctx, sess); err != nil {
			slog.Error("scheduling new scrim failed", "scrim_id", sess.ID, "error", err)
		}
	}
	return sess, nil
}

func (s *SessionService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.Store.GetSession(ctx, id)
}

func (s *SessionService) ListSessions(ctx context.Context, filter store.SessionFilter) ([]*models.Session, error) {
	return s.Store.ListSessions(ctx, filter)
}

// UpdateSessionInfo changes title and/or start time. A start time change
// rearms the countdown unless the lobby setup already ran; the old title
// is kept in the edit history.
func (s *SessionService) UpdateSessionInfo(ctx context.Context, sessionID, actingUserID string, title *string, gameStartTime *time.Time) (*models.Session, error) {
	if title == nil && gameStartTime == nil {
		return s.Store.GetSession(ctx, sessionID)
	}

	var previousTitle string
	var startChanged bool
	updated, err := s.Store.UpdateSession(ctx, sessionID, func(sess *models.Session) error {
		if sess.Status.Terminal() {
			return &status.ValidationError{
				Field:  "session",
				Reason: fmt.Sprintf("session is %s and can no longer be edited", sess.Status),
			}
		}
		previousTitle = sess.Title
		if title != nil && *title != "" {
			sess.Title = *title
		}
		if gameStartTime != nil && !gameStartTime.IsZero() && !gameStartTime.Equal(sess.GameStartTime) {
			sess.GameStartTime = *gameStartTime
			startChanged = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := models.EditEntry{
		Payload:       map[string]any{"op": "updateInfo", "title": updated.Title, "gameStartTime": updated.GameStartTime},
		ActingUserID:  actingUserID,
		PreviousTitle: previousTitle,
		CreatedAt:     time.Now(),
	}
	if err := s.Store.AppendEditHistory(ctx, sessionID, entry); err != nil {
		slog.Error("edit history append failed", "scrim_id", sessionID, "error", err)
	}

	if startChanged && s.Scheduler != nil {
		if err := s.Scheduler.Reschedule(ctx, updated); err != nil {
			slog.Error("reschedule after edit failed", "scrim_id", sessionID, "error", err)
		}
	}
	if s.Notifier != nil {
		s.Notifier.Broadcast(ScrimTopic(sessionID), map[string]any{
			"type":          "scrim_updated",
			"scrim_id":      sessionID,
			"title":         updated.Title,
			"gameStartTime": updated.GameStartTime,
		})
	}
	return updated, nil
}

// SetWinner records the winning team manually and completes the session.
func (s *SessionService) SetWinner(ctx context.Context, sessionID, actingUserID, team string) (*models.Session, error) {
	teamName, err := models.NormalizeTeam(team)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.UpdateSession(ctx, sessionID, func(sess *models.Session) error {
		return sess.RecordWinner(teamName, time.Now())
	})
	if err != nil {
		return nil, err
	}
	if s.Scheduler != nil {
		s.Scheduler.Cancel(sessionID)
	}
	if err := s.Store.AppendEditHistory(ctx, sessionID, models.EditEntry{
		Payload:       map[string]any{"op": "setWinner", "winningTeam": teamName},
		ActingUserID:  actingUserID,
		PreviousTitle: updated.Title,
		CreatedAt:     time.Now(),
	}); err != nil {
		slog.Error("edit history append failed", "scrim_id", sessionID, "error", err)
	}
	s.announceResult(updated)
	return updated, nil
}

// CancelSession terminates a scrim by admin or creator decision. The
// countdown timer is disarmed and everyone placed is told.
func (s *SessionService) CancelSession(ctx context.Context, sessionID, actingUserID string) (*models.Session, error) {
	updated, err := s.Store.UpdateSession(ctx, sessionID, func(sess *models.Session) error {
		return sess.Transition(models.StatusCancelled, time.Now())
	})
	if err != nil {
		return nil, err
	}
	if s.Scheduler != nil {
		s.Scheduler.Cancel(sessionID)
	}
	if err := s.Store.AppendEditHistory(ctx, sessionID, models.EditEntry{
		Payload:       map[string]any{"op": "cancel"},
		ActingUserID:  actingUserID,
		PreviousTitle: updated.Title,
		CreatedAt:     time.Now(),
	}); err != nil {
		slog.Error("edit history append failed", "scrim_id", sessionID, "error", err)
	}
	if s.Notifier != nil {
		s.Notifier.Broadcast(ScrimTopic(sessionID), map[string]any{
			"type":     "scrim_cancelled",
			"scrim_id": sessionID,
		})
		s.Notifier.NotifyUsers(updated.Participants(), map[string]any{
			"type":     "scrim_cancelled",
			"scrim_id": sessionID,
			"title":    updated.Title,
		})
	}
	return updated, nil
}

// DeleteSession removes the record entirely. Admin only; cancelled and
// stale sessions are the expected targets.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	if s.Scheduler != nil {
		s.Scheduler.Cancel(sessionID)
	}
	return s.Store.DeleteSession(ctx, sessionID)
}

// CompleteFromCallback resolves a provider game-result callback: the
// metadata tag locates the session, the winning participant list is
// matched against the rosters and the session completes. A repeat
// delivery of the same result is a no-op.
func (s *SessionService) CompleteFromCallback(ctx context.Context, tag string, winnerUserIDs []string) (*models.Session, error) {
	if tag == "" {
		return nil, &status.ValidationError{Field: "metaData", Reason: "missing callback tag"}
	}
	sess, err := s.Store.FindSessionByCallbackTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	winner := sess.TeamOf(winnerUserIDs)
	if winner == "" {
		return nil, &status.ValidationError{
			Field:  "winningTeam",
			Reason: "participant list does not match either roster",
		}
	}
	updated, err := s.Store.UpdateSession(ctx, sess.ID, func(cur *models.Session) error {
		return cur.RecordWinner(winner, time.Now())
	})
	if err != nil {
		return nil, err
	}
	if s.Scheduler != nil {
		s.Scheduler.Cancel(sess.ID)
	}
	s.announceResult(updated)
	return updated, nil
}

func (s *SessionService) announceResult(sess *models.Session) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Broadcast(ScrimTopic(sess.ID), map[string]any{
		"type":        "scrim_completed",
		"scrim_id":    sess.ID,
		"winningTeam": sess.WinningTeam,
	})
	s.Notifier.NotifyUsers(sess.Participants(), map[string]any{
		"type":        "scrim_completed",
		"scrim_id":    sess.ID,
		"winningTeam": sess.WinningTeam,
	})
}
