package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/config"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/store"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/models"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/monitoring"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/utils"
)

// RosterService is the roster mutation engine. Every operation runs under
// a per-session redis lock plus the store's transaction, so concurrent
// mutations on one session serialize: the second either sees the first's
// committed state or fails fast with a ConcurrencyError and retries.
type RosterService struct {
	Store     store.Store
	Redis     *redis.Client // nil disables cross-process locking (tests, memstore dev mode)
	Notifier  Notifier
	Scheduler *Scheduler
	Config    *config.Config
}

func NewRosterService(st store.Store, redisClient *redis.Client, notifier Notifier, scheduler *Scheduler, cfg *config.Config) *RosterService {
	return &RosterService{
		Store:     st,
		Redis:     redisClient,
		Notifier:  notifier,
		Scheduler: scheduler,
		Config:    cfg,
	}
}

func lockKey(sessionID string) string {
	return fmt.Sprintf("scrimlock:%s", sessionID)
}

// acquireLock takes the per-session mutation lock. Not blocking: a held
// lock means another mutation is in flight and the caller retries.
func (s *RosterService) acquireLock(ctx context.Context, sessionID string) (func(), error) {
	if s.Redis == nil {
		return func() {}, nil
	}
	ok, err := s.Redis.SetNX(ctx, lockKey(sessionID), "1", s.Config.MutationLockTTL).Result()
	if err != nil {
		return nil, &status.ExternalServiceError{Service: "redis", Err: err}
	}
	if !ok {
		return nil, &status.ConcurrencyError{SessionID: sessionID}
	}
	return func() {
		s.Redis.Del(context.Background(), lockKey(sessionID))
	}, nil
}

// mutate is the common path for all roster operations: lock, transactional
// apply, edit history, broadcast, then the post-commit scheduler
// re-evaluation (teams full and countdown already elapsed triggers setup
// without waiting for a timer).
func (s *RosterService) mutate(ctx context.Context, sessionID, actingUserID, operation string, payload map[string]any, fn func(*models.Session) error) (*models.Session, error) {
	release, err := s.acquireLock(ctx, sessionID)
	if err != nil {
		monitoring.TrackMutation(operation, "locked")
		return nil, err
	}
	defer release()

	updated, err := s.Store.UpdateSession(ctx, sessionID, fn)
	if err != nil {
		monitoring.TrackMutation(operation, "rejected")
		return nil, err
	}
	monitoring.TrackMutation(operation, "ok")

	payload["op"] = operation
	entry := models.EditEntry{
		Payload:       payload,
		ActingUserID:  actingUserID,
		PreviousTitle: updated.Title,
		CreatedAt:     time.Now(),
	}
	if err := s.Store.AppendEditHistory(ctx, sessionID, entry); err != nil {
		slog.Error("edit history append failed", "scrim_id", sessionID, "error", err)
	}

	if s.Notifier != nil {
		s.Notifier.Broadcast(ScrimTopic(sessionID), map[string]any{
			"type":       "roster_changed",
			"scrim_id":   sessionID,
			"op":         operation,
			"placements": updated.Placements(),
			"casters":    updated.Casters,
			"lobby_host": updated.LobbyHost,
		})
	}

	if s.Scheduler != nil && updated.ReadyForSetup(time.Now()) {
		// synchronous handoff: a roster fill completing the teams after
		// the countdown elapsed triggers setup before this call returns
		if err := s.Scheduler.Initialize(ctx, sessionID); err != nil {
			slog.Error("post-mutation initialization failed", "scrim_id", sessionID, "error", err)
		} else if fresh, err := s.Store.GetSession(ctx, sessionID); err == nil {
			updated = fresh
		}
	}
	return updated, nil
}

// InsertPlacement puts a user into an open slot.
func (s *RosterService) InsertPlacement(ctx context.Context, sessionID, actingUserID, userID, team, role string) (*models.Session, error) {
	teamName, err := models.NormalizeTeam(team)
	if err != nil {
		return nil, err
	}
	roleName, err := models.NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"userId": userID, "team": teamName, "role": string(roleName)}
	return s.mutate(ctx, sessionID, actingUserID, "insertPlacement", payload, func(sess *models.Session) error {
		return sess.InsertPlacement(userID, teamName, roleName)
	})
}

// RemovePlacement takes a user off whichever team holds them.
func (s *RosterService) RemovePlacement(ctx context.Context, sessionID, actingUserID, userID string) (*models.Session, error) {
	payload := map[string]any{"userId": userID}
	return s.mutate(ctx, sessionID, actingUserID, "removePlacement", payload, func(sess *models.Session) error {
		return sess.RemovePlacement(userID)
	})
}

// MovePlacement relocates a user to a new team/role.
func (s *RosterService) MovePlacement(ctx context.Context, sessionID, actingUserID, userID, team, role string) (*models.Session, error) {
	teamName, err := models.NormalizeTeam(team)
	if err != nil {
		return nil, err
	}
	roleName, err := models.NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"userId": userID, "team": teamName, "role": string(roleName)}
	return s.mutate(ctx, sessionID, actingUserID, "movePlacement", payload, func(sess *models.Session) error {
		return sess.MovePlacement(userID, teamName, roleName)
	})
}

// SwapPlacements exchanges two users' slots.
func (s *RosterService) SwapPlacements(ctx context.Context, sessionID, actingUserID, userA, userB string) (*models.Session, error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, &status.ValidationError{Field: "users", Reason: "swap needs two distinct user ids"}
	}
	payload := map[string]any{"userA": userA, "userB": userB}
	return s.mutate(ctx, sessionID, actingUserID, "swapPlacements", payload, func(sess *models.Session) error {
		return sess.SwapPlacements(userA, userB)
	})
}

// InsertCaster adds a caster.
func (s *RosterService) InsertCaster(ctx context.Context, sessionID, actingUserID, userID string) (*models.Session, error) {
	payload := map[string]any{"userId": userID}
	return s.mutate(ctx, sessionID, actingUserID, "insertCaster", payload, func(sess *models.Session) error {
		return sess.InsertCaster(userID)
	})
}

// RemoveCaster drops a caster.
func (s *RosterService) RemoveCaster(ctx context.Context, sessionID, actingUserID, userID string) (*models.Session, error) {
	payload := map[string]any{"userId": userID}
	return s.mutate(ctx, sessionID, actingUserID, "removeCaster", payload, func(sess *models.Session) error {
		return sess.RemoveCaster(userID)
	})
}

// AdminAssignPlacement places any user on behalf of an admin. The
// self-or-admin authorization gate lives in the handlers; roster
// invariants apply identically here.
func (s *RosterService) AdminAssignPlacement(ctx context.Context, sessionID, adminUserID, targetUserID, team, role string) (*models.Session, error) {
	return s.InsertPlacement(ctx, sessionID, adminUserID, targetUserID, team, role)
}

// AdminFillRandom fills every open slot with users drawn uniformly from
// the session's region who are not already in it. All or nothing: with
// too few eligible users nothing is placed.
func (s *RosterService) AdminFillRandom(ctx context.Context, sessionID, adminUserID string) (*models.Session, error) {
	release, err := s.acquireLock(ctx, sessionID)
	if err != nil {
		monitoring.TrackMutation("adminFillRandom", "locked")
		return nil, err
	}
	defer release()

	sess, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	open := sess.OpenSlots()
	if len(open) == 0 {
		return sess, nil
	}

	eligible, err := s.Store.ListEligibleUsers(ctx, sess.Region, sess.Participants())
	if err != nil {
		return nil, err
	}
	if len(eligible) < len(open) {
		monitoring.TrackMutation("adminFillRandom", "rejected")
		return nil, &status.ConflictError{
			Code:     status.ConflictInsufficientUsers,
			Message:  fmt.Sprintf("need %d eligible users in %s, found %d", len(open), sess.Region, len(eligible)),
			Eligible: len(eligible),
			Missing:  len(open) - len(eligible),
		}
	}

	picks, err := utils.PickRandom(eligible, len(open))
	if err != nil {
		return nil, fmt.Errorf("fill random: %w", err)
	}

	updated, err := s.Store.UpdateSession(ctx, sessionID, func(cur *models.Session) error {
		slots := cur.OpenSlots()
		if len(slots) != len(picks) {
			// roster changed underneath us despite the lock; bail out whole
			return &status.ConcurrencyError{SessionID: sessionID}
		}
		for i, slot := range slots {
			role, err := models.NormalizeRole(slot.Role)
			if err != nil {
				return err
			}
			if err := cur.InsertPlacement(picks[i], slot.Team, role); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		monitoring.TrackMutation("adminFillRandom", "rejected")
		return nil, err
	}
	monitoring.TrackMutation("adminFillRandom", "ok")

	if err := s.Store.AppendEditHistory(ctx, sessionID, models.EditEntry{
		Payload:       map[string]any{"op": "adminFillRandom", "filled": picks},
		ActingUserID:  adminUserID,
		PreviousTitle: updated.Title,
		CreatedAt:     time.Now(),
	}); err != nil {
		slog.Error("edit history append failed", "scrim_id", sessionID, "error", err)
	}

	if s.Notifier != nil {
		s.Notifier.Broadcast(ScrimTopic(sessionID), map[string]any{
			"type":       "roster_changed",
			"scrim_id":   sessionID,
			"op":         "adminFillRandom",
			"placements": updated.Placements(),
			"casters":    updated.Casters,
			"lobby_host": updated.LobbyHost,
		})
		s.Notifier.NotifyUsers(picks, map[string]any{
			"type":     "added_to_scrim",
			"scrim_id": sessionID,
			"title":    updated.Title,
		})
	}

	if s.Scheduler != nil && updated.ReadyForSetup(time.Now()) {
		if err := s.Scheduler.Initialize(ctx, sessionID); err != nil {
			slog.Error("post-mutation initialization failed", "scrim_id", sessionID, "error", err)
		} else if fresh, err := s.Store.GetSession(ctx, sessionID); err == nil {
			updated = fresh
		}
	}
	return updated, nil
}
