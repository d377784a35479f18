package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DannyMichaels/LoL-scrims-finder-sub001/config"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/services/provider"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/status"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/internal/store"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/models"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/monitoring"
	"github.com/DannyMichaels/LoL-scrims-finder-sub001/utils"
)

// Scheduler owns the countdown timer registry: one deferred "countdown
// expired" event per pending session with incomplete tournament setup.
// It is the sole initiator of tournament setup. Lifecycle: Recover at
// startup, Shutdown at exit; nothing else touches the registry.
type Scheduler struct {
	store    store.Store
	provider provider.Provider
	notifier Notifier
	cfg      *config.Config

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool

	// initMu serializes Initialize per session, so a timer firing and a
	// roster mutation's synchronous handoff can never run setup twice
	// concurrently. Different sessions initialize independently.
	initMuGuard sync.Mutex
	initMu      map[string]*sync.Mutex
}

func NewScheduler(st store.Store, prov provider.Provider, notifier Notifier, cfg *config.Config) *Scheduler {
	return &Scheduler{
		store:    st,
		provider: prov,
		notifier: notifier,
		cfg:      cfg,
		timers:   make(map[string]*time.Timer),
		initMu:   make(map[string]*sync.Mutex),
	}
}

// Schedule registers (or replaces) the countdown timer for a session.
// A countdown already expired within the grace window fires immediately;
// one expired beyond it abandons the session.
func (s *Scheduler) Schedule(ctx context.Context, sess *models.Session) error {
	if sess.Status.Terminal() || sess.SetupCompleted() {
		s.Cancel(sess.ID)
		return nil
	}

	delay := time.Until(sess.GameStartTime)
	if delay <= 0 {
		if -delay > s.cfg.AbandonGraceWindow {
			return s.abandon(ctx, sess.ID)
		}
		return s.Initialize(ctx, sess.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	// no duplicate timers: any pre-existing handle is cancelled first
	if existing, ok := s.timers[sess.ID]; ok {
		existing.Stop()
	}
	id := sess.ID
	s.timers[id] = time.AfterFunc(delay, func() {
		s.onCountdownExpired(id)
	})
	monitoring.SetScheduledTimers(len(s.timers))
	slog.Info("scheduled scrim countdown", "scrim_id", id, "fires_in", delay.Round(time.Second).String())
	return nil
}

// onCountdownExpired runs on the timer's own goroutine, so one session's
// slow initialization never delays another session's timer.
func (s *Scheduler) onCountdownExpired(id string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	monitoring.SetScheduledTimers(len(s.timers))
	s.mu.Unlock()

	if err := s.Initialize(context.Background(), id); err != nil {
		slog.Error("countdown initialization failed", "scrim_id", id, "error", err)
	}
}

// Reschedule replaces the timer after a gameStartTime change. Once setup
// completed there is nothing left to fire.
func (s *Scheduler) Reschedule(ctx context.Context, sess *models.Session) error {
	if sess.SetupCompleted() {
		return nil
	}
	s.Cancel(sess.ID)
	return s.Schedule(ctx, sess)
}

// Cancel removes any registered timer for the session. Cancellation is
// cooperative: a callback that already began executing finishes, and the
// setupCompleted guard keeps it from double effect.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
		monitoring.SetScheduledTimers(len(s.timers))
	}
}

// TimerCount returns the registry size.
func (s *Scheduler) TimerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// ScheduledIDs snapshots the registered session ids, for the admin dashboard.
func (s *Scheduler) ScheduledIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.timers))
	for id := range s.timers {
		out = append(out, id)
	}
	return out
}

// Initialize activates a session and, if both rosters are full, runs the
// external tournament setup exactly once. Safe to call at any time: it
// re-fetches fresh state and no-ops on terminal or already-set-up
// sessions.
func (s *Scheduler) Initialize(ctx context.Context, id string) error {
	lock := s.initLock(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status.Terminal() || sess.SetupCompleted() {
		s.dropInitLock(id)
		return nil
	}

	now := time.Now()
	if sess.Status == models.StatusPending {
		sess, err = s.store.UpdateSession(ctx, id, func(cur *models.Session) error {
			if cur.Status.Terminal() {
				return nil
			}
			return cur.Transition(models.StatusActive, now)
		})
		if err != nil {
			return err
		}
		if sess.Status.Terminal() {
			s.dropInitLock(id)
			return nil
		}
	}

	s.notifier.NotifyUsers(sess.Participants(), map[string]any{
		"type":     "scrim_starting",
		"scrim_id": sess.ID,
		"title":    sess.Title,
	})

	if !sess.TeamsFull() {
		slog.Info("tournament setup skipped, teams incomplete",
			"scrim_id", sess.ID, "team_one", sess.TeamOne.Count(), "team_two", sess.TeamTwo.Count())
		s.notifier.Broadcast(ScrimTopic(sess.ID), map[string]any{
			"type":     "setup_skipped",
			"scrim_id": sess.ID,
			"reason":   "teams incomplete",
		})
		monitoring.TrackSetup("skipped")
		return nil
	}

	// Provider calls stay outside any store transaction: a slow or failed
	// provider must not hold a write transaction open.
	setup, err := s.provisionLobby(ctx, sess)
	if err != nil {
		monitoring.TrackSetup("error")
		slog.Error("tournament setup failed", "scrim_id", sess.ID, "error", err)
		s.notifier.Broadcast(ScrimTopic(sess.ID), map[string]any{
			"type":     "setup_failed",
			"scrim_id": sess.ID,
			"error":    err.Error(),
		})
		// no automatic retry; an admin can re-trigger initialization
		return &status.ExternalServiceError{Service: "tournament provider", Err: err}
	}

	if _, err := s.store.UpdateSession(ctx, id, func(cur *models.Session) error {
		if cur.SetupCompleted() {
			return nil
		}
		cur.Tournament = setup
		return nil
	}); err != nil {
		return err
	}
	monitoring.TrackSetup("success")

	s.notifier.Broadcast(ScrimTopic(sess.ID), map[string]any{
		"type":     "lobby_ready",
		"scrim_id": sess.ID,
		"code":     setup.Code,
	})
	s.notifier.NotifyUsers(sess.Participants(), map[string]any{
		"type":     "lobby_code",
		"scrim_id": sess.ID,
		"code":     setup.Code,
	})
	slog.Info("tournament setup completed", "scrim_id", sess.ID, "tournament_id", setup.TournamentID)
	s.dropInitLock(id)
	return nil
}

// provisionLobby runs the three-step provider setup and returns the
// persisted shape, setupCompleted already marked.
func (s *Scheduler) provisionLobby(ctx context.Context, sess *models.Session) (*models.TournamentSetup, error) {
	tag, err := utils.GenerateCode(8)
	if err != nil {
		return nil, fmt.Errorf("generate callback tag: %w", err)
	}

	started := time.Now()
	providerID, err := s.provider.CreateProvider(ctx, sess.Region, s.cfg.Riot.CallbackURL)
	monitoring.ObserveProviderCall("create_provider", time.Since(started))
	if err != nil {
		return nil, err
	}

	started = time.Now()
	tournamentID, err := s.provider.CreateTournament(ctx, sess.Title, providerID)
	monitoring.ObserveProviderCall("create_tournament", time.Since(started))
	if err != nil {
		return nil, err
	}

	started = time.Now()
	codes, err := s.provider.CreateLobbyCode(ctx, tournamentID, provider.CodeParams{
		TeamSize:      models.TeamSize,
		MapType:       provider.DefaultMapType,
		PickType:      provider.DefaultPickType,
		SpectatorType: provider.DefaultSpectatorType,
		Metadata:      tag,
	})
	monitoring.ObserveProviderCall("create_lobby_code", time.Since(started))
	if err != nil {
		return nil, err
	}
	code := codes[0]

	started = time.Now()
	err = s.provider.UpdateLobbyCode(ctx, code, sess.Players())
	monitoring.ObserveProviderCall("update_lobby_code", time.Since(started))
	if err != nil {
		return nil, err
	}

	return &models.TournamentSetup{
		ProviderID:     providerID,
		TournamentID:   tournamentID,
		Code:           code,
		CallbackTag:    tag,
		SetupCompleted: true,
		SetupAt:        time.Now(),
	}, nil
}

// Recover rebuilds the registry after a restart: future sessions are
// re-scheduled, recently expired ones initialize immediately, and
// countdowns expired beyond the grace window are abandoned. No deferred
// event is silently lost across restarts.
func (s *Scheduler) Recover(ctx context.Context, now time.Time) error {
	sessions, err := s.store.ListForRecovery(ctx)
	if err != nil {
		return fmt.Errorf("scheduler recover: %w", err)
	}

	scheduled, initialized, abandoned := 0, 0, 0
	for _, sess := range sessions {
		switch {
		case sess.GameStartTime.After(now):
			if err := s.Schedule(ctx, sess); err != nil {
				slog.Error("recover: schedule failed", "scrim_id", sess.ID, "error", err)
				continue
			}
			scheduled++
		case now.Sub(sess.GameStartTime) <= s.cfg.AbandonGraceWindow:
			if err := s.Initialize(ctx, sess.ID); err != nil {
				slog.Error("recover: initialization failed", "scrim_id", sess.ID, "error", err)
				continue
			}
			initialized++
		default:
			if err := s.abandon(ctx, sess.ID); err != nil {
				slog.Error("recover: abandon failed", "scrim_id", sess.ID, "error", err)
				continue
			}
			abandoned++
		}
	}
	slog.Info("scheduler recovered",
		"scheduled", scheduled, "initialized", initialized, "abandoned", abandoned)
	return nil
}

// Shutdown stops every timer and closes the registry.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	monitoring.SetScheduledTimers(0)
	slog.Info("scheduler shut down")
}

func (s *Scheduler) abandon(ctx context.Context, id string) error {
	now := time.Now()
	sess, err := s.store.UpdateSession(ctx, id, func(cur *models.Session) error {
		if cur.Status.Terminal() {
			return nil
		}
		return cur.Transition(models.StatusAbandoned, now)
	})
	if err != nil {
		return err
	}
	s.Cancel(id)
	s.dropInitLock(id)
	slog.Info("scrim abandoned, countdown expired past grace window", "scrim_id", id)
	s.notifier.Broadcast(ScrimTopic(id), map[string]any{
		"type":     "scrim_abandoned",
		"scrim_id": id,
	})
	s.notifier.NotifyUsers(sess.Participants(), map[string]any{
		"type":     "scrim_abandoned",
		"scrim_id": id,
	})
	return nil
}

func (s *Scheduler) initLock(id string) *sync.Mutex {
	s.initMuGuard.Lock()
	defer s.initMuGuard.Unlock()
	lock, ok := s.initMu[id]
	if !ok {
		lock = &sync.Mutex{}
		s.initMu[id] = lock
	}
	return lock
}

// dropInitLock forgets a session's init mutex once it can never
// initialize again, so the map stops growing with session turnover.
// A latecomer still holding the old mutex only re-fetches and no-ops
// on the setupCompleted check, so minting a fresh mutex is harmless.
func (s *Scheduler) dropInitLock(id string) {
	s.initMuGuard.Lock()
	delete(s.initMu, id)
	s.initMuGuard.Unlock()
}
