package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	scheduledTimers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrim_scheduled_timers",
			Help: "Current number of registered countdown timers",
		},
	)

	rosterMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrim_roster_mutations_total",
			Help: "Total roster mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	tournamentSetups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrim_tournament_setups_total",
			Help: "Total tournament setup attempts by outcome",
		},
		[]string{"outcome"},
	)

	providerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrim_provider_call_duration_seconds",
			Help:    "Duration of tournament provider API calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation"},
	)

	activeSessionLocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrim_active_session_locks",
			Help: "Current number of held session mutation locks",
		},
	)
)

// SetScheduledTimers records the scheduler registry size.
func SetScheduledTimers(n int) {
	scheduledTimers.Set(float64(n))
}

// TrackMutation counts one roster mutation attempt.
func TrackMutation(operation, outcome string) {
	rosterMutations.WithLabelValues(operation, outcome).Inc()
}

// TrackSetup counts one tournament setup attempt.
func TrackSetup(outcome string) {
	tournamentSetups.WithLabelValues(outcome).Inc()
}

// ObserveProviderCall records one provider API call duration.
func ObserveProviderCall(operation string, d time.Duration) {
	providerCallDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Monitor samples redis-backed gauges in the background.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	// Start metrics collection
	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		m.collectLockMetrics(ctx)
	}
}

func (m *Monitor) collectLockMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "scrimlock:*").Result()
	if err != nil {
		return
	}
	activeSessionLocks.Set(float64(len(keys)))
}
