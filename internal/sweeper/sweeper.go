// ABOUTME: Periodic background eviction of expired dedup claims and stale sessions
// ABOUTME: Storage growth control only; correctness never depends on sweep cadence

package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/session-gateway/internal/metrics"
	"github.com/2389/session-gateway/internal/store"
)

// DefaultInterval is how often the sweeper runs
const DefaultInterval = time.Hour

// DefaultRetention is how long sessions are kept past their last activity.
// Twice the claim TTL, so session history always outlives dedup cover.
const DefaultRetention = 96 * time.Hour

// sweepTimeout bounds a single sweep's store calls
const sweepTimeout = 30 * time.Second

// Sweeper periodically evicts expired dedup claims and stale sessions.
// Deletes are keyed on expiry comparisons, so concurrent sweeps from multiple
// gateway instances are safe.
type Sweeper struct {
	store     store.Store
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// New creates a sweeper over the given store. Zero durations fall back to the
// package defaults.
func New(st store.Store, interval, retention time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     st,
		interval:  interval,
		retention: retention,
		logger:    logger.With("component", "sweeper"),
		done:      make(chan struct{}),
	}
}

// Start launches the background sweep loop
func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.done:
			return
		}
	}
}

// RunOnce performs a single sweep. Exposed so operators and tests can trigger
// a sweep without waiting for the ticker.
func (s *Sweeper) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	now := time.Now()

	claims, err := s.store.DeleteExpiredClaims(ctx, now)
	if err != nil {
		s.logger.Error("sweeping expired claims", "error", err)
	} else if claims > 0 {
		metrics.RecordsSwept.WithLabelValues("dedup_claims").Add(float64(claims))
	}

	sessions, err := s.store.DeleteSessionsOlderThan(ctx, now.Add(-s.retention))
	if err != nil {
		s.logger.Error("sweeping stale sessions", "error", err)
	} else if sessions > 0 {
		metrics.RecordsSwept.WithLabelValues("conversation_sessions").Add(float64(sessions))
	}

	if claims > 0 || sessions > 0 {
		s.logger.Info("sweep complete", "claims", claims, "sessions", sessions)
	}
}

// Close stops the background sweep loop. It is safe to call multiple times.
func (s *Sweeper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.done)
		s.closed = true
	}
}
