// ABOUTME: Event deduplication engine wrapping business handlers in claim/release semantics
// ABOUTME: Fails open when the claim store is unavailable; handler failures release the claim

package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/session-gateway/internal/metrics"
	"github.com/2389/session-gateway/internal/store"
)

// DefaultTTL bounds how long a successful claim suppresses redeliveries.
// 48h exceeds the upstream transport's maximum redelivery window with margin.
const DefaultTTL = 48 * time.Hour

// Handler is the business logic run exactly once per event id
type Handler func(ctx context.Context) error

// Engine wraps handlers with at-most-once semantics backed by a persistent
// claim store. The store handle is injected so tests and multiple instances
// can each hold their own.
type Engine struct {
	store  store.DedupStore
	ttl    time.Duration
	logger *slog.Logger

	// now is overridable in tests
	now func() time.Time
}

// New creates a dedup engine over the given claim store.
// A ttl of 0 falls back to DefaultTTL.
func New(st store.DedupStore, ttl time.Duration, logger *slog.Logger) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  st,
		ttl:    ttl,
		logger: logger.With("component", "dedupe"),
		now:    time.Now,
	}
}

// ProcessOnce runs handler at most once per eventID. It returns
// (true, nil) when the handler ran and succeeded, (false, nil) when the event
// was already claimed and the delivery should be acknowledged as a no-op, and
// (true, err) when the handler ran and failed; in that case the claim has been
// released and the caller should surface the error so the transport retries.
//
// The claim strictly precedes the handler: a redelivery that arrives while a
// slow handler is still running observes the live claim and skips.
func (e *Engine) ProcessOnce(ctx context.Context, eventID string, handler Handler) (bool, error) {
	claimed, err := e.store.ClaimEvent(ctx, eventID, e.now(), e.ttl)
	if err != nil {
		// Fail open: losing dedup cover is preferable to dropping the event.
		metrics.DedupFailOpen.Inc()
		e.logger.Error("claim failed, processing without dedup cover",
			"event_id", eventID, "error", err)
		return true, e.runHandler(ctx, eventID, handler, false)
	}

	if !claimed {
		metrics.EventsDuplicate.Inc()
		e.logger.Debug("skipping duplicate event", "event_id", eventID)
		return false, nil
	}

	return true, e.runHandler(ctx, eventID, handler, true)
}

// runHandler executes the handler, releasing the claim on failure so the
// upstream transport's redelivery can retry.
func (e *Engine) runHandler(ctx context.Context, eventID string, handler Handler, release bool) error {
	if err := handler(ctx); err != nil {
		metrics.EventsFailed.Inc()
		if release {
			if relErr := e.store.ReleaseEvent(ctx, eventID); relErr != nil {
				// Not retried: the worst case is a spurious duplicate-skip on
				// the next delivery attempt.
				e.logger.Error("releasing claim after handler failure",
					"event_id", eventID, "error", relErr)
			}
		}
		return fmt.Errorf("handling event %s: %w", eventID, err)
	}

	metrics.EventsProcessed.Inc()
	return nil
}
