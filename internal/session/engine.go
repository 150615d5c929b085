// ABOUTME: Session window engine recording inbound/outbound messages per counterparty
// ABOUTME: Fails closed: storage trouble yields the template-required default

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/session-gateway/internal/store"
)

// Timestamp clamp bounds. Gateway events occasionally carry timestamps from
// skewed clocks; anything outside these bounds is replaced with now.
const (
	maxFutureSkew = 5 * time.Minute
	maxPastSkew   = 7 * 24 * time.Hour
)

// Engine applies the session window policy against the persistent store.
// It is the only writer of conversation sessions; all cross-instance
// coordination happens through the store.
type Engine struct {
	store  store.SessionStore
	window time.Duration
	logger *slog.Logger

	// now is overridable in tests
	now func() time.Time
}

// NewEngine creates a session engine over the given store.
// A window of 0 falls back to DefaultWindow.
func NewEngine(st store.SessionStore, window time.Duration, logger *slog.Logger) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  st,
		window: window,
		logger: logger.With("component", "session"),
		now:    time.Now,
	}
}

// RecordInbound records a customer-initiated message and (re)opens the
// free-form window. A new inbound message always resets the 24h clock; the
// store's monotonic merge keeps redelivered older events from rolling it back.
func (e *Engine) RecordInbound(ctx context.Context, counterparty, messageID string, at time.Time) error {
	at = e.clampTimestamp(counterparty, messageID, at)

	if err := e.store.RecordCustomerMessage(ctx, counterparty, at); err != nil {
		return fmt.Errorf("recording inbound message: %w", err)
	}

	e.logger.Debug("recorded inbound message",
		"counterparty", counterparty, "message_id", messageID, "at", at)
	return nil
}

// RecordOutbound records a business-initiated message. Outbound messages never
// open or extend a free-form window; they only flip an expired conversation to
// business_initiated.
func (e *Engine) RecordOutbound(ctx context.Context, counterparty, messageID string, isTemplate bool, at time.Time) error {
	at = e.clampTimestamp(counterparty, messageID, at)

	if err := e.store.RecordBusinessMessage(ctx, counterparty, at, isTemplate); err != nil {
		return fmt.Errorf("recording outbound message: %w", err)
	}

	e.logger.Debug("recorded outbound message",
		"counterparty", counterparty, "message_id", messageID, "at", at, "template", isTemplate)
	return nil
}

// Status returns the policy decision for a counterparty at time at.
// Storage failures fail closed: an unknown state is template-gated, since an
// unsolicited free-form message outside the window is a compliance violation
// while a template is always allowed.
func (e *Engine) Status(ctx context.Context, counterparty string, at time.Time) Status {
	if at.IsZero() {
		at = e.now()
	}

	sess, err := e.store.GetSession(ctx, counterparty)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Error("session lookup failed, denying free-form",
				"counterparty", counterparty, "error", err)
		}
		st := Derive(nil, e.window, at)
		st.Counterparty = counterparty
		return st
	}

	return Derive(sess, e.window, at)
}

// clampTimestamp replaces timestamps outside the accepted skew bounds with
// now. A malformed timestamp must never fail message recording.
func (e *Engine) clampTimestamp(counterparty, messageID string, at time.Time) time.Time {
	now := e.now()
	if at.IsZero() || at.After(now.Add(maxFutureSkew)) || at.Before(now.Add(-maxPastSkew)) {
		e.logger.Warn("clamping out-of-range message timestamp",
			"counterparty", counterparty, "message_id", messageID, "at", at, "now", now)
		return now
	}
	return at
}
