// ABOUTME: Store interfaces and data types for session-gateway persistence
// ABOUTME: Defines ConversationSession, DedupClaim and the store contracts

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ConversationSession tracks the messaging history timestamps for a single
// counterparty. Only raw timestamps are stored; window category and expiry
// are derived at read time by the session package.
type ConversationSession struct {
	Counterparty          string
	LastCustomerMessageAt *time.Time // set only by inbound events
	LastBusinessMessageAt *time.Time // set only by outbound sends
	LastTemplateSentAt    *time.Time // subset of business messages using a template
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DedupClaim records that an inbound event id has been claimed for processing.
// A live (non-expired) claim is the sole signal that the event's side effects
// have been, or are being, applied.
type DedupClaim struct {
	EventID     string
	ProcessedAt time.Time
	ExpiresAt   time.Time
}

// DedupStore defines the claim operations used by the dedupe engine.
// ClaimEvent is the load-bearing primitive: it must be a single atomic
// compare-and-set at the storage layer, never a read-then-write pair.
type DedupStore interface {
	// ClaimEvent atomically creates a claim for eventID with the given TTL.
	// Returns true if this call created (or took over an expired) claim,
	// false if a live claim already exists.
	ClaimEvent(ctx context.Context, eventID string, now time.Time, ttl time.Duration) (bool, error)

	// ReleaseEvent removes a claim so a redelivery can re-claim it.
	ReleaseEvent(ctx context.Context, eventID string) error

	// EventClaimed reports whether a live claim exists for eventID.
	EventClaimed(ctx context.Context, eventID string, now time.Time) (bool, error)

	// DeleteExpiredClaims removes claims whose expiry is at or before now.
	DeleteExpiredClaims(ctx context.Context, now time.Time) (int64, error)
}

// SessionStore defines the persistence operations used by the session engine.
// The record methods use monotonic merge semantics: a timestamp only ever
// moves forward, so out-of-order redeliveries cannot roll a window back.
type SessionStore interface {
	// GetSession retrieves the session for a counterparty.
	// Returns ErrNotFound if no message has ever been recorded.
	GetSession(ctx context.Context, counterparty string) (*ConversationSession, error)

	// RecordCustomerMessage advances last_customer_message_at to at if it is
	// newer than the stored value, creating the session row if needed.
	RecordCustomerMessage(ctx context.Context, counterparty string, at time.Time) error

	// RecordBusinessMessage advances last_business_message_at (and
	// last_template_sent_at when isTemplate) to at if newer.
	RecordBusinessMessage(ctx context.Context, counterparty string, at time.Time, isTemplate bool) error

	// DeleteSessionsOlderThan removes sessions not updated since cutoff.
	DeleteSessionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store combines the dedup and session stores behind one handle
type Store interface {
	DedupStore
	SessionStore

	// Close releases any resources held by the store
	Close() error
}
