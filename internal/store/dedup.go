// ABOUTME: Dedup claim operations on the SQLite store
// ABOUTME: Single-statement atomic claim plus release and expiry-keyed cleanup

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ClaimEvent atomically claims eventID for processing. The whole claim is a
// single upsert: the UPDATE branch only fires when the existing claim has
// expired, so a live claim can never be stolen. RowsAffected distinguishes
// "claimed" (insert, or takeover of an expired row) from "already live".
func (s *SQLiteStore) ClaimEvent(ctx context.Context, eventID string, now time.Time, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO dedup_claims (event_id, processed_at, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			processed_at = excluded.processed_at,
			expires_at   = excluded.expires_at
		WHERE dedup_claims.expires_at <= excluded.processed_at
	`

	result, err := s.db.ExecContext(ctx, query,
		eventID,
		formatTime(now),
		formatTime(now.Add(ttl)),
	)
	if err != nil {
		return false, fmt.Errorf("claiming event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	claimed := rows > 0
	if claimed {
		s.logger.Debug("claimed event", "event_id", eventID, "ttl", ttl)
	}
	return claimed, nil
}

// ReleaseEvent removes the claim for eventID. Missing claims are not an
// error; release after a handler failure must be idempotent.
func (s *SQLiteStore) ReleaseEvent(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dedup_claims WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("releasing event: %w", err)
	}

	s.logger.Debug("released event claim", "event_id", eventID)
	return nil
}

// EventClaimed reports whether a live (non-expired) claim exists for eventID.
func (s *SQLiteStore) EventClaimed(ctx context.Context, eventID string, now time.Time) (bool, error) {
	query := `SELECT 1 FROM dedup_claims WHERE event_id = ? AND expires_at > ?`

	var one int
	err := s.db.QueryRowContext(ctx, query, eventID, formatTime(now)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying claim: %w", err)
	}
	return true, nil
}

// DeleteExpiredClaims removes all claims whose expiry is at or before now.
// Keyed purely on the expiry comparison, so concurrent sweeps are safe.
func (s *SQLiteStore) DeleteExpiredClaims(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM dedup_claims WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired claims: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if rows > 0 {
		s.logger.Debug("deleted expired claims", "count", rows)
	}
	return rows, nil
}
