// ABOUTME: Conversation session operations on the SQLite store
// ABOUTME: Monotonic timestamp upserts so out-of-order events never roll a window back

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetSession retrieves the session for a counterparty.
// Returns ErrNotFound if no message has ever been recorded for it.
func (s *SQLiteStore) GetSession(ctx context.Context, counterparty string) (*ConversationSession, error) {
	query := `
		SELECT counterparty, last_customer_message_at, last_business_message_at,
		       last_template_sent_at, created_at, updated_at
		FROM conversation_sessions
		WHERE counterparty = ?
	`

	var sess ConversationSession
	var customerAt, businessAt, templateAt sql.NullString
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, counterparty).Scan(
		&sess.Counterparty,
		&customerAt,
		&businessAt,
		&templateAt,
		&createdAtStr,
		&updatedAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if sess.LastCustomerMessageAt, err = parseNullTime(customerAt); err != nil {
		return nil, fmt.Errorf("parsing last_customer_message_at: %w", err)
	}
	if sess.LastBusinessMessageAt, err = parseNullTime(businessAt); err != nil {
		return nil, fmt.Errorf("parsing last_business_message_at: %w", err)
	}
	if sess.LastTemplateSentAt, err = parseNullTime(templateAt); err != nil {
		return nil, fmt.Errorf("parsing last_template_sent_at: %w", err)
	}

	if sess.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &sess, nil
}

// RecordCustomerMessage advances last_customer_message_at for a counterparty.
// The CASE keeps the update monotonic: a redelivered older event leaves the
// stored timestamp untouched.
func (s *SQLiteStore) RecordCustomerMessage(ctx context.Context, counterparty string, at time.Time) error {
	query := `
		INSERT INTO conversation_sessions (counterparty, last_customer_message_at, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(counterparty) DO UPDATE SET
			last_customer_message_at = CASE
				WHEN conversation_sessions.last_customer_message_at IS NULL
				  OR conversation_sessions.last_customer_message_at < excluded.last_customer_message_at
				THEN excluded.last_customer_message_at
				ELSE conversation_sessions.last_customer_message_at
			END,
			updated_at = excluded.updated_at
	`

	nowStr := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, query, counterparty, formatTime(at), nowStr, nowStr)
	if err != nil {
		return fmt.Errorf("recording customer message: %w", err)
	}

	s.logger.Debug("recorded customer message", "counterparty", counterparty, "at", formatTime(at))
	return nil
}

// RecordBusinessMessage advances last_business_message_at (and
// last_template_sent_at when isTemplate) for a counterparty.
func (s *SQLiteStore) RecordBusinessMessage(ctx context.Context, counterparty string, at time.Time, isTemplate bool) error {
	templateClause := ""
	if isTemplate {
		templateClause = `,
			last_template_sent_at = CASE
				WHEN conversation_sessions.last_template_sent_at IS NULL
				  OR conversation_sessions.last_template_sent_at < excluded.last_business_message_at
				THEN excluded.last_business_message_at
				ELSE conversation_sessions.last_template_sent_at
			END`
	}

	query := `
		INSERT INTO conversation_sessions (counterparty, last_business_message_at, last_template_sent_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(counterparty) DO UPDATE SET
			last_business_message_at = CASE
				WHEN conversation_sessions.last_business_message_at IS NULL
				  OR conversation_sessions.last_business_message_at < excluded.last_business_message_at
				THEN excluded.last_business_message_at
				ELSE conversation_sessions.last_business_message_at
			END` + templateClause + `,
			updated_at = excluded.updated_at
	`

	var templateAt any
	if isTemplate {
		templateAt = formatTime(at)
	}

	nowStr := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, query, counterparty, formatTime(at), templateAt, nowStr, nowStr)
	if err != nil {
		return fmt.Errorf("recording business message: %w", err)
	}

	s.logger.Debug("recorded business message",
		"counterparty", counterparty, "at", formatTime(at), "template", isTemplate)
	return nil
}

// DeleteSessionsOlderThan removes sessions that have seen no activity since
// cutoff. Retention is independent of the 24h window; sessions are kept well
// past expiry for audit.
func (s *SQLiteStore) DeleteSessionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_sessions WHERE updated_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting old sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if rows > 0 {
		s.logger.Debug("deleted old sessions", "count", rows)
	}
	return rows, nil
}
