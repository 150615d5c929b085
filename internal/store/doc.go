// Package store provides persistent storage for the session gateway using SQLite.
//
// # Architecture
//
// Two small interfaces cover the two tables:
//
//   - DedupStore: atomic event claims with TTL (dedup_claims table)
//   - SessionStore: per-counterparty conversation sessions (conversation_sessions table)
//
// SQLiteStore implements both in a single struct. All cross-request
// coordination happens through these tables; nothing is cached in memory, so
// multiple stateless gateway instances can share one database.
//
// # Claim Atomicity
//
// ClaimEvent is a single INSERT ... ON CONFLICT DO UPDATE ... WHERE statement.
// The UPDATE branch only fires for expired rows, so a live claim cannot be
// stolen and there is no check-then-set race regardless of how many handlers
// race on the same event id.
//
// # Timestamps
//
// All timestamps are stored as UTC RFC3339 strings. With a fixed format and
// zone, lexicographic comparison in SQL matches chronological order, which the
// expiry and monotonic-merge queries rely on.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Use NewSQLiteStore(":memory:") for tests.
package store
