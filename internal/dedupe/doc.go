// Package dedupe guarantees at-most-once processing of webhook events that
// arrive over an at-least-once transport.
//
// # Claim Protocol
//
// ProcessOnce claims the event id in the persistent store before running the
// handler. The claim is a storage-level atomic compare-and-set, so concurrent
// deliveries of the same event (including redeliveries that arrive while the
// first handler is still running) observe the claim and skip. A failed handler
// releases the claim so the upstream transport's retry can re-claim it; a
// successful handler leaves the claim to expire via TTL.
//
// # Failure Policy
//
// The claim step fails open: if the store is unavailable the event is
// processed anyway. Blocking all message processing on a dedup check is worse
// than an occasional duplicate side effect, since downstream effects are
// expected to tolerate rare duplicates. A failed release after a handler
// failure is logged but not retried.
//
// Claims survive process restarts; nothing is cached in memory, so multiple
// gateway instances can share one store.
package dedupe
