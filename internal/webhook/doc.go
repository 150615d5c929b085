// Package webhook receives inbound event callbacks from the business
// messaging gateway.
//
// The receiver is deliberately thin: it verifies the subscription handshake,
// extracts the stable event id, counterparty, and timestamp from each
// message, and hands the rest to the dedupe engine, whose handler records the
// inbound message with the session engine. Duplicate deliveries acknowledge
// with 200 so the transport stops redelivering; handler failures return 5xx
// so it retries.
package webhook
