// Package outbound sends business messages through the gateway under session
// window enforcement.
//
// Free-form sends are only permitted while the counterparty's 24-hour window
// is open; outside it the sender rejects with ErrTemplateRequired, surfaced
// over HTTP as 409 with reason "template_required". Template sends are always
// permitted. Every successful send of either kind is recorded with the
// session engine so the window category stays accurate.
package outbound
