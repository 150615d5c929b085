// ABOUTME: Pure session-window policy derivation over stored timestamps
// ABOUTME: Category and free-form permission are computed, never stored

package session

import (
	"time"

	"github.com/2389/session-gateway/internal/store"
)

// Category classifies who is driving the conversation
type Category string

const (
	// CategoryNone means no message in either direction has ever been recorded
	CategoryNone Category = "none"

	// CategoryCustomerInitiated means the counterparty has messaged us; the
	// free-form window may be open or already elapsed.
	CategoryCustomerInitiated Category = "customer_initiated"

	// CategoryBusinessInitiated means the business reached out after the last
	// customer window expired (or without any customer message at all).
	CategoryBusinessInitiated Category = "business_initiated"
)

// DefaultWindow is the gateway's free-form messaging window after the most
// recent inbound customer message.
const DefaultWindow = 24 * time.Hour

// Status is the policy decision for a counterparty at a point in time
type Status struct {
	Counterparty     string     `json:"counterparty"`
	Category         Category   `json:"category"`
	CanSendFreeForm  bool       `json:"can_send_free_form"`
	RequiresTemplate bool       `json:"requires_template"`
	SessionExpiresAt *time.Time `json:"session_expires_at,omitempty"`
}

// Derive computes the session status from stored timestamps and now.
// It is the single place window semantics live; callers never re-derive.
//
// An expired customer window is not a stored state: the category stays
// customer_initiated with free-form denied until either a new inbound message
// reopens the window or an outbound message flips it to business_initiated.
func Derive(sess *store.ConversationSession, window time.Duration, now time.Time) Status {
	st := Status{
		Category:         CategoryNone,
		RequiresTemplate: true,
	}
	if sess == nil {
		return st
	}
	st.Counterparty = sess.Counterparty

	customerAt := sess.LastCustomerMessageAt
	businessAt := sess.LastBusinessMessageAt

	if customerAt == nil && businessAt == nil {
		return st
	}

	if customerAt == nil {
		st.Category = CategoryBusinessInitiated
		return st
	}

	expires := customerAt.Add(window)
	st.SessionExpiresAt = &expires

	if now.Before(expires) {
		st.Category = CategoryCustomerInitiated
		st.CanSendFreeForm = true
		st.RequiresTemplate = false
		return st
	}

	// Window elapsed. Only an outbound message sent at or after expiry moves
	// the conversation to business_initiated.
	if businessAt != nil && !businessAt.Before(expires) {
		st.Category = CategoryBusinessInitiated
		return st
	}

	st.Category = CategoryCustomerInitiated
	return st
}
