// ABOUTME: HTTP webhook receiver for inbound gateway events
// ABOUTME: Extracts event ids and counterparties, then runs dedup-wrapped session updates

package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/session-gateway/internal/dedupe"
	"github.com/2389/session-gateway/internal/session"
)

// handlerTimeout bounds how long a single delivery may hold the webhook
// handler. Upstream transports enforce their own delivery timeouts and will
// redeliver; dedup makes that harmless, but a hung store call must not pin
// the handler indefinitely.
const handlerTimeout = 5 * time.Second

// Payload is the envelope the messaging gateway posts to the webhook
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one account-level notification batch
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is a single field change within an entry
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue carries the messages for a message-type change
type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Messages         []Message `json:"messages"`
}

// Message is one inbound customer message. Timestamp is unix seconds as a
// string, per the gateway's wire format.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

// Receiver handles the gateway's webhook callbacks
type Receiver struct {
	dedupe      *dedupe.Engine
	sessions    *session.Engine
	verifyToken string
	logger      *slog.Logger
}

// NewReceiver creates a webhook receiver
func NewReceiver(de *dedupe.Engine, se *session.Engine, verifyToken string, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{
		dedupe:      de,
		sessions:    se,
		verifyToken: verifyToken,
		logger:      logger.With("component", "webhook"),
	}
}

// ServeHTTP dispatches webhook verification and event delivery
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.handleVerify(w, req)
	case http.MethodPost:
		r.handleDelivery(w, req)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleVerify answers the gateway's subscription handshake: echo the
// challenge when the verify token matches.
func (r *Receiver) handleVerify(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != r.verifyToken {
		r.logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
		w.WriteHeader(http.StatusForbidden)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, q.Get("hub.challenge"))
}

// handleDelivery processes one webhook POST. Duplicates acknowledge as
// successful no-ops; a handler failure returns 5xx so the transport
// redelivers.
func (r *Receiver) handleDelivery(w http.ResponseWriter, req *http.Request) {
	var payload Payload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		r.logger.Warn("rejecting malformed webhook payload", "error", err)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), handlerTimeout)
	defer cancel()

	var failed bool
	for _, msg := range payload.messages() {
		if msg.ID == "" || msg.From == "" {
			r.logger.Warn("skipping message without id or sender")
			continue
		}

		at := parseUnixTimestamp(msg.Timestamp)
		counterparty := msg.From
		messageID := msg.ID

		_, err := r.dedupe.ProcessOnce(ctx, messageID, func(ctx context.Context) error {
			return r.sessions.RecordInbound(ctx, counterparty, messageID, at)
		})
		if err != nil {
			r.logger.Error("processing inbound event failed",
				"event_id", messageID, "counterparty", counterparty, "error", err)
			failed = true
		}
	}

	if failed {
		// Partial failure still 5xxs: redelivery of already-processed
		// messages is absorbed by dedup.
		http.Error(w, "event processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// messages flattens the nested envelope into the message list
func (p *Payload) messages() []Message {
	var out []Message
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			out = append(out, change.Value.Messages...)
		}
	}
	return out
}

// parseUnixTimestamp converts the gateway's unix-seconds string. A malformed
// timestamp yields the zero time; the session engine clamps it to now.
func parseUnixTimestamp(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
