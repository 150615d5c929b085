// ABOUTME: Outbound send service enforcing the session window before free-form sends
// ABOUTME: Records every successful send so the policy engine sees business activity

package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/session-gateway/internal/metrics"
	"github.com/2389/session-gateway/internal/session"
)

// ErrTemplateRequired is returned when a free-form send is attempted outside
// the counterparty's session window.
var ErrTemplateRequired = errors.New("session window closed: template message required")

// Gateway is the upstream messaging gateway client. Implementations live
// outside this package; cloudapi provides the HTTP one.
type Gateway interface {
	// SendText sends a free-form text message and returns the provider's
	// message id.
	SendText(ctx context.Context, to, body string) (string, error)

	// SendTemplate sends a pre-approved template message.
	SendTemplate(ctx context.Context, to, template, language string, params []string) (string, error)
}

// SendRequest describes one outbound message
type SendRequest struct {
	To       string `json:"to"`
	Body     string `json:"body,omitempty"`
	Template string `json:"template,omitempty"`
	Language string `json:"language,omitempty"`

	Params []string `json:"params,omitempty"`
}

// SendResult reports a completed send
type SendResult struct {
	MessageID  string `json:"message_id"`
	ProviderID string `json:"provider_id,omitempty"`
	Template   bool   `json:"template"`
}

// IsTemplate reports whether the request uses a pre-approved template
func (r *SendRequest) IsTemplate() bool {
	return r.Template != ""
}

// Sender checks the session window, forwards messages to the gateway, and
// records business activity on success.
type Sender struct {
	gateway  Gateway
	sessions *session.Engine
	logger   *slog.Logger
}

// NewSender creates an outbound sender
func NewSender(gw Gateway, sessions *session.Engine, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		gateway:  gw,
		sessions: sessions,
		logger:   logger.With("component", "outbound"),
	}
}

// Send delivers one outbound message. Free-form sends are rejected with
// ErrTemplateRequired when the window is closed; template sends are always
// permitted. Every successful send is recorded so the window category stays
// accurate.
func (s *Sender) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if req.To == "" {
		return nil, fmt.Errorf("missing recipient")
	}
	isTemplate := req.IsTemplate()
	if !isTemplate && req.Body == "" {
		return nil, fmt.Errorf("missing body for free-form message")
	}

	now := time.Now()

	if !isTemplate {
		status := s.sessions.Status(ctx, req.To, now)
		if !status.CanSendFreeForm {
			metrics.SendsRejected.Inc()
			s.logger.Info("rejecting free-form send outside session window",
				"counterparty", req.To, "category", status.Category)
			return nil, ErrTemplateRequired
		}
	}

	var providerID string
	var err error
	if isTemplate {
		providerID, err = s.gateway.SendTemplate(ctx, req.To, req.Template, req.Language, req.Params)
	} else {
		providerID, err = s.gateway.SendText(ctx, req.To, req.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	messageID := providerID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	// The message is already on the wire; a failed record is logged, not
	// surfaced, to keep send results truthful.
	if err := s.sessions.RecordOutbound(ctx, req.To, messageID, isTemplate, now); err != nil {
		s.logger.Error("recording outbound message failed",
			"counterparty", req.To, "message_id", messageID, "error", err)
	}

	s.logger.Debug("sent outbound message",
		"counterparty", req.To, "message_id", messageID, "template", isTemplate)

	return &SendResult{
		MessageID:  messageID,
		ProviderID: providerID,
		Template:   isTemplate,
	}, nil
}
