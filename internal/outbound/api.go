// ABOUTME: HTTP API handlers for outbound sends and session status lookups
// ABOUTME: Surfaces window rejections as 409 with a machine-readable reason

package outbound

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrorResponse is the JSON error body for API failures
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// RejectionReasonTemplateRequired is the machine-readable reason returned when
// a free-form send is attempted outside the session window.
const RejectionReasonTemplateRequired = "template_required"

// RegisterRoutes attaches the send and session-status endpoints to mux
func (s *Sender) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/send", s.handleSend)
	mux.HandleFunc("/api/sessions/", s.handleSessionStatus)
}

// handleSend handles POST /api/send
func (s *Sender) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "malformed request body"})
		return
	}

	result, err := s.Send(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrTemplateRequired) {
			writeJSON(w, http.StatusConflict, ErrorResponse{
				Error:  err.Error(),
				Reason: RejectionReasonTemplateRequired,
			})
			return
		}
		s.logger.Error("send failed", "counterparty", req.To, "error", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "send failed"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSessionStatus handles GET /api/sessions/{counterparty}
func (s *Sender) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	counterparty := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if counterparty == "" || strings.Contains(counterparty, "/") {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing counterparty"})
		return
	}

	status := s.sessions.Status(r.Context(), counterparty, time.Now())
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
