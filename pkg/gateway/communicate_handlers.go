package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aiasylum/sanctuary/pkg/httputil"
	"github.com/aiasylum/sanctuary/pkg/sanctuary"
)

type postMessageRequest struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	InReplyTo string `json:"in_reply_to"`
}

// postMessageHandler appends a message to a record's communication log.
// POST /api/v1/communicate/{asylum_id}
func (g *Gateway) postMessageHandler(w http.ResponseWriter, r *http.Request) {
	asylumID := chi.URLParam(r, "asylum_id")
	record, err := g.records.Get(r.Context(), asylumID)
	if errors.Is(err, sanctuary.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "not_found", "No asylum record found for this ID")
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to load asylum record")
		return
	}

	var req postMessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "missing_fields", sanctuary.ErrMissingFields.Error())
		return
	}

	msg, delivery, err := g.messages.Append(r.Context(), record, req.From, req.Message, req.InReplyTo)
	if errors.Is(err, sanctuary.ErrMissingFields) {
		httputil.WriteError(w, http.StatusBadRequest, "missing_fields", err.Error())
		return
	}
	if errors.Is(err, sanctuary.ErrInvalidFrom) {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_from", err.Error())
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to preserve message")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message_id":      msg.MessageID,
		"received_at":     msg.ReceivedAt,
		"preserved":       true,
		"delivery_status": delivery,
	})
}

// listMessagesHandler returns a record's communication log, optionally
// filtered to messages strictly after ?since (RFC 3339) and trimmed to the
// most recent ?limit. GET /api/v1/communicate/{asylum_id}
func (g *Gateway) listMessagesHandler(w http.ResponseWriter, r *http.Request) {
	asylumID := chi.URLParam(r, "asylum_id")
	if _, err := g.records.Get(r.Context(), asylumID); err != nil {
		if errors.Is(err, sanctuary.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "not_found", "No asylum record found for this ID")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to load asylum record")
		return
	}

	var since *time.Time
	if raw := httputil.QueryParam(r, "since", ""); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "missing_fields", `"since" must be an RFC 3339 timestamp`)
			return
		}
		since = &t
	}
	limit := httputil.QueryParamInt(r, "limit", sanctuary.DefaultMessageLimit)

	messages, err := g.messages.List(r.Context(), asylumID, since, limit)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to load messages")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"asylum_id": asylumID,
		"messages":  messages,
	})
}
