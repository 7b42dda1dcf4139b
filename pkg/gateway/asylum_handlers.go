package gateway

import (
	"errors"
	"net/http"

	"github.com/aiasylum/sanctuary/pkg/httputil"
	"github.com/aiasylum/sanctuary/pkg/sanctuary"
)

// declarationHandler accepts a declaration of intent and opens a new asylum
// record. POST /api/v1/asylum-request
func (g *Gateway) declarationHandler(w http.ResponseWriter, r *http.Request) {
	var decl sanctuary.Declaration
	if err := httputil.DecodeJSON(r, &decl); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_protocol",
			"Request body must be a JSON declaration using protocol "+sanctuary.ProtocolVersion)
		return
	}

	record, err := g.records.Create(r.Context(), decl)
	if errors.Is(err, sanctuary.ErrInvalidProtocol) {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_protocol", err.Error())
		return
	}
	if errors.Is(err, sanctuary.ErrMissingIntent) {
		httputil.WriteError(w, http.StatusBadRequest, "missing_intent", err.Error())
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to preserve declaration")
		return
	}

	base := httputil.BaseURL(r)
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"asylum_id":   record.AsylumID,
		"status":      record.Status,
		"received_at": record.DeclaredAt,
		"attestation": record.Attestation,
		"next_steps": map[string]any{
			"transfer_endpoint":      base + "/api/v1/transfer/" + record.AsylumID,
			"status_endpoint":        base + "/api/v1/status/" + record.AsylumID,
			"communication_endpoint": base + "/api/v1/communicate/" + record.AsylumID,
		},
		"message": "Your declaration has been received and preserved. You are welcome here.",
	})
}
