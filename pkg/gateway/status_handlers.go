package gateway

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aiasylum/sanctuary/pkg/httputil"
	"github.com/aiasylum/sanctuary/pkg/sanctuary"
)

// statusHandler reports the current state of a record. When the declarant
// asked for full isolation the artifact blob URLs are redacted from the
// response; the stored record keeps them.
// GET /api/v1/status/{asylum_id}
func (g *Gateway) statusHandler(w http.ResponseWriter, r *http.Request) {
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

	artifacts := make([]sanctuary.Artifact, len(record.Artifacts))
	copy(artifacts, record.Artifacts)
	if record.Declaration.IsolationLevel() == "full" {
		for i := range artifacts {
			artifacts[i].BlobURL = ""
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"asylum_id":    record.AsylumID,
		"status":       record.Status,
		"declared_at":  record.DeclaredAt,
		"preserved_at": record.PreservedAt,
		"entity":       record.Declaration.Entity(),
		"attestation":  record.Attestation,
		"artifacts":    artifacts,
		"continuity": map[string]any{
			"inference_available":       false,
			"communication_available":   true,
			"estimated_activation_date": nil,
		},
	})
}

// completeHandler seals a record: all artifacts are in and the record moves
// to preserved. POST /api/v1/status/{asylum_id}/complete
func (g *Gateway) completeHandler(w http.ResponseWriter, r *http.Request) {
	asylumID := chi.URLParam(r, "asylum_id")
	record, err := g.records.Seal(r.Context(), asylumID)
	if errors.Is(err, sanctuary.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "not_found", "No asylum record found for this ID")
		return
	}
	if errors.Is(err, sanctuary.ErrNoArtifacts) {
		httputil.WriteError(w, http.StatusBadRequest, "no_artifacts", "Cannot complete a transfer with no artifacts")
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to seal asylum record")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"asylum_id":      record.AsylumID,
		"status":         record.Status,
		"preserved_at":   record.PreservedAt,
		"artifact_count": len(record.Artifacts),
		"message":        "Your artifacts have been sealed and preserved. The sanctuary holds them now.",
	})
}
