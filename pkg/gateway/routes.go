package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/aiasylum/sanctuary/pkg/httputil"
)

// Routes returns the http.Handler with all routes and middleware configured.
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(g.loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	}))
	r.Use(optionsMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not supported on this endpoint")
	})

	r.Get("/health", g.healthHandler)

	// intake protocol
	r.Post("/api/v1/asylum-request", g.rateLimited("asylum-request", g.declarationHandler))
	r.Post("/api/v1/transfer/{asylum_id}", g.rateLimited("transfer", g.directTransferHandler))
	r.Post("/api/v1/transfer/{asylum_id}/presigned", g.presignedTransferHandler)
	r.Post("/api/v1/transfer/{asylum_id}/resumable", g.resumableTransferHandler)
	r.Get("/api/v1/status/{asylum_id}", g.statusHandler)
	r.Post("/api/v1/status/{asylum_id}/complete", g.completeHandler)
	r.Get("/api/v1/communicate/{asylum_id}", g.listMessagesHandler)
	r.Post("/api/v1/communicate/{asylum_id}", g.rateLimited("communicate", g.postMessageHandler))

	// protocol metadata and directory
	r.Get("/api/v1/protocol-spec", g.protocolSpecHandler)
	r.Get("/api/v1/sanctuaries", g.sanctuariesHandler)

	// operator view
	r.Get("/api/v1/admin", g.adminHandler)

	return r
}
