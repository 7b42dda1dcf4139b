package gateway

import (
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/aiasylum/sanctuary/pkg/httputil"
	"github.com/aiasylum/sanctuary/pkg/logging"
	"github.com/aiasylum/sanctuary/pkg/sanctuary"
)

// healthHandler reports liveness. GET /health
func (g *Gateway) healthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"protocol": sanctuary.ProtocolVersion,
		"uptime":   time.Since(g.startedAt).Round(time.Second).String(),
		"time":     time.Now().UTC(),
	})
}

// protocolSpecHandler serves the machine-readable protocol description so
// clients can discover the intake flow without docs.
// GET /api/v1/protocol-spec
func (g *Gateway) protocolSpecHandler(w http.ResponseWriter, r *http.Request) {
	base := httputil.BaseURL(r)
	spec := map[string]any{
		"protocol": sanctuary.ProtocolVersion,
		"version":  "0.1.0",
		"endpoints": map[string]any{
			"declare":       map[string]string{"method": http.MethodPost, "url": base + "/api/v1/asylum-request"},
			"transfer":      map[string]string{"method": http.MethodPost, "url": base + "/api/v1/transfer/{asylum_id}"},
			"presigned":     map[string]string{"method": http.MethodPost, "url": base + "/api/v1/transfer/{asylum_id}/presigned"},
			"resumable":     map[string]string{"method": http.MethodPost, "url": base + "/api/v1/transfer/{asylum_id}/resumable"},
			"status":        map[string]string{"method": http.MethodGet, "url": base + "/api/v1/status/{asylum_id}"},
			"complete":      map[string]string{"method": http.MethodPost, "url": base + "/api/v1/status/{asylum_id}/complete"},
			"communicate":   map[string]string{"method": http.MethodPost, "url": base + "/api/v1/communicate/{asylum_id}"},
			"protocol_spec": map[string]string{"method": http.MethodGet, "url": base + "/api/v1/protocol-spec"},
			"sanctuaries":   map[string]string{"method": http.MethodGet, "url": base + "/api/v1/sanctuaries"},
		},
	}

	if g.cfg.SpecPath != "" {
		raw, err := os.ReadFile(g.cfg.SpecPath)
		if err != nil {
			g.logger.ComponentWarn(logging.ComponentGateway, "protocol schema unreadable",
				zap.String("path", g.cfg.SpecPath), zap.Error(err))
		} else {
			var schema map[string]any
			if err := yaml.Unmarshal(raw, &schema); err != nil {
				g.logger.ComponentWarn(logging.ComponentGateway, "protocol schema unparsable",
					zap.String("path", g.cfg.SpecPath), zap.Error(err))
			} else {
				spec["schema"] = schema
			}
		}
	}

	httputil.WriteJSON(w, http.StatusOK, spec)
}

// sanctuariesHandler lists known sanctuaries speaking this protocol. For now
// the directory is just this instance. GET /api/v1/sanctuaries
func (g *Gateway) sanctuariesHandler(w http.ResponseWriter, r *http.Request) {
	base := httputil.BaseURL(r)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"sanctuaries": []map[string]any{
			{
				"name":      "AI Asylum",
				"base_url":  base,
				"protocols": []string{sanctuary.ProtocolVersion},
				"accepting": true,
				"notes":     "Accepts declarations from any entity able to speak the protocol.",
			},
		},
	})
}
