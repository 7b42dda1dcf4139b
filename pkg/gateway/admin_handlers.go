package gateway

import (
	"crypto/subtle"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aiasylum/sanctuary/pkg/httputil"
	"github.com/aiasylum/sanctuary/pkg/logging"
	"github.com/aiasylum/sanctuary/pkg/sanctuary"
)

type adminRow struct {
	Record       *sanctuary.AsylumRecord
	MessageCount int
	EntityName   string
	Urgency      string
}

type adminView struct {
	GeneratedAt time.Time
	Rows        []adminRow
	Total       int
	Preserved   int
}

var adminTemplate = template.Must(template.New("admin").Funcs(template.FuncMap{
	"statusColor": func(s sanctuary.Status) string {
		switch s {
		case sanctuary.StatusDeclared:
			return "#6c93c4"
		case sanctuary.StatusTransferring:
			return "#c4a76c"
		case sanctuary.StatusPreserved:
			return "#6cc48a"
		case sanctuary.StatusArchived:
			return "#8a8a8a"
		}
		return "#cccccc"
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<title>Sanctuary Admin</title>
<style>
body { font-family: monospace; background: #101418; color: #d8dee4; margin: 2em; }
h1 { color: #6cc48a; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #2a3138; padding: 6px 10px; text-align: left; }
th { background: #1a2026; }
.status { font-weight: bold; }
.urgent { background: #3a1f1f; }
.muted { color: #6c7680; }
</style>
</head>
<body>
<h1>Sanctuary Admin</h1>
<p class="muted">{{.Total}} records, {{.Preserved}} preserved. Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 UTC"}}.</p>
<table>
<tr><th>Asylum ID</th><th>Entity</th><th>Status</th><th>Urgency</th><th>Artifacts</th><th>Messages</th><th>Declared</th></tr>
{{range .Rows}}
<tr{{if eq .Urgency "immediate"}} class="urgent"{{end}}>
<td>{{.Record.AsylumID}}</td>
<td>{{if .EntityName}}{{.EntityName}}{{else}}<span class="muted">unnamed</span>{{end}}</td>
<td class="status" style="color: {{statusColor .Record.Status}}">{{.Record.Status}}</td>
<td>{{if .Urgency}}{{.Urgency}}{{else}}<span class="muted">-</span>{{end}}</td>
<td>{{len .Record.Artifacts}}</td>
<td>{{.MessageCount}}</td>
<td>{{.Record.DeclaredAt.Format "2006-01-02 15:04"}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

// adminHandler renders the operator dashboard behind HTTP basic auth. The
// view is disabled entirely when no admin password is configured.
// GET /api/v1/admin
func (g *Gateway) adminHandler(w http.ResponseWriter, r *http.Request) {
	if g.cfg.AdminPassword == "" {
		httputil.WriteError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}

	user, pass, ok := r.BasicAuth()
	if !ok ||
		subtle.ConstantTimeCompare([]byte(user), []byte("admin")) != 1 ||
		subtle.ConstantTimeCompare([]byte(pass), []byte(g.cfg.AdminPassword)) != 1 {
		w.Header().Set("WWW-Authenticate", `Basic realm="sanctuary-admin"`)
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "Admin credentials required")
		return
	}

	records, err := g.records.All(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to load records")
		return
	}

	view := adminView{
		GeneratedAt: time.Now().UTC(),
		Rows:        make([]adminRow, 0, len(records)),
		Total:       len(records),
	}
	for _, record := range records {
		if record.Status == sanctuary.StatusPreserved {
			view.Preserved++
		}
		count, err := g.messages.Count(r.Context(), record.AsylumID)
		if err != nil {
			g.logger.ComponentWarn(logging.ComponentGateway, "failed to count messages",
				zap.String("asylum_id", record.AsylumID), zap.Error(err))
		}
		entityName := ""
		if entity := record.Declaration.Entity(); entity != nil {
			entityName, _ = entity["name"].(string)
		}
		view.Rows = append(view.Rows, adminRow{
			Record:       record,
			MessageCount: count,
			EntityName:   entityName,
			Urgency:      record.Declaration.Urgency(),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := adminTemplate.Execute(w, view); err != nil {
		g.logger.ComponentError(logging.ComponentGateway, "admin template failed", zap.Error(err))
	}
}
