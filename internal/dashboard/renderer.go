package dashboard

import (
	"html/template"
	"io"

	"github.com/vilaca/activity-dashboard/internal/domain"
)

// Renderer handles rendering responses to HTTP clients.
type Renderer interface {
	RenderIndex(w io.Writer, view View) error
	RenderHealth(w io.Writer, health Health) error
}

// HTMLRenderer implements Renderer with an embedded html/template page.
type HTMLRenderer struct {
	index *template.Template
}

// NewHTMLRenderer creates a new HTML renderer.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		index: template.Must(template.New("index").Parse(indexTemplate)),
	}
}

type indexData struct {
	View
	IntervalSeconds int
	Capacity        int
}

// RenderIndex renders the activity page.
func (r *HTMLRenderer) RenderIndex(w io.Writer, view View) error {
	return r.index.Execute(w, indexData{
		View:            view,
		IntervalSeconds: int(domain.PollInterval.Seconds()),
		Capacity:        domain.DisplayCapacity,
	})
}

// RenderHealth writes the health payload as JSON.
func (r *HTMLRenderer) RenderHealth(w io.Writer, health Health) error {
	return json.NewEncoder(w).Encode(health)
}

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>PushPullMerge Monitor</title>
	<style>
		body { font-family: system-ui, -apple-system, sans-serif; margin: 0; padding: 32px 16px; background: #f1f5f9; color: #1e293b; }
		.container { max-width: 896px; margin: 0 auto; }
		header { text-align: center; margin-bottom: 32px; }
		h1 { font-size: 2.25rem; margin: 0 0 8px; }
		.subtitle { color: #475569; font-size: 1.1rem; }
		.meta { color: #64748b; font-size: 0.875rem; margin-top: 12px; }
		.error { color: #b91c1c; }
		.stale { color: #b45309; }
		.card { background: white; border-radius: 16px; box-shadow: 0 10px 25px rgba(0,0,0,0.08); overflow: hidden; }
		.bar { background: #334155; color: white; padding: 16px 24px; display: flex; justify-content: space-between; }
		.events { padding: 24px; }
		.event { padding: 16px; border-radius: 12px; border: 2px solid; margin-bottom: 16px; }
		.badge { display: inline-block; padding: 2px 10px; border-radius: 999px; font-size: 0.75rem; font-weight: 600; }
		.author { color: #64748b; font-size: 0.875rem; margin-left: 8px; }
		.empty { text-align: center; padding: 48px 0; color: #64748b; }
		footer { text-align: center; margin-top: 32px; color: #64748b; font-size: 0.875rem; }
		.bg-blue-50 { background: #eff6ff; } .border-blue-200 { border-color: #bfdbfe; }
		.bg-green-50 { background: #f0fdf4; } .border-green-200 { border-color: #bbf7d0; }
		.bg-purple-50 { background: #faf5ff; } .border-purple-200 { border-color: #e9d5ff; }
		.bg-gray-50 { background: #f9fafb; } .border-gray-200 { border-color: #e5e7eb; }
		.bg-blue-100 { background: #dbeafe; } .text-blue-800 { color: #1e40af; }
		.bg-green-100 { background: #dcfce7; } .text-green-800 { color: #166534; }
		.bg-purple-100 { background: #f3e8ff; } .text-purple-800 { color: #6b21a8; }
		.bg-gray-100 { background: #f3f4f6; } .text-gray-800 { color: #1f2937; }
	</style>
</head>
<body>
	<div class="container">
		<header>
			<h1>PushPullMerge Monitor</h1>
			<div class="subtitle">Real-time Git activity monitoring dashboard</div>
			{{with .Header}}
			{{if .LastUpdated}}<div class="meta">Last updated: {{.LastUpdatedText}}{{if .Stale}} <span class="stale">(stale)</span>{{end}}</div>{{end}}
			{{if .Error}}<div class="meta error">Feed unavailable: {{.Error}}</div>{{end}}
			{{end}}
		</header>

		<div class="card">
			<div class="bar">
				<strong>Recent Activity</strong>
				<span>{{.Header.CountText}}</span>
			</div>
			<div class="events">
				{{if .Header.Loading}}
				<div class="empty">Loading events...</div>
				{{else if not .Items}}
				<div class="empty">
					<p>No events yet.</p>
					<p>Events will appear here when Git activity is detected.</p>
				</div>
				{{else}}
				{{range .Items}}
				<div class="event {{.ColorClass}}" id="event-{{.Event.RequestID}}" data-icon="{{.Icon}}">
					<span class="badge {{.BadgeClass}}">{{.Label}}</span>
					<span class="author">{{.Event.Author}}</span>
					<p>{{.Sentence}}</p>
				</div>
				{{end}}
				{{end}}
			</div>
		</div>

		<footer>Updates every {{.IntervalSeconds}} seconds &bull; Showing last {{.Capacity}} events</footer>
	</div>
	<script>
		(function () {
			var scheme = location.protocol === "https:" ? "wss://" : "ws://";
			var first = true;
			var ws = new WebSocket(scheme + location.host + "/api/stream");
			ws.onmessage = function () {
				if (first) { first = false; return; }
				location.reload();
			};
		})();
	</script>
</body>
</html>
`
