package dashboard

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"github.com/vilaca/activity-dashboard/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SnapshotSource is the read side of the syncer.
type SnapshotSource interface {
	Snapshot() service.Snapshot
	Subscribe() chan service.Snapshot
	Unsubscribe(ch chan service.Snapshot)
}

// Health is the /api/health payload.
type Health struct {
	Status      string     `json:"status"`
	LastUpdated *time.Time `json:"last_updated"`
	Stale       bool       `json:"stale"`
	LastError   string     `json:"last_error,omitempty"`
}

// Handler handles HTTP requests for the dashboard.
type Handler struct {
	renderer  Renderer
	presenter *Presenter
	source    SnapshotSource
	logger    logrus.FieldLogger
	now       func() time.Time
	upgrader  websocket.Upgrader
}

// HandlerConfig holds configuration for creating a new Handler.
type HandlerConfig struct {
	Renderer  Renderer
	Presenter *Presenter
	Source    SnapshotSource
	Logger    logrus.FieldLogger
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewHandler creates a new Handler with injected dependencies.
func NewHandler(cfg HandlerConfig) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		renderer:  cfg.Renderer,
		presenter: cfg.Presenter,
		source:    cfg.Source,
		logger:    cfg.Logger.WithField("component", "dashboard"),
		now:       now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes registers all HTTP routes. Unknown paths get 404 and other
// methods 405 from the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/api/health", h.handleHealth)
	r.Get("/api/events", h.handleEvents)
	r.Get("/api/stream", h.handleStream)
}

// handleIndex serves the activity page.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	view := h.presenter.View(h.source.Snapshot(), h.now())
	if err := h.renderer.RenderIndex(w, view); err != nil {
		h.logger.WithError(err).Error("Failed to render index")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// handleHealth reports liveness plus sync staleness. Feed failures never make it fail.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	header := h.presenter.Header(h.source.Snapshot().Status, 0, h.now())
	health := Health{
		Status:      "ok",
		LastUpdated: header.LastUpdated,
		Stale:       header.Stale,
		LastError:   header.Error,
	}
	if err := h.renderer.RenderHealth(w, health); err != nil {
		h.logger.WithError(err).Error("Failed to render health")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// handleEvents returns the current view as JSON, with an ETag so polling
// clients get 304 while nothing changed.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Snapshot()
	etag, err := snapshotETag(snap)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash snapshot")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	body, err := json.Marshal(h.presenter.View(snap, h.now()))
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode events")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// snapshotETag hashes the synced data only, so relative times such as
// "12 seconds ago" do not change the tag between polls.
func snapshotETag(snap service.Snapshot) (string, error) {
	key := struct {
		Events      any       `json:"events"`
		LastUpdated time.Time `json:"last_updated"`
		LastError   string    `json:"last_error"`
		Failures    int       `json:"failures"`
	}{
		Events:      snap.Events,
		LastUpdated: snap.Status.LastUpdated,
		Failures:    snap.Status.ConsecutiveFailures,
	}
	if snap.Status.LastError != nil {
		key.LastError = snap.Status.LastError.Error()
	}
	data, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`"%016x"`, xxh3.Hash(data)), nil
}
