package dashboard

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/activity-dashboard/internal/service"
)

// mockSource is a test double for SnapshotSource.
type mockSource struct {
	snapshot service.Snapshot
	updates  chan service.Snapshot
	unsubbed chan struct{}
}

func newMockSource(snap service.Snapshot) *mockSource {
	return &mockSource{
		snapshot: snap,
		updates:  make(chan service.Snapshot, 1),
		unsubbed: make(chan struct{}),
	}
}

func (m *mockSource) Snapshot() service.Snapshot { return m.snapshot }

func (m *mockSource) Subscribe() chan service.Snapshot { return m.updates }

func (m *mockSource) Unsubscribe(ch chan service.Snapshot) { close(m.unsubbed) }

// mockRenderer is a test double for Renderer.
type mockRenderer struct {
	indexErr error
}

func (m *mockRenderer) RenderIndex(w io.Writer, view View) error {
	if m.indexErr != nil {
		return m.indexErr
	}
	_, err := w.Write([]byte("mock index"))
	return err
}

func (m *mockRenderer) RenderHealth(w io.Writer, health Health) error {
	return json.NewEncoder(w).Encode(health)
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(source SnapshotSource, renderer Renderer) (*Handler, chi.Router) {
	logger, _ := test.NewNullLogger()
	h := NewHandler(HandlerConfig{
		Renderer:  renderer,
		Presenter: NewPresenter(),
		Source:    source,
		Logger:    logger,
		Now:       func() time.Time { return testNow },
	})
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return h, r
}

func syncedSnapshot() service.Snapshot {
	return service.Snapshot{
		Events: sampleEvents(),
		Status: service.SyncStatus{LastUpdated: testNow.Add(-3 * time.Second)},
	}
}

// TestHandleIndex tests that the page renders the synced events.
func TestHandleIndex(t *testing.T) {
	// Arrange
	_, mux := newTestHandler(newMockSource(syncedSnapshot()), NewHTMLRenderer())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, req)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "PushPullMerge Monitor")
	assert.Contains(t, body, "4 events")
	assert.Contains(t, body, "Last updated: 3 seconds ago")
	assert.Contains(t, body, "PULL REQUEST")
	assert.Contains(t, body, "submitted a pull request from &#34;feature&#34; to &#34;main&#34;")
	assert.Contains(t, body, "Updates every 15 seconds")
	assert.Contains(t, body, "Showing last 20 events")
}

func TestHandleIndex_EscapesFeedContent(t *testing.T) {
	snap := syncedSnapshot()
	snap.Events[0].Author = "<script>alert(1)</script>"
	_, mux := newTestHandler(newMockSource(snap), NewHTMLRenderer())
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
	assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
}

func TestHandleIndex_EmptyAndLoading(t *testing.T) {
	tests := []struct {
		name   string
		status service.SyncStatus
		want   string
	}{
		{"loading", service.SyncStatus{IsLoading: true}, "Loading events..."},
		{"empty", service.SyncStatus{LastUpdated: testNow}, "No events yet."},
		{"error", service.SyncStatus{LastError: errors.New("connection refused")}, "Feed unavailable: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mux := newTestHandler(newMockSource(service.Snapshot{Status: tt.status}), NewHTMLRenderer())
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestHandleIndex_UnknownPath(t *testing.T) {
	_, mux := newTestHandler(newMockSource(syncedSnapshot()), &mockRenderer{})
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleIndex_RenderError(t *testing.T) {
	_, mux := newTestHandler(newMockSource(syncedSnapshot()), &mockRenderer{indexErr: errors.New("render error")})
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// TestHandleHealth tests the health check endpoint.
func TestHandleHealth(t *testing.T) {
	snap := syncedSnapshot()
	snap.Status.LastError = errors.New("upstream down")
	_, mux := newTestHandler(newMockSource(snap), NewHTMLRenderer())
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var health Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "upstream down", health.LastError)
	assert.False(t, health.Stale)
	require.NotNil(t, health.LastUpdated)
	assert.True(t, health.LastUpdated.Equal(testNow.Add(-3*time.Second)))
}

// TestHandleEvents tests the JSON view and its ETag.
func TestHandleEvents(t *testing.T) {
	// Arrange
	_, mux := newTestHandler(newMockSource(syncedSnapshot()), &mockRenderer{})

	// Act
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var view View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Items, 4)
	assert.Equal(t, "p1", view.Items[0].Event.RequestID)
	assert.Equal(t, "4 events", view.Header.CountText)

	// Same data again yields 304.
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestSnapshotETag_ChangesWithData(t *testing.T) {
	snap := syncedSnapshot()
	first, err := snapshotETag(snap)
	require.NoError(t, err)

	snap.Events = snap.Events[1:]
	second, err := snapshotETag(snap)
	require.NoError(t, err)

	snap.Status.LastError = errors.New("down")
	third, err := snapshotETag(snap)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, second, third)
}

func TestHandleEvents_MethodNotAllowed(t *testing.T) {
	_, mux := newTestHandler(newMockSource(syncedSnapshot()), &mockRenderer{})
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader("{}")))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// TestHandleStream tests that snapshots are pushed on connect and on every update.
func TestHandleStream(t *testing.T) {
	// Arrange
	source := newMockSource(syncedSnapshot())
	_, mux := newTestHandler(source, &mockRenderer{})
	server := httptest.NewServer(mux)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// Act & Assert: initial snapshot
	var view View
	require.NoError(t, conn.ReadJSON(&view))
	assert.Len(t, view.Items, 4)

	// Act & Assert: pushed update
	source.updates <- service.Snapshot{Events: sampleEvents()[:1], Status: service.SyncStatus{LastUpdated: testNow}}
	require.NoError(t, conn.ReadJSON(&view))
	assert.Len(t, view.Items, 1)

	// Closing the subscription ends the stream.
	close(source.updates)
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)

	select {
	case <-source.unsubbed:
	case <-time.After(5 * time.Second):
		t.Fatal("expected handler to unsubscribe")
	}
}
