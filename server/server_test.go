package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/August13742/Homebrew-Karaoke/detector"
	"github.com/August13742/Homebrew-Karaoke/logging"
	"github.com/August13742/Homebrew-Karaoke/scoring"
	"github.com/August13742/Homebrew-Karaoke/session"
	"github.com/August13742/Homebrew-Karaoke/store"
	"github.com/August13742/Homebrew-Karaoke/timeline"
)

type fixedSource session.Snapshot

func (f fixedSource) Snapshot() session.Snapshot {
	return session.Snapshot(f)
}

type fakeHistory struct {
	recs []store.Record
	err  error
	song string
	n    int
}

func (h *fakeHistory) List(_ context.Context, song string, limit int) ([]store.Record, error) {
	h.song, h.n = song, limit
	return h.recs, h.err
}

func newTestServer(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	tl, err := timeline.New([]timeline.TargetNote{{Start: 0, End: 1, Midi: 60}})
	require.NoError(t, err)

	snap := fixedSource{
		SessionID: "abc",
		Tick:      42,
		Time:      0.7,
		Detection: detector.Detection{IsDetected: true, IsVoiced: true, MidiNote: 60, NoteName: "C4"},
		Result:    scoring.Result{HasTarget: true, Tier: scoring.Perfect},
	}
	opts = append([]Option{WithLogger(&logging.NoOpLogger{})}, opts...)
	return New(snap, tl, opts...).Handler()
}

func TestStateEndpoint(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Origin", "http://overlay.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "abc", body["session_id"])
	assert.Equal(t, 42.0, body["tick"])
	assert.Equal(t, "C4", body["detection"].(map[string]any)["note_name"])
	assert.Equal(t, "perfect", body["result"].(map[string]any)["tier"])
}

func TestTimelineEndpoint(t *testing.T) {
	h := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/timeline", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var notes []timeline.TargetNote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	assert.Equal(t, []timeline.TargetNote{{Start: 0, End: 1, Midi: 60}}, notes)
}

func TestHistoryEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	hist := &fakeHistory{recs: []store.Record{{ID: "1", Song: "anthem", Score: 12}}}
	h := newTestServer(t, WithHistory(hist))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?song=anthem&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anthem", hist.song)
	assert.Equal(t, 5, hist.n)

	var recs []store.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, 12.0, recs[0].Score)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	hist.err = errors.New("disk on fire")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/state", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	tl, err := timeline.New(nil)
	require.NoError(t, err)
	srv := New(fixedSource{}, tl, WithLogger(&logging.NoOpLogger{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, srv.ListenAndServe(ctx, "127.0.0.1:0"))
}
