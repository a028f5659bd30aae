package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nvr-ai/narrator/images"
	"github.com/nvr-ai/narrator/metrics"
	"github.com/nvr-ai/narrator/models/postprocess"
	"github.com/nvr-ai/narrator/pipeline"
	"github.com/nvr-ai/narrator/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func event(text string) tracker.NarrationEvent {
	return tracker.NarrationEvent{Text: text, Label: "person"}
}

func TestServer_Ping(t *testing.T) {
	s := New(nil, 0, zaptest.NewLogger(t))
	rec := get(t, s.Handler(), "/api/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rec.Body.String())
}

func TestServer_Summary(t *testing.T) {
	s := New(nil, 0, zaptest.NewLogger(t))

	rec := get(t, s.Handler(), "/api/summary")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.Display(pipeline.FrameResult{
		FrameID: 7,
		Size:    images.Size{Width: 640, Height: 480},
		Detections: []postprocess.Detection{
			{Box: images.Rect{X1: 1, Y1: 2, X2: 3, Y2: 4}, Confidence: 0.5, Label: "cup"},
		},
		Summary: "cup: 50% → left-top, far",
	})

	rec = get(t, s.Handler(), "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data pipeline.FrameResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 7, body.Data.FrameID)
	assert.Equal(t, "cup: 50% → left-top, far", body.Data.Summary)
	require.Len(t, body.Data.Detections, 1)
	assert.Equal(t, "cup", body.Data.Detections[0].Label)
}

func TestServer_NarrationsKeepsMostRecent(t *testing.T) {
	s := New(nil, 3, zaptest.NewLogger(t))

	s.Display(pipeline.FrameResult{Narrations: []tracker.NarrationEvent{event("a"), event("b")}})
	s.Display(pipeline.FrameResult{})
	s.Display(pipeline.FrameResult{Narrations: []tracker.NarrationEvent{event("c"), event("d")}})

	texts := func(path string) []string {
		rec := get(t, s.Handler(), path)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Data []tracker.NarrationEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		var out []string
		for _, e := range body.Data {
			out = append(out, e.Text)
		}
		return out
	}

	assert.Equal(t, []string{"b", "c", "d"}, texts("/api/narrations"))
	assert.Equal(t, []string{"d"}, texts("/api/narrations?limit=1"))
	assert.Equal(t, []string{"b", "c", "d"}, texts("/api/narrations?limit=10"))

	rec := get(t, s.Handler(), "/api/narrations?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.New()
	m.FramesDropped.Inc()

	s := New(m, 0, zaptest.NewLogger(t))
	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "narrator_frames_dropped_total 1")

	rec = get(t, New(nil, 0, nil).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListenAndServe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := New(nil, 0, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, addr) }()

	assert.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/api/ping", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
