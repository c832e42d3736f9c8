package monitor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachfi/radiodl/modules/streamdl"
	"github.com/zachfi/radiodl/pkg/codec"
	"github.com/zachfi/radiodl/pkg/directory"
	"github.com/zachfi/radiodl/pkg/hls"
	"github.com/zachfi/radiodl/pkg/resolver"
)

type stubDirectory struct {
	url string
}

func (d *stubDirectory) Lookup(_ context.Context, ref directory.StationRef) (*directory.Station, error) {
	return &directory.Station{
		Country: ref.Country,
		Name:    ref.Name,
		URL:     d.url + "/" + ref.Name,
		Codec:   "MP3",
		Ext:     codec.MP3,
		Bitrate: 16000,
	}, nil
}

type stubTool struct{}

func (stubTool) Inspect(context.Context, []byte) (string, error) {
	return "  Stream #0:0: Audio: mp3, 44100 Hz, stereo, fltp, 128 kb/s\n", nil
}

type stubHLS struct{}

func (stubHLS) Run(ctx context.Context, _ string, _ hls.Sink) error {
	<-ctx.Done()
	return ctx.Err()
}

type stubLegacy struct{}

func (stubLegacy) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, io.ErrUnexpectedEOF
}

func testLogger() slog.Logger {
	return *slog.New(slog.NewTextHandler(io.Discard, nil))
}

func audioServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		chunk := make([]byte, 4000)
		for {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(2 * time.Millisecond):
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestMonitor(t *testing.T, stations ...string) *Monitor {
	t.Helper()

	srv := audioServer(t)
	deps := streamdl.Dependencies{
		Directory: &stubDirectory{url: srv.URL},
		Resolver:  resolver.New(resolver.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil))),
		HLS:       stubHLS{},
		Probe:     stubTool{},
		Legacy:    stubLegacy{},
	}

	m, err := New(Config{Stations: stations, StatsInterval: 20 * time.Millisecond}, streamdl.Config{}, deps, testLogger())
	require.NoError(t, err)

	var once sync.Once
	require.NoError(t, services.StartAndAwaitRunning(context.Background(), m))
	t.Cleanup(func() {
		once.Do(func() {
			require.NoError(t, services.StopAndAwaitTerminated(context.Background(), m))
		})
	})
	return m
}

func TestMonitor(t *testing.T) {
	m := newTestMonitor(t, "France_Nova", "Belgium_Zen")

	require.Eventually(t, func() bool {
		for _, st := range m.Stats() {
			if st.Bytes == 0 {
				return false
			}
		}
		return true
	}, 10*time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stations", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]stationStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	require.Len(t, status, 2)
	assert.Equal(t, "streaming", status["France_Nova"].State)
	assert.Contains(t, status["Belgium_Zen"].URL, "/Zen")

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stations?station=France_Nova", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool {
		return m.Stats()["France_Nova"].Restarts >= 1
	}, 10*time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stations?station=Spain_RAC1", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/stations", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewValidatesStations(t *testing.T) {
	deps := streamdl.Dependencies{
		Directory: &stubDirectory{},
		Resolver:  resolver.New(resolver.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil))),
		HLS:       stubHLS{},
		Probe:     stubTool{},
		Legacy:    stubLegacy{},
	}

	tests := map[string][]string{
		"empty":     nil,
		"malformed": {"France"},
		"duplicate": {"France_Nova", "France_Nova"},
	}

	for name, stations := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(Config{Stations: stations}, streamdl.Config{}, deps, testLogger())
			require.Error(t, err)
		})
	}
}
