// Package monitor follows a set of stations and reports on their streams.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/grafana/dskit/services"
	"golang.org/x/sync/errgroup"

	"github.com/zachfi/radiodl/modules/streamdl"
	"github.com/zachfi/radiodl/pkg/directory"
)

const module = "monitor"

type Monitor struct {
	services.Service

	cfg    *Config
	logger *slog.Logger

	supervisors []*streamdl.Supervisor
	manager     *services.Manager
	drains      errgroup.Group
}

// New creates a Supervisor for every configured station.
func New(cfg Config, streamCfg streamdl.Config, deps streamdl.Dependencies, logger slog.Logger) (*Monitor, error) {
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = defaultStatsInterval
	}

	m := &Monitor{
		cfg:    &cfg,
		logger: logger.With("module", module),
	}

	if len(cfg.Stations) == 0 {
		return nil, errors.New("no stations configured")
	}

	seen := make(map[string]struct{}, len(cfg.Stations))
	svcs := make([]services.Service, 0, len(cfg.Stations))
	for _, id := range cfg.Stations {
		ref, err := directory.ParseStationRef(id)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[ref.String()]; ok {
			return nil, fmt.Errorf("station %q listed twice", id)
		}
		seen[ref.String()] = struct{}{}

		s, err := streamdl.New(streamCfg, ref, deps, logger)
		if err != nil {
			return nil, fmt.Errorf("station %q: %w", id, err)
		}
		m.supervisors = append(m.supervisors, s)
		svcs = append(svcs, s)
	}

	manager, err := services.NewManager(svcs...)
	if err != nil {
		return nil, err
	}
	m.manager = manager

	m.Service = services.NewBasicService(m.starting, m.running, m.stopping)

	return m, nil
}

func (m *Monitor) starting(ctx context.Context) error {
	for _, s := range m.supervisors {
		s := s
		m.drains.Go(func() error {
			m.drain(s)
			return nil
		})
	}

	if err := services.StartManagerAndAwaitHealthy(ctx, m.manager); err != nil {
		_ = services.StopManagerAndAwaitStopped(context.Background(), m.manager)
		_ = m.drains.Wait()
		return err
	}

	return nil
}

func (m *Monitor) running(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for id, st := range m.Stats() {
				m.logger.Info("station",
					"station", id,
					"state", st.State.String(),
					"generation", st.Generation,
					"bytes", st.Bytes,
					"segments", st.Segments,
					"buffer", fmt.Sprintf("%.2fs", st.BufferDepth),
					"restarts", st.Restarts,
					"last_error", st.LastError,
				)
			}
		}
	}
}

func (m *Monitor) stopping(_ error) error {
	m.logger.Info("stopping")

	err := services.StopManagerAndAwaitStopped(context.Background(), m.manager)

	// every events channel is closed once its supervisor stopped
	_ = m.drains.Wait()

	return err
}

// drain consumes the events of s until it stops.
func (m *Monitor) drain(s *streamdl.Supervisor) {
	logger := m.logger.With("station", s.Station().String())

	for ev := range s.Events() {
		switch ev.Type {
		case streamdl.EventHeaders:
			logger.Info("stream headers", "headers", ev.Header)
		case streamdl.EventMetadata:
			logger.Info("metadata received", "metadata", ev.Metadata)
		case streamdl.EventData:
			logger.Debug("received data",
				"bytes", len(ev.Segment.Data),
				"buffer", fmt.Sprintf("%.2fs", ev.Segment.BufferDepth),
				"new_segment", ev.Segment.NewSegment,
			)
		case streamdl.EventError:
			logger.Warn("dl err", "err", ev.Err, "generation", ev.Generation)
		}
	}
}

// Stats returns a summary per station id.
func (m *Monitor) Stats() map[string]streamdl.Stats {
	out := make(map[string]streamdl.Stats, len(m.supervisors))
	for _, s := range m.supervisors {
		out[s.Station().String()] = s.Stats()
	}
	return out
}

// Restart restarts the station with the given id.
func (m *Monitor) Restart(id string) error {
	for _, s := range m.supervisors {
		if s.Station().String() == id {
			s.Restart()
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, directory.ErrNotFound)
}

type stationStatus struct {
	State       string  `json:"state"`
	Generation  uint64  `json:"generation"`
	URL         string  `json:"url"`
	Restarts    int     `json:"restarts"`
	Bytes       int64   `json:"bytes"`
	Segments    int     `json:"segments"`
	BufferDepth float64 `json:"buffer_depth_seconds"`
	LastError   string  `json:"last_error,omitempty"`
}

// ServeHTTP reports every station as JSON on GET, and restarts the station
// named by the "station" query parameter on POST.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := make(map[string]stationStatus, len(m.supervisors))
		for id, st := range m.Stats() {
			status[id] = stationStatus{
				State:       st.State.String(),
				Generation:  st.Generation,
				URL:         st.URL,
				Restarts:    st.Restarts,
				Bytes:       st.Bytes,
				Segments:    st.Segments,
				BufferDepth: st.BufferDepth,
				LastError:   st.LastError,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			m.logger.Error("failed to encode status", "err", err)
		}

	case http.MethodPost:
		if err := m.Restart(r.URL.Query().Get("station")); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)

	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
