// Package streamdl keeps the audio of one radio station flowing. A
// Supervisor resolves the station in the directory, runs a worker that
// follows redirects, playlists and HLS manifests down to the audio, and
// republishes what the worker finds as a single ordered event stream,
// restarting the worker whenever it fails or stalls.
package streamdl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"

	"github.com/zachfi/radiodl/pkg/directory"
	"github.com/zachfi/radiodl/pkg/hls"
	"github.com/zachfi/radiodl/pkg/icy"
	"github.com/zachfi/radiodl/pkg/media"
	"github.com/zachfi/radiodl/pkg/probe"
	"github.com/zachfi/radiodl/pkg/resolver"
	"github.com/zachfi/radiodl/pkg/segment"
)

const (
	module      = "streamdl"
	inboxBuffer = 64
)

type Directory interface {
	Lookup(ctx context.Context, ref directory.StationRef) (*directory.Station, error)
}

type Resolver interface {
	Open(ctx context.Context, url string) (*resolver.Response, error)
}

type HLSHandler interface {
	Run(ctx context.Context, url string, sink hls.Sink) error
}

type LegacyFetcher interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Dependencies are the collaborators a worker reaches the network and the
// external helpers through.
type Dependencies struct {
	Directory Directory
	Resolver  Resolver
	HLS       HLSHandler
	Probe     probe.Tool
	Legacy    LegacyFetcher
}

// NewDependencies builds the production collaborators from cfg.
func NewDependencies(cfg Config, logger *slog.Logger) Dependencies {
	return Dependencies{
		Directory: directory.New(cfg.Directory, logger),
		Resolver:  resolver.New(cfg.Resolver, logger),
		HLS:       hls.New(cfg.HLS, media.NewDemuxer(cfg.Media), logger),
		Probe:     media.NewInspector(cfg.Media),
		Legacy:    media.NewLegacyFetcher(cfg.Media),
	}
}

// Stats is a point in time summary of a session.
type Stats struct {
	State       State
	Generation  uint64
	URL         string
	Restarts    int
	Bytes       int64
	Segments    int
	BufferDepth float64
	LastError   string
}

type Supervisor struct {
	services.Service

	cfg    *Config
	ref    directory.StationRef
	id     string
	deps   Dependencies
	prober *probe.Prober
	logger *slog.Logger

	inbox    chan envelope
	restarts chan struct{}
	quit     chan struct{}
	lookups  sync.WaitGroup
	w        *eventWriter

	state atomic.Int32
	gen   atomic.Uint64

	// owned by the running loop
	station   *directory.Station
	src       source
	icy       icy.Info
	session   string
	worker    *worker
	segmenter *segment.Segmenter
	lastData  time.Time
	timer     *time.Timer
	visited   map[string]struct{}
	backoff   *backoff.Backoff

	statsMtx sync.Mutex
	stats    Stats
}

// New creates a Supervisor for ref. Nothing happens until the service is
// started.
func New(cfg Config, ref directory.StationRef, deps Dependencies, logger slog.Logger) (*Supervisor, error) {
	cfg.applyDefaults()

	if deps.Directory == nil || deps.Resolver == nil || deps.HLS == nil || deps.Probe == nil || deps.Legacy == nil {
		return nil, errors.New("incomplete dependencies")
	}

	l := logger.With("module", module, "station", ref.String())

	s := &Supervisor{
		cfg:      &cfg,
		ref:      ref,
		id:       ref.String(),
		deps:     deps,
		prober:   probe.New(deps.Probe, cfg.DefaultBitrateKbps*1000/8, l),
		logger:   l,
		inbox:    make(chan envelope, inboxBuffer),
		restarts: make(chan struct{}, 1),
		quit:     make(chan struct{}),
		w:        newEventWriter(cfg.EventBuffer),
		visited:  make(map[string]struct{}),
	}

	s.Service = services.NewBasicService(nil, s.running, s.stopping)

	return s, nil
}

// Events returns the output stream of the station. It is closed once the
// Supervisor has stopped. The consumer must keep draining it.
func (s *Supervisor) Events() <-chan Event { return s.w.events }

// Restart abandons the current attempt and starts over from the directory.
// It is the way out of StateFailed.
func (s *Supervisor) Restart() {
	select {
	case s.restarts <- struct{}{}:
	default:
	}
}

// Stop ends the session and waits until every goroutine and helper process
// it started is gone. No event is delivered after Stop returns.
func (s *Supervisor) Stop() error {
	return services.StopAndAwaitTerminated(context.Background(), s)
}

func (s *Supervisor) Station() directory.StationRef { return s.ref }

func (s *Supervisor) SessionState() State { return State(s.state.Load()) }

func (s *Supervisor) Generation() uint64 { return s.gen.Load() }

func (s *Supervisor) Stats() Stats {
	s.statsMtx.Lock()
	defer s.statsMtx.Unlock()

	st := s.stats
	st.State = s.SessionState()
	st.Generation = s.Generation()
	return st
}

func (s *Supervisor) running(ctx context.Context) error {
	s.backoff = backoff.New(ctx, backoff.Config{
		MinBackoff: s.cfg.ReconnectBackoff,
		MaxBackoff: s.cfg.ReconnectBackoffMax,
	})

	ticker := time.NewTicker(s.cfg.StallCheckInterval)
	defer ticker.Stop()

	s.restart(ctx, "start", 0, true)

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-s.inbox:
			s.handle(ctx, env)
		case <-s.restarts:
			s.logger.Info("restart requested")
			s.restart(ctx, "requested", 0, true)
		case <-ticker.C:
			s.checkStall(ctx)
		}
	}
}

func (s *Supervisor) stopping(_ error) error {
	s.logger.Info("stopping")

	s.stopTimer()
	close(s.quit)
	s.stopWorker()
	s.lookups.Wait()

	s.setState(StateStopped)

	return s.w.Close()
}

// post delivers a message produced outside the running loop.
func (s *Supervisor) post(gen uint64, msg any) {
	select {
	case s.inbox <- envelope{gen: gen, msg: msg}:
	case <-s.quit:
	}
}

func (s *Supervisor) handle(ctx context.Context, env envelope) {
	if env.gen != s.gen.Load() {
		s.logger.Debug("discarding stale message", "type", fmt.Sprintf("%T", env.msg), "generation", env.gen, "current", s.gen.Load())
		return
	}

	switch m := env.msg.(type) {
	case beginMsg:
		s.begin(ctx, env.gen, m.refresh)

	case resolvedMsg:
		s.onResolved(ctx, env.gen, m)

	case headersMsg:
		s.logger.Debug("will emit headers")
		s.icy = icy.FromHeader(m.header)
		s.emit(ctx, Event{Type: EventHeaders, Header: m.header})

	case metadataMsg:
		s.logger.Debug("will emit metadata")
		s.emit(ctx, Event{Type: EventMetadata, Metadata: s.metadata()})

	case dataMsg:
		s.onData(ctx, m)

	case bitrateMsg:
		s.logger.Info("bitrate updated", "bitrate", m.bitrate)
		s.src.bitrate = m.bitrate

	case extMsg:
		s.logger.Info("ext updated", "ext", m.ext)
		s.src.ext = m.ext

	case urlMsg:
		s.onURL(ctx, m)

	case exitMsg:
		s.onExit(ctx, m.err)

	default:
		s.logger.Warn("message not recognized", "type", fmt.Sprintf("%T", m))
	}
}

// restart abandons the current generation. After delay the next one starts,
// first going back to the directory when refresh is set.
func (s *Supervisor) restart(ctx context.Context, reason string, delay time.Duration, refresh bool) {
	gen := s.gen.Add(1)
	metricGeneration.WithLabelValues(s.id).Set(float64(gen))

	if reason != "start" {
		metricRestarts.WithLabelValues(s.id, reason).Inc()
		s.statsMtx.Lock()
		s.stats.Restarts++
		s.statsMtx.Unlock()
	}

	s.stopTimer()
	s.stopWorker()

	if delay <= 0 {
		s.logger.Info("starting", "reason", reason, "generation", gen)
		s.begin(ctx, gen, refresh)
		return
	}

	s.setState(StateRestarting)
	s.logger.Info("restarting", "reason", reason, "delay", delay, "generation", gen)
	s.timer = time.AfterFunc(delay, func() {
		s.post(gen, beginMsg{refresh: refresh})
	})
}

func (s *Supervisor) begin(ctx context.Context, gen uint64, refresh bool) {
	s.lastData = time.Now()

	if !refresh && s.station != nil {
		s.launch(ctx, gen)
		return
	}

	s.setState(StateResolvingMetadata)

	s.lookups.Add(1)
	go func() {
		defer s.lookups.Done()
		station, err := s.deps.Directory.Lookup(ctx, s.ref)
		s.post(gen, resolvedMsg{station: station, err: err})
	}()
}

func (s *Supervisor) onResolved(ctx context.Context, gen uint64, m resolvedMsg) {
	if m.err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("problem fetching radio info", "err", m.err)
		s.emitError(ctx, fmt.Sprintf("problem fetching radio info: %v", m.err))

		if errors.Is(m.err, directory.ErrUnsupportedCodec) {
			s.fail(ctx, &resolver.Error{Kind: resolver.KindUnsupportedCodec, Err: m.err})
			return
		}
		s.restart(ctx, "directory", s.backoff.NextDelay(), true)
		return
	}

	s.station = m.station
	s.src = source{
		url:     m.station.URL,
		ext:     m.station.Ext,
		hls:     m.station.HLS,
		bitrate: m.station.Bitrate,
	}
	clear(s.visited)

	s.launch(ctx, gen)
}

func (s *Supervisor) launch(ctx context.Context, gen uint64) {
	s.setState(StateLaunchingWorker)

	s.session = uuid.NewString()
	s.icy = icy.Info{}
	s.segmenter = segment.New(s.cfg.SegmentDuration)
	s.lastData = time.Now()

	if len(s.visited) == 0 {
		s.visited[s.src.url] = struct{}{}
	}

	s.statsMtx.Lock()
	s.stats.URL = s.src.url
	s.statsMtx.Unlock()

	wctx, cancel := context.WithCancel(ctx)
	s.worker = &worker{
		gen:     gen,
		station: s.id,
		src:     s.src,
		deps:    s.deps,
		prober:  s.prober,
		probe:   probe.NewState(s.cfg.ProbeThreshold),
		inbox:   s.inbox,
		logger:  s.logger.With("generation", gen, "session", s.session),
		ctx:     wctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.worker.start()
}

func (s *Supervisor) onData(ctx context.Context, m dataMsg) {
	s.lastData = time.Now()

	if s.SessionState() != StateStreaming {
		s.logger.Info("first data received", "first_segment", m.first)
		s.setState(StateStreaming)
		s.backoff.Reset()
		clear(s.visited)
	}

	for _, seg := range s.segmenter.Push(m.data, m.first, s.src.bitrate) {
		s.emit(ctx, Event{Type: EventData, Segment: seg})

		metricBytes.WithLabelValues(s.id).Add(float64(len(seg.Data)))
		metricBufferDepth.WithLabelValues(s.id).Set(seg.BufferDepth)

		s.statsMtx.Lock()
		s.stats.Bytes += int64(len(seg.Data))
		s.stats.BufferDepth = seg.BufferDepth
		if seg.NewSegment {
			s.stats.Segments++
		}
		s.statsMtx.Unlock()

		if seg.NewSegment {
			metricSegments.WithLabelValues(s.id).Inc()
		}
	}
}

func (s *Supervisor) onURL(ctx context.Context, m urlMsg) {
	if _, seen := s.visited[m.url]; seen || len(s.visited) > s.cfg.MaxRedirects {
		err := &resolver.Error{Kind: resolver.KindRedirectLoop, URL: m.url, Err: fmt.Errorf("%d hops", len(s.visited))}
		s.logger.Error("redirect loop", "url", m.url, "hops", len(s.visited))
		s.emitError(ctx, err.Error())
		s.fail(ctx, err)
		return
	}
	s.visited[m.url] = struct{}{}

	s.logger.Info("url updated", "url", m.url, "via", m.outcome)
	s.src.url = m.url
	s.restart(ctx, "url", 0, false)
}

// onExit applies the restart policy for a worker that ended on its own.
func (s *Supervisor) onExit(ctx context.Context, err error) {
	s.stopWorker()

	if err == nil {
		err = errors.New("worker exited")
	}
	s.logger.Warn("worker exited", "err", err)
	s.emitError(ctx, err.Error())

	kind := resolver.KindOf(err)
	switch {
	case kind.Fatal():
		s.fail(ctx, err)
	case kind == resolver.KindAuth || kind == resolver.KindServer:
		s.restart(ctx, kind.String(), s.cfg.AuthRetryDelay, false)
	case kind == resolver.KindNotOK:
		s.restart(ctx, kind.String(), s.cfg.NotOKRetryDelay, false)
	case kind == resolver.KindConnection || kind == resolver.KindClosed:
		s.restart(ctx, kind.String(), s.cfg.ConnectionRetryDelay, true)
	default:
		s.restart(ctx, "worker", s.backoff.NextDelay(), true)
	}
}

// fail leaves the session idle until Restart, or until fatal-restart-delay
// when one is configured.
func (s *Supervisor) fail(ctx context.Context, err error) {
	s.statsMtx.Lock()
	s.stats.LastError = err.Error()
	s.statsMtx.Unlock()

	if s.cfg.FatalRestartDelay > 0 {
		s.restart(ctx, "fatal", s.cfg.FatalRestartDelay, true)
		return
	}

	s.gen.Add(1)
	s.stopTimer()
	s.stopWorker()
	s.setState(StateFailed)
	s.logger.Error("session failed, waiting for restart", "err", err)
}

func (s *Supervisor) checkStall(ctx context.Context) {
	switch s.SessionState() {
	case StateResolvingMetadata, StateLaunchingWorker, StateStreaming:
	default:
		return
	}

	idle := time.Since(s.lastData)
	if idle <= s.cfg.StallTimeout {
		return
	}

	s.logger.Info("stream seems idle, we restart it", "idle", idle)
	s.setState(StateStalled)
	s.restart(ctx, "stall", 0, true)
}

func (s *Supervisor) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Supervisor) stopWorker() {
	if s.worker != nil {
		s.worker.stop()
		s.worker = nil
	}
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	metricState.WithLabelValues(s.id).Set(float64(st))
}

func (s *Supervisor) emit(ctx context.Context, ev Event) {
	ev.Station = s.id
	ev.Generation = s.gen.Load()

	if err := s.w.Send(ctx, ev); err != nil {
		s.logger.Debug("event dropped", "type", ev.Type, "err", err)
	}
}

func (s *Supervisor) emitError(ctx context.Context, reason string) {
	s.statsMtx.Lock()
	s.stats.LastError = reason
	s.statsMtx.Unlock()

	s.emit(ctx, Event{Type: EventError, Err: reason})
}

func (s *Supervisor) metadata() *Metadata {
	m := &Metadata{
		Country: s.ref.Country,
		Name:    s.ref.Name,
		URL:     s.src.url,
		Ext:     s.src.ext,
		Bitrate: s.src.bitrate,
		HLS:     s.src.hls,
		Icy:     s.icy,
		Session: s.session,
	}
	if st := s.station; st != nil {
		m.Favicon = st.Favicon
		m.Tags = st.Tags
		m.Votes = st.Votes
		m.LastCheckOK = st.LastCheckOK
		m.Homepage = st.Homepage
	}
	return m
}
