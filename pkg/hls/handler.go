// Package hls follows a live HLS stream: it picks a variant from the master
// manifest, polls the media playlist, demuxes each new segment to a raw
// audio stream and paces the output.
package hls

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/zachfi/radiodl/pkg/resolver"
)

const (
	defaultTargetDuration = 10 * time.Second
	minPollInterval       = 250 * time.Millisecond
	segmentQueue          = 4
)

// Demuxer strips the container of a media segment.
type Demuxer interface {
	Demux(ctx context.Context, in io.Reader) ([]byte, error)
}

// Sink receives the output of a Handler. Calls are made from a single
// goroutine.
type Sink interface {
	// Bitrate reports the selected variant bandwidth in bytes per second.
	Bitrate(bytesPerSecond int)
	Data(chunk []byte)
}

type Handler struct {
	cfg     Config
	demuxer Demuxer
	client  *http.Client
	logger  *slog.Logger
}

func New(cfg Config, demuxer Demuxer, logger *slog.Logger) *Handler {
	cfg.applyDefaults()

	return &Handler{
		cfg:     cfg,
		demuxer: demuxer,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logger.With("component", "hls"),
	}
}

type segmentJob struct {
	url     string
	target  time.Duration
	initial bool
}

type decoded struct {
	segmentJob
	data []byte
}

// Run follows masterURL until ctx is cancelled or the media playlist can no
// longer be fetched.
func (h *Handler) Run(ctx context.Context, masterURL string, sink Sink) error {
	mediaURL, bandwidth, err := h.resolveMaster(ctx, masterURL)
	if err != nil {
		return err
	}
	if bandwidth > 0 {
		sink.Bitrate(bandwidth / 8)
	}

	g, ctx := errgroup.WithContext(ctx)

	jobs := make(chan segmentJob, segmentQueue)
	results := make(chan decoded)

	g.Go(func() error {
		return h.fetchSegments(ctx, jobs, results)
	})

	g.Go(func() error {
		return h.poll(ctx, mediaURL, jobs, results, sink)
	})

	return g.Wait()
}

func (h *Handler) poll(ctx context.Context, mediaURL string, jobs chan<- segmentJob, results <-chan decoded, sink Sink) error {
	base, err := url.Parse(mediaURL)
	if err != nil {
		return &resolver.Error{Kind: resolver.KindPlaylistParse, URL: mediaURL, Err: err}
	}

	var (
		cursor Cursor
		p      = pacer{interval: h.cfg.EmitInterval}
	)

	pollTimer := time.NewTimer(0)
	defer pollTimer.Stop()

	paceTimer := time.NewTimer(h.cfg.EmitInterval)
	paceTimer.Stop()
	defer paceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-pollTimer.C:
			playlist, err := h.fetchMediaPlaylist(ctx, mediaURL)
			if err != nil {
				return err
			}

			if uri, initial, ok := cursor.Select(playlist.sequence, playlist.lines); ok {
				ref, err := base.Parse(uri)
				if err != nil {
					h.logger.Warn("bad segment uri", "uri", uri, "err", err)
				} else {
					job := segmentJob{url: ref.String(), target: playlist.targetDuration, initial: initial}
					h.logger.Debug("queueing segment", "url", job.url, "position", cursor.Last(), "initial", initial)
					select {
					case jobs <- job:
					case <-ctx.Done():
						return ctx.Err()
					default:
						h.logger.Warn("segment queue full, skipping", "url", job.url)
					}
				}
			}

			interval := playlist.targetDuration / 4
			if interval < minPollInterval {
				interval = minPollInterval
			}
			pollTimer.Reset(interval)

		case d := <-results:
			if p.pending() {
				h.logger.Debug("prematurely flushing previous segment", "bytes", len(p.remaining))
			}
			for _, chunk := range p.load(d.data, d.target, d.initial) {
				sink.Data(chunk)
			}
			if p.pending() {
				paceTimer.Reset(h.cfg.EmitInterval)
			}

		case <-paceTimer.C:
			if chunk := p.next(); chunk != nil {
				sink.Data(chunk)
			}
			if p.pending() {
				paceTimer.Reset(h.cfg.EmitInterval)
			}
		}
	}
}

func (h *Handler) fetchMediaPlaylist(ctx context.Context, mediaURL string) (playlist mediaPlaylist, err error) {
	ctx, span := otel.Tracer("hls").Start(ctx, "Handler.fetchMediaPlaylist")
	span.SetAttributes(attribute.String("url", mediaURL))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "media playlist fetch failed")
		}
		span.End()
	}()

	body, err := h.get(ctx, mediaURL)
	if err != nil {
		return mediaPlaylist{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return mediaPlaylist{}, &resolver.Error{Kind: resolver.KindClosed, URL: mediaURL, Err: err}
	}

	playlist = parseMediaPlaylist(string(data))
	if playlist.targetDuration == 0 {
		h.logger.Warn("media playlist has no target duration", "url", mediaURL, "default", defaultTargetDuration)
		playlist.targetDuration = defaultTargetDuration
	}
	h.logger.Debug("media playlist", "sequence", playlist.sequence, "target_duration", playlist.targetDuration)

	return playlist, nil
}

// fetchSegments downloads and demuxes queued segments one at a time, so
// their output keeps the playlist order.
func (h *Handler) fetchSegments(ctx context.Context, jobs <-chan segmentJob, results chan<- decoded) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-jobs:
			data, err := h.fetchSegment(ctx, job.url)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				h.logger.Warn("failed to fetch segment", "url", job.url, "err", err)
				continue
			}
			if len(data) == 0 {
				h.logger.Warn("empty data after extraction from container", "url", job.url)
				continue
			}

			select {
			case results <- decoded{segmentJob: job, data: data}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (h *Handler) fetchSegment(ctx context.Context, segmentURL string) ([]byte, error) {
	body, err := h.get(ctx, segmentURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return h.demuxer.Demux(ctx, body)
}

func (h *Handler) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &resolver.Error{Kind: resolver.KindConnection, URL: u, Err: err}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &resolver.Error{Kind: resolver.KindConnection, URL: u, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		kind := resolver.KindNotOK
		if resp.StatusCode == http.StatusNotFound {
			kind = resolver.KindNotFound
		}
		return nil, &resolver.Error{Kind: kind, URL: u, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	return resp.Body, nil
}
