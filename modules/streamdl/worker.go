package streamdl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/zachfi/radiodl/pkg/codec"
	"github.com/zachfi/radiodl/pkg/probe"
	"github.com/zachfi/radiodl/pkg/resolver"
)

const readBufferSize = 32 * 1024

// source is what the supervisor knows about where and what to download.
type source struct {
	url     string
	ext     codec.Ext
	hls     bool
	bitrate int
}

// worker runs one acquisition attempt. It talks to the supervisor only
// through the inbox and never retries on its own.
type worker struct {
	gen     uint64
	station string
	src     source
	deps    Dependencies
	prober  *probe.Prober
	probe   *probe.State
	inbox   chan<- envelope
	logger  *slog.Logger

	// set when an HLS manifest announced the bitrate
	authoritative bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (w *worker) start() {
	go func() {
		defer close(w.done)
		err := w.run(w.ctx)
		w.send(exitMsg{err: err})
	}()
}

// stop cancels the worker and waits for it to exit.
func (w *worker) stop() {
	w.cancel()
	<-w.done
}

func (w *worker) send(msg any) bool {
	select {
	case w.inbox <- envelope{gen: w.gen, msg: msg}:
		return true
	case <-w.ctx.Done():
		return false
	}
}

func (w *worker) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	w.logger.Info("worker started", "url", w.src.url, "ext", w.src.ext, "bitrate", w.src.bitrate, "hls", w.src.hls)

	if w.src.hls {
		w.send(headersMsg{header: http.Header{}})
		return w.deps.HLS.Run(ctx, w.src.url, w)
	}

	resp, err := w.deps.Resolver.Open(ctx, w.src.url)
	if resp != nil && resp.Outcome != resolver.Legacy {
		w.send(headersMsg{header: resp.Header})
	}
	if err != nil {
		return err
	}

	switch resp.Outcome {
	case resolver.Redirect, resolver.Playlist:
		w.send(urlMsg{url: resp.URL, outcome: resp.Outcome})
		return nil

	case resolver.Legacy:
		w.send(headersMsg{header: http.Header{}})
		body, err := w.deps.Legacy.Open(ctx, w.src.url)
		if err != nil {
			return &resolver.Error{Kind: resolver.KindConnection, URL: w.src.url, Err: err}
		}
		return w.consume(ctx, body)
	}

	return w.consume(ctx, resp.Body)
}

// consume reads body until it fails. A live stream never ends on its own,
// so any end is reported as an unexpected close.
func (w *worker) consume(ctx context.Context, body io.ReadCloser) error {
	defer body.Close()

	buf := make([]byte, readBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			w.Data(chunk)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				w.logger.Info("server response has been closed")
				err = nil
			}
			return &resolver.Error{Kind: resolver.KindClosed, URL: w.src.url, Err: err}
		}
	}
}

// Bitrate receives the bandwidth of the selected HLS variant.
func (w *worker) Bitrate(bytesPerSecond int) {
	if w.src.bitrate != 0 {
		w.logger.Debug("manifest overrides bitrate", "from", w.src.bitrate, "to", bytesPerSecond)
	}
	w.src.bitrate = bytesPerSecond
	w.authoritative = true
	w.send(bitrateMsg{bitrate: bytesPerSecond})
}

// Data receives raw audio. Until the prefix has been probed it is held
// back; the prefix then goes out as the first segment.
func (w *worker) Data(chunk []byte) {
	if w.probe.Done() {
		w.send(dataMsg{data: chunk})
		return
	}

	if !w.probe.Add(chunk) {
		return
	}

	out := w.prober.Run(w.ctx, w.probe.Prefix(), probe.Known{
		Bitrate:       w.src.bitrate,
		Ext:           w.src.ext,
		Authoritative: w.authoritative,
	})

	switch {
	case out.Skipped:
		metricProbes.WithLabelValues(w.station, "skipped").Inc()
	case out.Err != nil:
		metricProbes.WithLabelValues(w.station, "failed").Inc()
	case out.Unsupported != "":
		metricProbes.WithLabelValues(w.station, "unsupported").Inc()
		w.logger.Warn("stream codec is not supported", "codec", out.Unsupported)
	default:
		metricProbes.WithLabelValues(w.station, "ok").Inc()
	}

	if out.Bitrate > 0 {
		w.src.bitrate = out.Bitrate
		w.send(bitrateMsg{bitrate: out.Bitrate})
	}
	if out.Ext != "" {
		w.src.ext = out.Ext
		w.send(extMsg{ext: out.Ext})
	}

	w.send(metadataMsg{})
	w.send(dataMsg{data: w.probe.Finish(), first: true})
}
