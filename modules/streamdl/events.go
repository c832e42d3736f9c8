package streamdl

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/zachfi/radiodl/pkg/codec"
	"github.com/zachfi/radiodl/pkg/icy"
	"github.com/zachfi/radiodl/pkg/segment"
)

type EventType int

const (
	EventHeaders EventType = iota
	EventMetadata
	EventData
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventHeaders:
		return "headers"
	case EventMetadata:
		return "metadata"
	case EventData:
		return "data"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is one item of a station's output stream. Only the field matching
// Type is set.
type Event struct {
	Type EventType

	// Station is the canonical "<country>_<name>" id.
	Station    string
	Generation uint64

	Header   http.Header
	Metadata *Metadata
	Segment  segment.Segment
	Err      string
}

// Metadata describes the stream once codec and bitrate are settled.
type Metadata struct {
	Country     string    `json:"country"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Favicon     string    `json:"favicon,omitempty"`
	Ext         codec.Ext `json:"ext"`
	Bitrate     int       `json:"bitrate"`
	HLS         bool      `json:"hls"`
	Tags        string    `json:"tags,omitempty"`
	Votes       int       `json:"votes"`
	LastCheckOK bool      `json:"lastcheckok"`
	Homepage    string    `json:"homepage,omitempty"`
	Icy         icy.Info  `json:"icy"`
	Session     string    `json:"session"`
}

// eventWriter is the ordered outlet of a Supervisor. Once closed nothing
// more is delivered, including events that were still queued.
type eventWriter struct {
	sync.Mutex
	events chan Event
	closed bool
}

func newEventWriter(size int) *eventWriter {
	return &eventWriter{
		events: make(chan Event, size),
	}
}

// Send blocks until the consumer has room for ev or ctx is done.
func (w *eventWriter) Send(ctx context.Context, ev Event) error {
	w.Lock()
	defer w.Unlock()

	if w.closed {
		return io.ErrClosedPipe
	}

	select {
	case w.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *eventWriter) Close() error {
	w.Lock()
	defer w.Unlock()

	if !w.closed {
		close(w.events)
		w.closed = true

		// events still queued belong to a stopped session
		for range w.events {
		}
	}

	return nil
}
