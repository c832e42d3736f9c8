package streamdl

import (
	"net/http"

	"github.com/zachfi/radiodl/pkg/codec"
	"github.com/zachfi/radiodl/pkg/directory"
	"github.com/zachfi/radiodl/pkg/resolver"
)

// envelope tags a message with the generation that produced it. The
// supervisor drops envelopes from any generation but the current one.
type envelope struct {
	gen uint64
	msg any
}

// Worker to supervisor.
type (
	headersMsg struct {
		header http.Header
	}

	// metadataMsg signals that probing finished.
	metadataMsg struct{}

	dataMsg struct {
		data  []byte
		first bool
	}

	bitrateMsg struct {
		bitrate int
	}

	extMsg struct {
		ext codec.Ext
	}

	urlMsg struct {
		url     string
		outcome resolver.Outcome
	}

	exitMsg struct {
		err error
	}
)

// Posted by the supervisor to itself.
type (
	resolvedMsg struct {
		station *directory.Station
		err     error
	}

	beginMsg struct {
		refresh bool
	}
)
