package resolver

import (
	"errors"
	"fmt"
)

// Kind classifies why acquiring a stream failed.
type Kind int

const (
	KindUnknown Kind = iota

	// fatal to the session
	KindNotFound
	KindPlaylistParse
	KindRedirectLoop
	KindUnsupportedCodec

	// transient
	KindAuth
	KindServer
	KindNotOK
	KindConnection
	KindClosed
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindNotFound:         "not_found",
	KindPlaylistParse:    "playlist_parse",
	KindRedirectLoop:     "redirect_loop",
	KindUnsupportedCodec: "unsupported_codec",
	KindAuth:             "auth",
	KindServer:           "server",
	KindNotOK:            "not_ok",
	KindConnection:       "connection",
	KindClosed:           "closed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether the failure must not be retried automatically.
func (k Kind) Fatal() bool {
	switch k {
	case KindNotFound, KindPlaylistParse, KindRedirectLoop, KindUnsupportedCodec:
		return true
	}
	return false
}

// Error is a classified acquisition failure.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, url string, status int, err error) *Error {
	return &Error{Kind: kind, URL: url, Status: status, Err: err}
}
