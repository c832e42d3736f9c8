package playlist

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a playlist format.
type Kind int

const (
	None Kind = iota
	M3U
	PLS
	ASF
)

func (k Kind) String() string {
	switch k {
	case M3U:
		return "m3u"
	case PLS:
		return "pls"
	case ASF:
		return "asf"
	default:
		return "none"
	}
}

// contentTypes is matched bit-exact against the Content-Type header.
var contentTypes = map[string]Kind{
	"audio/x-mpegurl":              M3U,
	"audio/x-scpls":                PLS,
	"audio/x-scpls; charset=UTF-8": PLS,
	"video/x-ms-asf":               ASF,
}

// ErrNoURL is returned when a playlist holds no usable absolute URL.
var ErrNoURL = errors.New("no absolute stream URL found in playlist")

const asfRef = `<REF HREF="`

// FromContentType returns the playlist kind announced by a Content-Type
// header value, or None when the value is not a known playlist type.
func FromContentType(contentType string) Kind {
	return contentTypes[contentType]
}

// Parse extracts the media URL from a playlist body of the given kind.
func Parse(kind Kind, body string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r", ""), "\n")

	var match func(string) (string, bool)
	switch kind {
	case M3U:
		match = matchM3U
	case ASF:
		match = matchASF
	case PLS:
		match = matchPLS
	default:
		return "", fmt.Errorf("unsupported playlist kind %q", kind)
	}

	for i := len(lines) - 1; i >= 0; i-- {
		if u, ok := match(lines[i]); ok {
			return u, nil
		}
	}

	return "", fmt.Errorf("%s: %w", kind, ErrNoURL)
}

func matchM3U(line string) (string, bool) {
	if !isAbsolute(line) {
		return "", false
	}
	return strings.TrimSpace(line), true
}

func matchASF(line string) (string, bool) {
	p := strings.Index(line, asfRef)
	if p < 0 {
		return "", false
	}
	v := line[p+len(asfRef):]
	if !isAbsolute(v) {
		return "", false
	}
	if q := strings.Index(v, `"`); q >= 0 {
		v = v[:q]
	}
	return v, true
}

func matchPLS(line string) (string, bool) {
	p := strings.Index(line, "=")
	if p < 0 {
		return "", false
	}
	v := line[p+1:]
	if !isAbsolute(v) {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func isAbsolute(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
