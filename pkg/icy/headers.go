// Package icy reads the descriptive ICY/Shoutcast headers a radio server
// sends with its response.
package icy

import (
	"net/http"
	"strconv"
	"strings"
)

// Info describes a stream as announced by its server.
type Info struct {
	// The name of the server
	Name string `json:"name,omitempty"`

	// What category the server falls under
	Genre string `json:"genre,omitempty"`

	// The description of the stream
	Description string `json:"description,omitempty"`

	// Homepage of the server
	URL string `json:"url,omitempty"`

	// Advertised bitrate in kbps, 0 when absent or unparsable
	Bitrate int `json:"bitrate,omitempty"`

	// Amount of audio bytes between metadata blocks, 0 when metadata is off
	MetaInt int `json:"metaint,omitempty"`

	ContentType string `json:"content_type,omitempty"`
}

// FromHeader extracts Info from response headers. Missing headers leave the
// matching fields empty.
func FromHeader(h http.Header) Info {
	if h == nil {
		return Info{}
	}

	info := Info{
		Name:        h.Get("icy-name"),
		Genre:       h.Get("icy-genre"),
		Description: h.Get("icy-description"),
		URL:         h.Get("icy-url"),
		ContentType: h.Get("Content-Type"),
	}

	info.Bitrate = atoi(h.Get("icy-br"))
	info.MetaInt = atoi(h.Get("icy-metaint"))

	return info
}

// Empty reports whether no ICY field was present.
func (i Info) Empty() bool {
	return i.Name == "" && i.Genre == "" && i.Description == "" && i.URL == "" && i.Bitrate == 0
}

// icy-br is sometimes sent as "128,128" by Shoutcast v1 servers.
func atoi(s string) int {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
