package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zachfi/radiodl/pkg/codec"
)

// StationRef identifies a station in the directory.
type StationRef struct {
	Country string
	Name    string
}

// String returns the canonical "<country>_<name>" id.
func (r StationRef) String() string {
	return r.Country + "_" + r.Name
}

// ParseStationRef splits a canonical id at its first underscore.
func ParseStationRef(s string) (StationRef, error) {
	country, name, ok := strings.Cut(s, "_")
	if !ok || country == "" || name == "" {
		return StationRef{}, fmt.Errorf("station %q is not of the form <country>_<name>", s)
	}
	return StationRef{Country: country, Name: name}, nil
}

// Station is the directory's description of a station.
type Station struct {
	Country     string
	Name        string
	URL         string
	Favicon     string
	Tags        string
	Homepage    string
	Votes       int
	LastCheckOK bool

	// Codec is the raw codec name announced by the directory; Ext is its
	// translation, codec.Unknown when the directory does not know.
	Codec string
	Ext   codec.Ext
	HLS   bool

	// Bitrate in bytes per second, 0 when not advertised.
	Bitrate int
}

// flexString decodes a JSON string, number, bool or null into its text form.
// Older directory responses quote every value, newer ones do not.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

func (f flexString) int() (int, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(f)), 64)
	if err != nil {
		return 0, false
	}
	return int(v), true
}

func (f flexString) bool() bool {
	switch strings.TrimSpace(string(f)) {
	case "1", "true":
		return true
	}
	return false
}

type record struct {
	Name        flexString `json:"name"`
	Country     flexString `json:"country"`
	URL         flexString `json:"url"`
	Favicon     flexString `json:"favicon"`
	Tags        flexString `json:"tags"`
	Homepage    flexString `json:"homepage"`
	Votes       flexString `json:"votes"`
	LastCheckOK flexString `json:"lastcheckok"`
	Codec       flexString `json:"codec"`
	Bitrate     flexString `json:"bitrate"`
	HLS         flexString `json:"hls"`
}
