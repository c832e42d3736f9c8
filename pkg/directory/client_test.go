package directory

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachfi/radiodl/pkg/codec"
)

const stringRecords = `[
  {"name":"Radio One","country":"Belgium","url":"http://be/one","codec":"MP3","bitrate":"192","hls":"0","votes":"12","lastcheckok":"1"},
  {"name":"Radio One","country":"France","url":"http://fr/one","favicon":"http://fr/icon.png","tags":"news,talk","homepage":"http://fr/","codec":"AAC+","bitrate":"64","hls":"0","votes":"7","lastcheckok":"1"}
]`

const numericRecords = `[
  {"name":"Live","country":"Germany","url":"http://de/live.m3u8","codec":"HLS","bitrate":0,"hls":1,"votes":3,"lastcheckok":0},
  {"name":"Weird","country":"Spain","url":"http://es/weird","codec":"FLAC","bitrate":null},
  {"name":"Mystery","country":"Italy","url":"http://it/m","codec":"UNKNOWN","bitrate":"abc"}
]`

func newTestClient(t *testing.T, body string, gotPath *string) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotPath != nil {
			*gotPath = r.URL.EscapedPath()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return New(Config{URL: srv.URL + "/json/stations/bynameexact/"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLookup(t *testing.T) {
	var path string
	c := newTestClient(t, stringRecords, &path)

	s, err := c.Lookup(context.Background(), StationRef{Country: "France", Name: "Radio One"})
	require.NoError(t, err)
	assert.Equal(t, "/json/stations/bynameexact/Radio%20One", path)
	assert.Equal(t, "http://fr/one", s.URL)
	assert.Equal(t, codec.AAC, s.Ext)
	assert.Equal(t, "AAC+", s.Codec)
	assert.Equal(t, 8000, s.Bitrate)
	assert.False(t, s.HLS)
	assert.Equal(t, 7, s.Votes)
	assert.True(t, s.LastCheckOK)
	assert.Equal(t, "news,talk", s.Tags)
	assert.Equal(t, "http://fr/icon.png", s.Favicon)
	assert.Equal(t, "http://fr/", s.Homepage)
}

func TestLookupNumericRecords(t *testing.T) {
	c := newTestClient(t, numericRecords, nil)
	ctx := context.Background()

	s, err := c.Lookup(ctx, StationRef{Country: "Germany", Name: "Live"})
	require.NoError(t, err)
	assert.True(t, s.HLS)
	assert.Equal(t, codec.AAC, s.Ext)
	assert.Equal(t, 0, s.Bitrate)
	assert.Equal(t, 3, s.Votes)
	assert.False(t, s.LastCheckOK)

	s, err = c.Lookup(ctx, StationRef{Country: "Italy", Name: "Mystery"})
	require.NoError(t, err)
	assert.Equal(t, codec.Unknown, s.Ext)
	assert.Equal(t, 0, s.Bitrate)

	_, err = c.Lookup(ctx, StationRef{Country: "Spain", Name: "Weird"})
	require.ErrorIs(t, err, ErrUnsupportedCodec)
}

func TestLookupNotFound(t *testing.T) {
	c := newTestClient(t, stringRecords, nil)

	_, err := c.Lookup(context.Background(), StationRef{Country: "Japan", Name: "Radio One"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLookupHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL + "/"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.Lookup(context.Background(), StationRef{Country: "France", Name: "x"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "503")
}

func TestStationRef(t *testing.T) {
	ref, err := ParseStationRef("France_Radio_One")
	require.NoError(t, err)
	require.Equal(t, StationRef{Country: "France", Name: "Radio_One"}, ref)
	require.Equal(t, "France_Radio_One", ref.String())

	for _, bad := range []string{"", "France", "_x", "France_"} {
		_, err := ParseStationRef(bad)
		require.Error(t, err, bad)
	}
}
