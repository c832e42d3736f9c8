package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContentType(t *testing.T) {
	assert.Equal(t, M3U, FromContentType("audio/x-mpegurl"))
	assert.Equal(t, PLS, FromContentType("audio/x-scpls"))
	assert.Equal(t, PLS, FromContentType("audio/x-scpls; charset=UTF-8"))
	assert.Equal(t, ASF, FromContentType("video/x-ms-asf"))

	// Matching is exact.
	assert.Equal(t, None, FromContentType("audio/x-scpls; charset=utf-8"))
	assert.Equal(t, None, FromContentType("audio/mpeg"))
	assert.Equal(t, None, FromContentType(""))
}

func TestParseM3U(t *testing.T) {
	body := "#EXTM3U\n" +
		"#EXTINF:-1,Radio\n" +
		"http://x/old.mp3\n" +
		"#EXTINF:-1,Radio HQ\n" +
		"http://x/stream.mp3\n" +
		"\n"

	u, err := Parse(M3U, body)
	require.NoError(t, err)
	assert.Equal(t, "http://x/stream.mp3", u)
}

func TestParseM3UCRLF(t *testing.T) {
	u, err := Parse(M3U, "#EXTM3U\r\nhttps://x/a.aac\r\n")
	require.NoError(t, err)
	assert.Equal(t, "https://x/a.aac", u)
}

func TestParsePLS(t *testing.T) {
	body := "[playlist]\nNumberOfEntries=1\nFile1=http://x/a.mp3\nTitle1=Radio\nLength1=-1\nVersion=2\n"

	u, err := Parse(PLS, body)
	require.NoError(t, err)
	assert.Equal(t, "http://x/a.mp3", u)
}

func TestParsePLSLastEntryWins(t *testing.T) {
	body := "[playlist]\nFile1=http://x/1.mp3\nFile2=http://x/2.mp3\n"

	u, err := Parse(PLS, body)
	require.NoError(t, err)
	assert.Equal(t, "http://x/2.mp3", u)
}

func TestParseASF(t *testing.T) {
	body := "<ASX version=\"3.0\">\n<ENTRY>\n<REF HREF=\"http://x/b.mp3\"/>\n</ENTRY>\n</ASX>\n"

	u, err := Parse(ASF, body)
	require.NoError(t, err)
	assert.Equal(t, "http://x/b.mp3", u)
}

func TestParseASFSkipsNonHTTP(t *testing.T) {
	body := "<REF HREF=\"http://x/good\"/>\n<REF HREF=\"mms://x/bad\"/>\n"

	u, err := Parse(ASF, body)
	require.NoError(t, err)
	assert.Equal(t, "http://x/good", u)
}

func TestParseRejectsRelative(t *testing.T) {
	for _, tc := range []struct {
		kind Kind
		body string
	}{
		{M3U, "#EXTM3U\nstream.mp3\n/live/stream.mp3\n"},
		{PLS, "[playlist]\nFile1=stream.mp3\n"},
		{ASF, "<REF HREF=\"/stream\"/>\n"},
		{M3U, ""},
	} {
		t.Run(tc.kind.String(), func(t *testing.T) {
			_, err := Parse(tc.kind, tc.body)
			require.ErrorIs(t, err, ErrNoURL)
		})
	}
}

func TestParseUnknownKind(t *testing.T) {
	_, err := Parse(None, "http://x/a.mp3")
	require.Error(t, err)
}
