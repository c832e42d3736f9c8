package icy

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("icy-name", "Groove Salad")
	h.Set("icy-genre", "Ambient")
	h.Set("icy-description", "A nicely chilled plate")
	h.Set("icy-url", "http://somafm.com")
	h.Set("icy-br", "128")
	h.Set("icy-metaint", "16000")
	h.Set("Content-Type", "audio/mpeg")

	info := FromHeader(h)
	assert.Equal(t, Info{
		Name:        "Groove Salad",
		Genre:       "Ambient",
		Description: "A nicely chilled plate",
		URL:         "http://somafm.com",
		Bitrate:     128,
		MetaInt:     16000,
		ContentType: "audio/mpeg",
	}, info)
	assert.False(t, info.Empty())
}

func TestFromHeaderBitrateVariants(t *testing.T) {
	for raw, want := range map[string]int{
		"128,128": 128,
		" 64 ":    64,
		"abc":     0,
		"-1":      0,
		"":        0,
	} {
		h := http.Header{}
		h.Set("icy-br", raw)
		assert.Equal(t, want, FromHeader(h).Bitrate, raw)
	}
}

func TestFromHeaderEmpty(t *testing.T) {
	assert.True(t, FromHeader(nil).Empty())
	assert.True(t, FromHeader(http.Header{}).Empty())
}
