package media

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireBinary(t *testing.T, name string) string {
	t.Helper()
	p, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available", name)
	}
	return p
}

func TestCommandRunPassthrough(t *testing.T) {
	cat := requireBinary(t, "cat")

	d := &Demuxer{cmd: Command{Path: cat, Grace: time.Second}}
	payload := bytes.Repeat([]byte("audio"), 50000)

	out, err := d.Demux(context.Background(), bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestInspectorReadsStderr(t *testing.T) {
	sh := requireBinary(t, "sh")

	i := &Inspector{cmd: Command{
		Path:  sh,
		Args:  []string{"-c", "cat >/dev/null; echo 'Stream #0:0: Audio: mp3, 44100 Hz, stereo, fltp, 128 kb/s' >&2"},
		Grace: time.Second,
	}}

	out, err := i.Inspect(context.Background(), []byte("prefix"))
	require.NoError(t, err)
	assert.Contains(t, out, "Audio: mp3")
}

func TestCommandRunFailure(t *testing.T) {
	sh := requireBinary(t, "sh")

	c := Command{Path: sh, Args: []string{"-c", "exit 3"}, Grace: time.Second}
	_, _, err := c.run(context.Background(), strings.NewReader(""))
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestCommandRunCancelled(t *testing.T) {
	sh := requireBinary(t, "sh")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := Command{Path: sh, Args: []string{"-c", "sleep 30"}, Grace: time.Second}
	start := time.Now()
	_, _, err := c.run(ctx, strings.NewReader(""))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLegacyFetcherClose(t *testing.T) {
	sh := requireBinary(t, "sh")

	// the url argument lands in $0 and is echoed back before streaming forever
	l := &LegacyFetcher{cmd: Command{
		Path:  sh,
		Args:  []string{"-c", "echo $0; while :; do echo data; sleep 0.01; done"},
		Grace: time.Second,
	}}

	rc, err := l.Open(context.Background(), "http://x/stream")
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := io.ReadAtLeast(rc, buf, len("http://x/stream"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(buf[:n]), "http://x/stream"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rc.Close()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("close did not reap the helper")
	}
}

func TestNewHelpersUseConfig(t *testing.T) {
	cfg := Config{FFmpegPath: "/opt/ffmpeg", FFprobePath: "/opt/ffprobe", CurlPath: "/opt/curl", KillGrace: time.Second}

	assert.Equal(t, "/opt/ffmpeg", NewDemuxer(cfg).cmd.Path)
	assert.Contains(t, NewDemuxer(cfg).cmd.Args, "adts")
	assert.Equal(t, "/opt/ffprobe", NewInspector(cfg).cmd.Path)
	assert.Equal(t, []string{"-"}, NewInspector(cfg).cmd.Args)
	assert.Equal(t, "/opt/curl", NewLegacyFetcher(cfg).cmd.Path)
	assert.Contains(t, NewLegacyFetcher(cfg).cmd.Args, "--http0.9")
}
