package media

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"sync"
)

// Demuxer strips the container of an HLS segment and returns the raw
// elementary audio stream.
type Demuxer struct {
	cmd Command
}

// NewDemuxer returns a Demuxer running ffmpeg from cfg.
func NewDemuxer(cfg Config) *Demuxer {
	return &Demuxer{cmd: Command{
		Path:  cfg.FFmpegPath,
		Args:  []string{"-i", "pipe:0", "-vn", "-acodec", "copy", "-v", "fatal", "-f", "adts", "pipe:1"},
		Grace: cfg.KillGrace,
	}}
}

// Demux feeds segment through the helper and returns its complete output.
func (d *Demuxer) Demux(ctx context.Context, segment io.Reader) ([]byte, error) {
	out, _, err := d.cmd.run(ctx, segment)
	return out, err
}

// Inspector runs ffprobe over a stream prefix.
type Inspector struct {
	cmd Command
}

// NewInspector returns an Inspector running ffprobe from cfg.
func NewInspector(cfg Config) *Inspector {
	return &Inspector{cmd: Command{
		Path:  cfg.FFprobePath,
		Args:  []string{"-"},
		Grace: cfg.KillGrace,
	}}
}

// Inspect returns the tool's diagnostic output for prefix. ffprobe writes
// its stream description on stderr.
func (i *Inspector) Inspect(ctx context.Context, prefix []byte) (string, error) {
	_, stderr, err := i.cmd.run(ctx, bytes.NewReader(prefix))
	return string(stderr), err
}

// LegacyFetcher downloads a stream with curl, which copes with servers that
// reply without an HTTP status line.
type LegacyFetcher struct {
	cmd Command
}

// NewLegacyFetcher returns a LegacyFetcher running curl from cfg.
func NewLegacyFetcher(cfg Config) *LegacyFetcher {
	return &LegacyFetcher{cmd: Command{
		Path:  cfg.CurlPath,
		Args:  []string{"-sS", "-L", "--http0.9"},
		Grace: cfg.KillGrace,
	}}
}

// Open starts the download of url. Closing the returned reader kills the
// helper and reaps it.
func (l *LegacyFetcher) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := l.cmd.cmd(ctx, url)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	return &processReader{ReadCloser: stdout, cmd: cmd, cancel: cancel}, nil
}

type processReader struct {
	io.ReadCloser
	cmd    *exec.Cmd
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

func (p *processReader) Close() error {
	p.once.Do(func() {
		p.cancel()
		// Wait closes stdout once the process is gone
		_ = p.cmd.Wait()
	})
	return p.err
}
