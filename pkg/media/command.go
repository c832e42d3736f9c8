// Package media runs the external helpers a session relies on: a demuxer for
// HLS segments, an inspection tool for stream prefixes and a line-mode
// downloader for servers that do not speak HTTP/1.x.
//
// Every helper runs in its own process group which is killed when the
// caller's context ends. Input pipes are always closed and output pipes
// always drained before a run is considered complete.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/zachfi/radiodl/pkg/procgroup"
)

// Command is a helper binary and its arguments.
type Command struct {
	Path string
	Args []string

	// Grace bounds the wait for output pipes once the process is killed.
	Grace time.Duration
}

func (c Command) cmd(ctx context.Context, extra ...string) *exec.Cmd {
	args := append(append([]string(nil), c.Args...), extra...)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	procgroup.Prepare(cmd, c.Grace)
	return cmd
}

// run feeds in to the helper's stdin and returns everything it wrote to
// stdout and stderr. exec copies in on its own goroutine and closes stdin
// once in is exhausted; a helper that stops reading early is not an error.
func (c Command) run(ctx context.Context, in io.Reader) (stdout, stderr []byte, err error) {
	var outBuf, errBuf bytes.Buffer

	cmd := c.cmd(ctx)
	cmd.Stdin = in
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return outBuf.Bytes(), errBuf.Bytes(), ctxErr
	}
	if err != nil {
		return outBuf.Bytes(), errBuf.Bytes(), fmt.Errorf("%s: %w", c.Path, err)
	}
	return outBuf.Bytes(), errBuf.Bytes(), nil
}
