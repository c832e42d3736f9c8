// Package probe determines the true codec and bitrate of a stream by running
// an external inspection tool once over a buffered prefix.
package probe

import (
	"context"
	"log/slog"

	"github.com/zachfi/radiodl/pkg/codec"
)

// Tool runs the inspection helper over prefix and returns its diagnostic
// output.
type Tool interface {
	Inspect(ctx context.Context, prefix []byte) (string, error)
}

// Known is what the session already believes about the stream.
type Known struct {
	// Bitrate in bytes per second, 0 when unknown.
	Bitrate int

	Ext codec.Ext

	// Authoritative is set when an HLS manifest supplied Bitrate.
	Authoritative bool
}

// Outcome carries the values the session must adopt. Zero fields mean the
// prior value stands.
type Outcome struct {
	Bitrate int
	Ext     codec.Ext

	// Skipped is set when the tool was not invoked at all.
	Skipped bool

	// Err is the best-effort failure, if any. It never aborts the session.
	Err error

	// Unsupported names a codec the tool reported that has no extension.
	Unsupported string
}

// Prober decides whether to inspect and interprets the result.
type Prober struct {
	tool Tool

	// fallback bitrate in bytes per second when nothing else is known
	fallback int

	logger *slog.Logger
}

// New returns a Prober. fallback is the bitrate in bytes per second adopted
// when neither the session nor the tool knows one.
func New(tool Tool, fallback int, logger *slog.Logger) *Prober {
	return &Prober{tool: tool, fallback: fallback, logger: logger}
}

// Run inspects prefix unless known already settles codec and bitrate.
func (p *Prober) Run(ctx context.Context, prefix []byte, known Known) Outcome {
	if known.Authoritative && codec.IsSupported(known.Ext) {
		return Outcome{Skipped: true}
	}

	var out Outcome

	output, err := p.tool.Inspect(ctx, prefix)
	if err != nil {
		p.logger.Warn("inspection failed", "err", err)
		out.Err = err
	}

	report, perr := Parse(output)
	if perr != nil {
		if err == nil {
			p.logger.Warn("could not parse inspection result", "err", perr)
			out.Err = perr
		}
		return p.withFallback(out, known)
	}

	switch {
	case report.Bitrate == 0:
		p.logger.Warn("no bitrate in inspection result", "line", report.Line, "bitrate", known.Bitrate)
	case known.Bitrate == 0:
		p.logger.Info("bitrate from inspection", "bitrate", report.Bitrate)
		out.Bitrate = report.Bitrate
	default:
		p.logger.Debug("keeping original bitrate", "bitrate", known.Bitrate, "inspected", report.Bitrate)
	}

	if report.Codec == "" {
		p.logger.Warn("no codec in inspection result", "line", report.Line, "ext", known.Ext)
	} else if ext, ok := codec.FromProbe(report.Codec); ok {
		p.logger.Info("codec from inspection", "codec", report.Codec, "ext", ext)
		out.Ext = ext
	} else {
		p.logger.Error("codec is not supported", "codec", report.Codec)
		out.Unsupported = report.Codec
	}

	return p.withFallback(out, known)
}

func (p *Prober) withFallback(out Outcome, known Known) Outcome {
	if known.Bitrate == 0 && out.Bitrate == 0 && p.fallback > 0 {
		p.logger.Warn("no bitrate could be determined, using default", "bitrate", p.fallback)
		out.Bitrate = p.fallback
	}
	return out
}
