// Package resolver issues the GET for a station URL and decides what the
// response is: the media stream itself, a redirect, a playlist pointing
// elsewhere, a server that answers without an HTTP status line, or a
// classified failure.
package resolver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zachfi/radiodl/pkg/playlist"
)

// Outcome is what a successful Open found at the URL.
type Outcome int

const (
	// Stream: Body is the live media stream.
	Stream Outcome = iota
	// Redirect: URL holds the Location to restart from.
	Redirect
	// Playlist: URL holds the entry extracted from the playlist.
	Playlist
	// Legacy: the server answered without an HTTP status line; the stream
	// must be fetched with a line-mode helper and has no headers.
	Legacy
)

func (o Outcome) String() string {
	switch o {
	case Stream:
		return "stream"
	case Redirect:
		return "redirect"
	case Playlist:
		return "playlist"
	case Legacy:
		return "legacy"
	}
	return "unknown"
}

// Response is the classified answer of a server.
type Response struct {
	Outcome Outcome

	// URL is the next URL for Redirect and Playlist, the requested URL otherwise.
	URL string

	Status int
	Header http.Header

	// Body is only set for Stream and must be closed by the caller.
	Body io.ReadCloser

	PlaylistKind playlist.Kind
}

type Resolver struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New returns a Resolver. Redirects are never followed by the client: every
// hop is reported to the caller so it can account for it.
func New(cfg Config, logger *slog.Logger) *Resolver {
	cfg.applyDefaults()

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialICY(dialer),
		// Only the headers are bounded; the stream is read indefinitely.
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}

	return &Resolver{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Open requests rawURL and classifies the response.
//
// When the server answered with a failing status the returned Response is
// non-nil and carries the headers alongside the *Error.
func (r *Resolver) Open(ctx context.Context, rawURL string) (resp *Response, err error) {
	ctx, span := otel.Tracer("resolver").Start(ctx, "Resolver.Open")
	span.SetAttributes(attribute.String("url", rawURL))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "resolve failed")
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newError(KindConnection, rawURL, 0, err)
	}
	req.Header.Add("accept", "*/*")
	req.Header.Add("user-agent", r.cfg.UserAgent)

	res, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isLegacyResponse(err) {
			r.logger.Info("server answered without an HTTP status line", "url", rawURL, "err", err)
			return &Response{Outcome: Legacy, URL: rawURL, Header: http.Header{}}, nil
		}
		return nil, newError(KindConnection, rawURL, 0, err)
	}

	contentType := res.Header.Get("Content-Type")
	r.logger.Debug("got response", "url", rawURL, "status", res.StatusCode, "content_type", contentType)
	span.SetAttributes(attribute.Int("status", res.StatusCode), attribute.String("content_type", contentType))

	out := &Response{URL: rawURL, Status: res.StatusCode, Header: res.Header}

	kind := playlist.FromContentType(contentType)
	switch {
	case res.StatusCode == http.StatusNotFound:
		drain(res.Body)
		return out, newError(KindNotFound, rawURL, res.StatusCode, nil)

	case res.Header.Get("WWW-Authenticate") != "":
		drain(res.Body)
		return out, newError(KindAuth, rawURL, res.StatusCode, nil)

	case res.StatusCode == http.StatusInternalServerError || res.StatusCode == http.StatusBadGateway:
		drain(res.Body)
		return out, newError(KindServer, rawURL, res.StatusCode, nil)

	case (res.StatusCode == http.StatusMovedPermanently || res.StatusCode == http.StatusFound) && res.Header.Get("Location") != "":
		drain(res.Body)
		next, err := req.URL.Parse(res.Header.Get("Location"))
		if err != nil {
			return out, newError(KindConnection, rawURL, res.StatusCode, fmt.Errorf("bad location: %w", err))
		}
		out.Outcome = Redirect
		out.URL = next.String()
		r.logger.Info("following redirection", "from", rawURL, "to", out.URL)
		return out, nil

	case kind != playlist.None:
		next, err := r.readPlaylist(res.Body, kind)
		if err != nil {
			r.logger.Error("could not parse playlist", "url", rawURL, "kind", kind, "err", err)
			return out, newError(KindPlaylistParse, rawURL, res.StatusCode, err)
		}
		out.Outcome = Playlist
		out.PlaylistKind = kind
		out.URL = next
		r.logger.Info("resolved playlist", "kind", kind, "from", rawURL, "to", next)
		return out, nil

	case res.StatusCode != http.StatusOK:
		drain(res.Body)
		return out, newError(KindNotOK, rawURL, res.StatusCode, nil)
	}

	out.Outcome = Stream
	out.Body = res.Body
	return out, nil
}

func (r *Resolver) readPlaylist(body io.ReadCloser, kind playlist.Kind) (string, error) {
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, r.cfg.PlaylistMaxBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	next, err := playlist.Parse(kind, string(data))
	if err != nil {
		return "", err
	}
	if _, err := url.Parse(next); err != nil {
		return "", fmt.Errorf("playlist entry %q: %w", next, err)
	}
	return next, nil
}

// isLegacyResponse recognises the transport errors raised when the peer does
// not start its answer with a status line at all (HTTP/0.9).
func isLegacyResponse(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "malformed HTTP response") ||
		strings.Contains(msg, "malformed HTTP version") ||
		strings.Contains(msg, "malformed HTTP status code")
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
