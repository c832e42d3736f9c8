// Package directory looks up station descriptions in a radio-browser style
// JSON directory.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/zachfi/zkit/pkg/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zachfi/radiodl/pkg/codec"
)

const (
	DefaultURL     = "http://www.radio-browser.info/webservice/json/stations/bynameexact/"
	defaultTimeout = 10 * time.Second
)

var (
	ErrNotFound         = errors.New("station not found in directory")
	ErrUnsupportedCodec = errors.New("directory announced an unsupported codec")
)

type Config struct {
	URL       string        `yaml:"url,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	UserAgent string        `yaml:"user-agent,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.URL, util.PrefixConfig(prefix, "url"), DefaultURL, "Directory endpoint; the station name is appended, path escaped.")
	f.DurationVar(&cfg.Timeout, util.PrefixConfig(prefix, "timeout"), defaultTimeout, "Timeout for one directory lookup.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), "radiodl", "User-Agent sent to the directory.")
}

type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "directory"),
	}
}

// Lookup fetches every station named ref.Name and returns the first one
// located in ref.Country.
func (c *Client) Lookup(ctx context.Context, ref StationRef) (station *Station, err error) {
	ctx, span := otel.Tracer("directory").Start(ctx, "Client.Lookup")
	span.SetAttributes(attribute.String("station", ref.String()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "directory lookup failed")
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+url.PathEscape(ref.Name), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("user-agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("directory returned HTTP %d", resp.StatusCode)
	}

	var records []record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}

	for _, r := range records {
		if string(r.Country) != ref.Country {
			continue
		}
		return c.station(ref, r)
	}

	c.logger.Warn("station not found", "station", ref.String(), "candidates", len(records))
	return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
}

func (c *Client) station(ref StationRef, r record) (*Station, error) {
	s := &Station{
		Country:     string(r.Country),
		Name:        string(r.Name),
		URL:         string(r.URL),
		Favicon:     string(r.Favicon),
		Tags:        string(r.Tags),
		Homepage:    string(r.Homepage),
		LastCheckOK: r.LastCheckOK.bool(),
		Codec:       string(r.Codec),
		HLS:         string(r.Codec) == "HLS" || string(r.HLS) == "1",
	}
	s.Votes, _ = r.Votes.int()

	if kbps, ok := r.Bitrate.int(); ok && kbps > 0 {
		s.Bitrate = kbps * 1000 / 8
	} else {
		c.logger.Warn("no bitrate advertised, will probe", "station", ref.String())
	}

	ext, ok := codec.FromDirectory(s.Codec)
	switch {
	case ok:
		s.Ext = ext
	case s.Codec == "" || s.Codec == string(codec.Unknown):
		c.logger.Warn("directory does not know the codec, will probe", "station", ref.String(), "codec", s.Codec)
		s.Ext = codec.Unknown
	default:
		return nil, fmt.Errorf("%s: codec %q: %w", ref, s.Codec, ErrUnsupportedCodec)
	}

	return s, nil
}
