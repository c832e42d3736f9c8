package resolver

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultUserAgent        = "iTunes/12.9.2 (Macintosh; OS X 10.14.3) AppleWebKit/606.4.5"
	defaultDialTimeout      = 5 * time.Second
	defaultHeaderTimeout    = 10 * time.Second
	defaultPlaylistMaxBytes = 1 << 20
)

type Config struct {
	UserAgent             string        `yaml:"user-agent,omitempty"`
	DialTimeout           time.Duration `yaml:"dial-timeout,omitempty"`
	ResponseHeaderTimeout time.Duration `yaml:"response-header-timeout,omitempty"`
	PlaylistMaxBytes      int64         `yaml:"playlist-max-bytes,omitempty"` // cap on a playlist body read into memory
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), defaultUserAgent, "User-Agent sent to radio servers.")
	f.DurationVar(&cfg.DialTimeout, util.PrefixConfig(prefix, "dial-timeout"), defaultDialTimeout, "Timeout for establishing a connection to a radio server.")
	f.DurationVar(&cfg.ResponseHeaderTimeout, util.PrefixConfig(prefix, "response-header-timeout"), defaultHeaderTimeout, "Timeout for receiving response headers. The stream body itself has no timeout.")
	f.Int64Var(&cfg.PlaylistMaxBytes, util.PrefixConfig(prefix, "playlist-max-bytes"), defaultPlaylistMaxBytes, "Largest playlist body read into memory.")
}

func (cfg *Config) applyDefaults() {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.ResponseHeaderTimeout == 0 {
		cfg.ResponseHeaderTimeout = defaultHeaderTimeout
	}
	if cfg.PlaylistMaxBytes == 0 {
		cfg.PlaylistMaxBytes = defaultPlaylistMaxBytes
	}
}
