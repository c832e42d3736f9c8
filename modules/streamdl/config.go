package streamdl

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/radiodl/pkg/directory"
	"github.com/zachfi/radiodl/pkg/hls"
	"github.com/zachfi/radiodl/pkg/media"
	"github.com/zachfi/radiodl/pkg/probe"
	"github.com/zachfi/radiodl/pkg/resolver"
)

const (
	defaultSegmentDuration      = 2 * time.Second
	defaultStallTimeout         = 10 * time.Second
	defaultStallCheckInterval   = 5 * time.Second
	defaultReconnectInitial     = 5 * time.Second
	defaultReconnectMax         = 60 * time.Second
	defaultAuthRetryDelay       = 10 * time.Second
	defaultNotOKRetryDelay      = 2 * time.Second
	defaultConnectionRetryDelay = 5 * time.Second
	defaultMaxRedirects         = 10
	defaultEventBuffer          = 64
	defaultBitrateKbps          = 128
)

type Config struct {
	SegmentDuration      time.Duration `yaml:"segment-duration,omitempty"`
	ProbeThreshold       int           `yaml:"probe-threshold,omitempty"`
	StallTimeout         time.Duration `yaml:"stall-timeout,omitempty"`
	StallCheckInterval   time.Duration `yaml:"stall-check-interval,omitempty"`
	ReconnectBackoff     time.Duration `yaml:"reconnect-backoff,omitempty"`
	ReconnectBackoffMax  time.Duration `yaml:"reconnect-backoff-max,omitempty"`
	AuthRetryDelay       time.Duration `yaml:"auth-retry-delay,omitempty"`
	NotOKRetryDelay      time.Duration `yaml:"not-ok-retry-delay,omitempty"`
	ConnectionRetryDelay time.Duration `yaml:"connection-retry-delay,omitempty"`
	FatalRestartDelay    time.Duration `yaml:"fatal-restart-delay,omitempty"`
	MaxRedirects         int           `yaml:"max-redirects,omitempty"`
	EventBuffer          int           `yaml:"event-buffer,omitempty"`
	DefaultBitrateKbps   int           `yaml:"default-bitrate-kbps,omitempty"`

	Directory directory.Config `yaml:"directory,omitempty"`
	Resolver  resolver.Config  `yaml:"resolver,omitempty"`
	HLS       hls.Config       `yaml:"hls,omitempty"`
	Media     media.Config     `yaml:"media,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.SegmentDuration, util.PrefixConfig(prefix, "segment-duration"), defaultSegmentDuration, "Duration of audio in each emitted segment.")
	f.IntVar(&cfg.ProbeThreshold, util.PrefixConfig(prefix, "probe-threshold"), probe.DefaultThreshold, "Bytes of audio buffered before codec and bitrate are inspected.")
	f.DurationVar(&cfg.StallTimeout, util.PrefixConfig(prefix, "stall-timeout"), defaultStallTimeout, "Restart a station when no audio arrived for this long.")
	f.DurationVar(&cfg.StallCheckInterval, util.PrefixConfig(prefix, "stall-check-interval"), defaultStallCheckInterval, "How often stalled stations are looked for.")
	f.DurationVar(&cfg.ReconnectBackoff, util.PrefixConfig(prefix, "reconnect-backoff"), defaultReconnectInitial,
		"Initial delay before reconnecting after a directory failure or an unexplained worker exit. Exponential backoff is used up to reconnect-backoff-max.")
	f.DurationVar(&cfg.ReconnectBackoffMax, util.PrefixConfig(prefix, "reconnect-backoff-max"), defaultReconnectMax, "Maximum delay between reconnection attempts.")
	f.DurationVar(&cfg.AuthRetryDelay, util.PrefixConfig(prefix, "auth-retry-delay"), defaultAuthRetryDelay, "Delay before retrying after an auth challenge or a 500/502.")
	f.DurationVar(&cfg.NotOKRetryDelay, util.PrefixConfig(prefix, "not-ok-retry-delay"), defaultNotOKRetryDelay, "Delay before retrying after any other non-200 status.")
	f.DurationVar(&cfg.ConnectionRetryDelay, util.PrefixConfig(prefix, "connection-retry-delay"), defaultConnectionRetryDelay, "Delay before retrying after a connection error or an unexpected close.")
	f.DurationVar(&cfg.FatalRestartDelay, util.PrefixConfig(prefix, "fatal-restart-delay"), 0, "Restart a failed station after this delay. 0 leaves it failed until restarted explicitly.")
	f.IntVar(&cfg.MaxRedirects, util.PrefixConfig(prefix, "max-redirects"), defaultMaxRedirects, "Redirects and playlist hops allowed before audio arrives.")
	f.IntVar(&cfg.EventBuffer, util.PrefixConfig(prefix, "event-buffer"), defaultEventBuffer, "Events buffered for a slow consumer.")
	f.IntVar(&cfg.DefaultBitrateKbps, util.PrefixConfig(prefix, "default-bitrate-kbps"), defaultBitrateKbps, "Bitrate assumed when neither the directory nor the probe know it.")

	cfg.Directory.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "directory"), f)
	cfg.Resolver.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "resolver"), f)
	cfg.HLS.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "hls"), f)
	cfg.Media.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "media"), f)
}

func (cfg *Config) applyDefaults() {
	if cfg.SegmentDuration == 0 {
		cfg.SegmentDuration = defaultSegmentDuration
	}
	if cfg.ProbeThreshold == 0 {
		cfg.ProbeThreshold = probe.DefaultThreshold
	}
	if cfg.StallTimeout == 0 {
		cfg.StallTimeout = defaultStallTimeout
	}
	if cfg.StallCheckInterval == 0 {
		cfg.StallCheckInterval = defaultStallCheckInterval
	}
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = defaultReconnectInitial
	}
	if cfg.ReconnectBackoffMax == 0 {
		cfg.ReconnectBackoffMax = defaultReconnectMax
	}
	if cfg.AuthRetryDelay == 0 {
		cfg.AuthRetryDelay = defaultAuthRetryDelay
	}
	if cfg.NotOKRetryDelay == 0 {
		cfg.NotOKRetryDelay = defaultNotOKRetryDelay
	}
	if cfg.ConnectionRetryDelay == 0 {
		cfg.ConnectionRetryDelay = defaultConnectionRetryDelay
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if cfg.EventBuffer == 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if cfg.DefaultBitrateKbps == 0 {
		cfg.DefaultBitrateKbps = defaultBitrateKbps
	}
}
