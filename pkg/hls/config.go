package hls

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	DefaultTargetBandwidth = 128000
	DefaultEmitInterval    = 2 * time.Second
	defaultRequestTimeout  = 15 * time.Second
)

type Config struct {
	// TargetBandwidth in bits per second; the variant closest to it is used.
	TargetBandwidth int           `yaml:"target-bandwidth,omitempty"`
	EmitInterval    time.Duration `yaml:"emit-interval,omitempty"`
	RequestTimeout  time.Duration `yaml:"request-timeout,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.TargetBandwidth, util.PrefixConfig(prefix, "target-bandwidth"), DefaultTargetBandwidth, "Variant bandwidth (bits/s) to aim for in HLS master manifests.")
	f.DurationVar(&cfg.EmitInterval, util.PrefixConfig(prefix, "emit-interval"), DefaultEmitInterval, "Interval between paced pieces of a long HLS segment.")
	f.DurationVar(&cfg.RequestTimeout, util.PrefixConfig(prefix, "request-timeout"), defaultRequestTimeout, "Timeout for each manifest or segment request.")
}

func (cfg *Config) applyDefaults() {
	if cfg.TargetBandwidth == 0 {
		cfg.TargetBandwidth = DefaultTargetBandwidth
	}
	if cfg.EmitInterval == 0 {
		cfg.EmitInterval = DefaultEmitInterval
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
}
