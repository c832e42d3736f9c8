package monitor

import (
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/zachfi/zkit/pkg/util"
)

const defaultStatsInterval = 30 * time.Second

type Config struct {
	// each entry is <country>_<name>
	Stations      flagext.StringSliceCSV `yaml:"stations,omitempty"`
	StatsInterval time.Duration          `yaml:"stats-interval,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.Var(&cfg.Stations, util.PrefixConfig(prefix, "stations"), "Comma separated list of stations to follow, each written <country>_<name>.")
	f.DurationVar(&cfg.StatsInterval, util.PrefixConfig(prefix, "stats-interval"), defaultStatsInterval, "How often a summary of every station is logged.")
}
