package media

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const defaultKillGrace = 2 * time.Second

type Config struct {
	FFmpegPath  string        `yaml:"ffmpeg-path,omitempty"`
	FFprobePath string        `yaml:"ffprobe-path,omitempty"`
	CurlPath    string        `yaml:"curl-path,omitempty"`
	KillGrace   time.Duration `yaml:"kill-grace,omitempty"` // how long to wait for pipes after a helper is killed
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.FFmpegPath, util.PrefixConfig(prefix, "ffmpeg-path"), "ffmpeg", "Path to the ffmpeg binary used to demux HLS segments.")
	f.StringVar(&cfg.FFprobePath, util.PrefixConfig(prefix, "ffprobe-path"), "ffprobe", "Path to the ffprobe binary used to inspect stream prefixes.")
	f.StringVar(&cfg.CurlPath, util.PrefixConfig(prefix, "curl-path"), "curl", "Path to the curl binary used for servers that answer without an HTTP status line.")
	f.DurationVar(&cfg.KillGrace, util.PrefixConfig(prefix, "kill-grace"), defaultKillGrace, "How long to wait for a killed helper's output pipes to close.")
}
