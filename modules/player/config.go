package player

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"

	"github.com/pacecast/pacecast/pkg/fetch"
)

const defaultFFPlayPath = "ffplay"

type Config struct {
	URL       string `yaml:"url,omitempty"`
	MediaID   string `yaml:"media-id,omitempty"`
	UserAgent string `yaml:"user-agent,omitempty"`
	// Output switches the module from real-time playback to a bulk save of
	// the stream into this file.
	Output     string `yaml:"output,omitempty"`
	FFPlayPath string `yaml:"ffplay-path,omitempty"`

	ChunkSize     int64 `yaml:"chunk-size,omitempty"`      // bytes per streaming read
	BulkChunkSize int64 `yaml:"bulk-chunk-size,omitempty"` // bytes per bulk read
	EndTolerance  int64 `yaml:"end-tolerance,omitempty"`   // unreadable trailing bytes treated as normal end
	QueueSize     int   `yaml:"queue-size,omitempty"`      // bounded segment hand-off capacity

	StallTimeout time.Duration `yaml:"stall-timeout,omitempty"` // empty-queue time before the session fails
	GracePeriod  time.Duration `yaml:"grace-period,omitempty"`  // wait for the worker to acknowledge cancellation
	Slack        time.Duration `yaml:"slack,omitempty"`         // deadline overshoot tolerated before lag compensation
	PollInterval time.Duration `yaml:"poll-interval,omitempty"` // watchdog wakeup interval while the queue is empty
	LagRecovery  bool          `yaml:"lag-recovery,omitempty"`  // let early arrivals claw back accumulated drift
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.URL, util.PrefixConfig(prefix, "url"), "", "The URL of the media stream to play")
	f.StringVar(&cfg.MediaID, util.PrefixConfig(prefix, "media-id"), "", "Identifier used in logs and errors for the media (defaults to the URL)")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), "", "User agent sent when opening the stream")
	f.StringVar(&cfg.Output, util.PrefixConfig(prefix, "output"), "", "When set, save the stream to this file instead of playing it")
	f.StringVar(&cfg.FFPlayPath, util.PrefixConfig(prefix, "ffplay-path"), defaultFFPlayPath, "Path to the ffplay binary used as the audio consumer")
	f.Int64Var(&cfg.ChunkSize, util.PrefixConfig(prefix, "chunk-size"), fetch.DefaultChunkSize, "Bytes to request per streaming read")
	f.Int64Var(&cfg.BulkChunkSize, util.PrefixConfig(prefix, "bulk-chunk-size"), fetch.DefaultBulkChunkSize, "Bytes to request per bulk-save read")
	f.Int64Var(&cfg.EndTolerance, util.PrefixConfig(prefix, "end-tolerance"), fetch.DefaultEndTolerance, "Unreadable trailing bytes tolerated as a normal end of stream")
	f.IntVar(&cfg.QueueSize, util.PrefixConfig(prefix, "queue-size"), fetch.DefaultQueueSize, "Capacity of the segment hand-off queue")
	f.DurationVar(&cfg.StallTimeout, util.PrefixConfig(prefix, "stall-timeout"), fetch.DefaultStallTimeout, "How long the queue may stay empty before the session fails with a network stall")
	f.DurationVar(&cfg.GracePeriod, util.PrefixConfig(prefix, "grace-period"), fetch.DefaultGracePeriod, "How long to wait for the fetch worker to acknowledge cancellation")
	f.DurationVar(&cfg.Slack, util.PrefixConfig(prefix, "slack"), fetch.DefaultSlack, "Deadline overshoot tolerated before a late segment extends the playback end")
	f.DurationVar(&cfg.PollInterval, util.PrefixConfig(prefix, "poll-interval"), fetch.DefaultPollInterval, "Watchdog wakeup interval while waiting for segments")
	f.BoolVar(&cfg.LagRecovery, util.PrefixConfig(prefix, "lag-recovery"), false, "Allow early segment arrivals to claw back accumulated lag compensation")
}
