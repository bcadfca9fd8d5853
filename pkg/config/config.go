package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

const (
	defaultStorePath            = "./.chatsync"
	defaultCacheSize            = 8 << 20
	defaultLatestReactionsLimit = 10
	defaultWriteQueue           = 256

	defaultRPS            = 10
	defaultBurst          = 20
	defaultRequestTimeout = 10 * time.Second
	defaultReconnectMin   = 500 * time.Millisecond
	defaultReconnectMax   = 30 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxFrameSize   = 1 << 20
	defaultMessagesLimit  = 30
	defaultIngestQueue    = 1024

	defaultRetentionCron   = "0 3 * * *" // daily at 03:00
	defaultRetentionKeep   = 500
	defaultRetentionPeriod = 30 * 24 * time.Hour

	defaultSlowThreshold    = 200 * time.Millisecond
	defaultDiskPollInterval = 30 * time.Second
	defaultDiskHighPct      = 90
	defaultDiskLowPct       = 80
)

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
	if c.Store.CacheSize == 0 {
		c.Store.CacheSize = defaultCacheSize
	}
	if c.Store.LatestReactionsLimit == 0 {
		c.Store.LatestReactionsLimit = defaultLatestReactionsLimit
	}
	if c.Store.WriteQueue <= 0 {
		c.Store.WriteQueue = defaultWriteQueue
	}

	s := &c.Sync
	if s.RateLimit.RPS <= 0 {
		s.RateLimit.RPS = defaultRPS
	}
	if s.RateLimit.Burst <= 0 {
		s.RateLimit.Burst = defaultBurst
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = Duration(defaultRequestTimeout)
	}
	if s.ReconnectMin == 0 {
		s.ReconnectMin = Duration(defaultReconnectMin)
	}
	if s.ReconnectMax == 0 {
		s.ReconnectMax = Duration(defaultReconnectMax)
	}
	if s.PongWait == 0 {
		s.PongWait = Duration(defaultPongWait)
	}
	if s.MaxFrameSize == 0 {
		s.MaxFrameSize = defaultMaxFrameSize
	}
	if s.MessagesLimit == 0 {
		s.MessagesLimit = defaultMessagesLimit
	}
	if s.IngestQueue <= 0 {
		s.IngestQueue = defaultIngestQueue
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	r := &c.Retention
	if r.Cron == "" {
		r.Cron = defaultRetentionCron
	}
	if r.KeepPerChannel == 0 {
		r.KeepPerChannel = defaultRetentionKeep
	}
	if r.Period == 0 {
		r.Period = Duration(defaultRetentionPeriod)
	}

	t := &c.Telemetry
	if t.SlowThreshold == 0 {
		t.SlowThreshold = Duration(defaultSlowThreshold)
	}
	if t.DiskPollInterval == 0 {
		t.DiskPollInterval = Duration(defaultDiskPollInterval)
	}
	if t.DiskHighPct == 0 {
		t.DiskHighPct = defaultDiskHighPct
	}
	if t.DiskLowPct == 0 {
		t.DiskLowPct = defaultDiskLowPct
	}
}

// Summary lists the effective settings for the startup banner. Secrets are
// masked.
func (c *Config) Summary() []string {
	return []string{
		fmt.Sprintf("backend: %s (ws %s)", c.Client.BaseURL, c.Client.WSURL),
		fmt.Sprintf("user: %s, api key %s, token %s", c.Client.UserID, mask(c.Client.APIKey), mask(c.Client.Token)),
		fmt.Sprintf("store: %s, cache %s, sync writes %t", c.Store.Path, c.Store.CacheSize, c.Store.SyncWrites),
		fmt.Sprintf("rate limit: %.1f rps, burst %d, timeout %s", c.Sync.RateLimit.RPS, c.Sync.RateLimit.Burst, c.Sync.RequestTimeout),
		fmt.Sprintf("realtime: reconnect %s..%s, max frame %s", c.Sync.ReconnectMin, c.Sync.ReconnectMax, c.Sync.MaxFrameSize),
		fmt.Sprintf("watching: %s channels", humanize.Comma(int64(len(c.Client.Channels)))),
		fmt.Sprintf("retention: enabled %t, cron %q, keep %d, period %s, dry run %t",
			c.Retention.Enabled, c.Retention.Cron, c.Retention.KeepPerChannel, c.Retention.Period, c.Retention.DryRun),
	}
}

func mask(s string) string {
	switch {
	case s == "":
		return "<unset>"
	case len(s) <= 4:
		return "****"
	default:
		return s[:4] + "****"
	}
}
