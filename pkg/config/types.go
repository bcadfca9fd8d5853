package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Client    ClientConfig    `yaml:"client"`
	Store     StoreConfig     `yaml:"store"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LoggingConfig   `yaml:"logging"`
	Retention RetentionConfig `yaml:"retention"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ClientConfig identifies the backend and the user the replica belongs to.
type ClientConfig struct {
	BaseURL  string   `yaml:"base_url"`
	WSURL    string   `yaml:"ws_url"`
	APIKey   string   `yaml:"api_key"`
	Token    string   `yaml:"token"`
	UserID   string   `yaml:"user_id"`
	Channels []string `yaml:"channels"` // cids watched on startup
}

type StoreConfig struct {
	Path                 string    `yaml:"path"`
	CacheSize            SizeBytes `yaml:"cache_size"`
	SyncWrites           bool      `yaml:"sync_writes"`
	LatestReactionsLimit int       `yaml:"latest_reactions_limit"`
	WriteQueue           int       `yaml:"write_queue"`
}

// SyncConfig tunes the REST client and the realtime connection.
type SyncConfig struct {
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	RequestTimeout Duration  `yaml:"request_timeout"`
	ReconnectMin   Duration  `yaml:"reconnect_min"`
	ReconnectMax   Duration  `yaml:"reconnect_max"`
	PongWait       Duration  `yaml:"pong_wait"`
	MaxFrameSize   SizeBytes `yaml:"max_frame_size"`
	MessagesLimit  int       `yaml:"messages_limit"`
	IngestQueue    int       `yaml:"ingest_queue"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RetentionConfig controls pruning of the local message cache. A run keeps
// the newest KeepPerChannel messages of every channel and deletes older ones
// whose sorting time is before now minus Period.
type RetentionConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Cron           string   `yaml:"cron"`
	Period         Duration `yaml:"period"`
	KeepPerChannel int      `yaml:"keep_per_channel"`
	DryRun         bool     `yaml:"dry_run"`
}

// TelemetryConfig controls slow operation warnings, the debug endpoint and
// the disk space probe of the replica directory.
type TelemetryConfig struct {
	SlowThreshold    Duration `yaml:"slow_threshold"`
	DebugAddr        string   `yaml:"debug_addr"`
	DiskPollInterval Duration `yaml:"disk_poll_interval"`
	DiskHighPct      int      `yaml:"disk_high_pct"`
	DiskLowPct       int      `yaml:"disk_low_pct"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	v, err := parseSizeBytes(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func parseSizeBytes(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	return 0, fmt.Errorf("invalid size value: %q", raw)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = 0
		return nil
	}
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func parseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		return Duration(td), nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(f * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("invalid duration value: %q", raw)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }
