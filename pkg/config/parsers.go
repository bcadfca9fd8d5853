package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

const envPrefix = "CHATSYNC_"

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Config    string
	DB        string
	DebugAddr string
	Set       map[string]bool
}

// EffectiveConfigResult is the merged configuration and where it came from.
type EffectiveConfigResult struct {
	Config  *Config
	DBPath  string
	Sources []string // "file", "env", "flags" in merge order
}

// ParseConfigFlags parses args into Flags using fs.
func ParseConfigFlags(fs *flag.FlagSet, args []string) (Flags, error) {
	cfgPtr := fs.String("config", "./chatsync.yaml", "Path to config file")
	dbPtr := fs.String("db", "", "Replica directory")
	debugPtr := fs.String("debug-addr", "", "Debug HTTP listen address, empty disables it")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Config: *cfgPtr, DB: *dbPtr, DebugAddr: *debugPtr, Set: set}, nil
}

// ResolveConfigPath returns the config file path, preferring the flag, then env.
func ResolveConfigPath(flags Flags, getenv func(string) string) string {
	if flags.Set["config"] {
		return flags.Config
	}
	if p := getenv(envPrefix + "CONFIG"); p != "" {
		return p
	}
	return flags.Config
}

// ParseConfigFile loads the config file. A missing file is only an error
// when its path was given explicitly.
func ParseConfigFile(flags Flags, getenv func(string) string) (*Config, bool, error) {
	path := ResolveConfigPath(flags, getenv)
	explicit := flags.Set["config"] || getenv(envPrefix+"CONFIG") != ""
	cfg, err := LoadConfigFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return &Config{}, false, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("config file not found: %s", path)
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ApplyConfigEnvs overrides cfg with CHATSYNC_* variables and reports whether
// any was set. Malformed values are errors.
func ApplyConfigEnvs(cfg *Config, getenv func(string) string) (bool, error) {
	used := false
	var errs []error
	get := func(name string) (string, bool) {
		v := strings.TrimSpace(getenv(envPrefix + name))
		if v != "" {
			used = true
		}
		return v, v != ""
	}
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			switch strings.ToLower(v) {
			case "1", "true", "yes":
				*dst = true
			default:
				*dst = false
			}
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := get(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	duration := func(name string, dst *Duration) {
		if v, ok := get(name); ok {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	size := func(name string, dst *SizeBytes) {
		if v, ok := get(name); ok {
			s, err := parseSizeBytes(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = s
		}
	}

	// client
	str("BASE_URL", &cfg.Client.BaseURL)
	str("WS_URL", &cfg.Client.WSURL)
	str("API_KEY", &cfg.Client.APIKey)
	str("TOKEN", &cfg.Client.Token)
	str("USER_ID", &cfg.Client.UserID)
	if v, ok := get("CHANNELS"); ok {
		cfg.Client.Channels = parseList(v)
	}

	// store
	str("DB_PATH", &cfg.Store.Path)
	size("CACHE_SIZE", &cfg.Store.CacheSize)
	boolean("SYNC_WRITES", &cfg.Store.SyncWrites)
	integer("LATEST_REACTIONS_LIMIT", &cfg.Store.LatestReactionsLimit)

	// sync
	float("RATE_RPS", &cfg.Sync.RateLimit.RPS)
	integer("RATE_BURST", &cfg.Sync.RateLimit.Burst)
	duration("REQUEST_TIMEOUT", &cfg.Sync.RequestTimeout)
	duration("RECONNECT_MIN", &cfg.Sync.ReconnectMin)
	duration("RECONNECT_MAX", &cfg.Sync.ReconnectMax)
	size("MAX_FRAME_SIZE", &cfg.Sync.MaxFrameSize)
	integer("MESSAGES_LIMIT", &cfg.Sync.MessagesLimit)

	// logging
	str("LOG_LEVEL", &cfg.Logging.Level)

	// retention
	boolean("RETENTION_ENABLED", &cfg.Retention.Enabled)
	str("RETENTION_CRON", &cfg.Retention.Cron)
	duration("RETENTION_PERIOD", &cfg.Retention.Period)
	integer("RETENTION_KEEP_PER_CHANNEL", &cfg.Retention.KeepPerChannel)
	boolean("RETENTION_DRY_RUN", &cfg.Retention.DryRun)

	// telemetry
	duration("TELEMETRY_SLOW_THRESHOLD", &cfg.Telemetry.SlowThreshold)
	str("DEBUG_ADDR", &cfg.Telemetry.DebugAddr)

	return used, errors.Join(errs...)
}

func parseList(v string) []string {
	var parts []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// LoadEffectiveConfig merges defaults, the config file, environment and
// flags, later sources winning.
func LoadEffectiveConfig(flags Flags, getenv func(string) string) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	cfg, found, err := ParseConfigFile(flags, getenv)
	if err != nil {
		return res, err
	}
	if found {
		res.Sources = append(res.Sources, "file")
	}

	used, err := ApplyConfigEnvs(cfg, getenv)
	if err != nil {
		return res, err
	}
	if used {
		res.Sources = append(res.Sources, "env")
	}

	if flags.Set["db"] {
		cfg.Store.Path = flags.DB
	}
	if flags.Set["debug-addr"] {
		cfg.Telemetry.DebugAddr = flags.DebugAddr
	}
	if flags.Set["db"] || flags.Set["debug-addr"] {
		res.Sources = append(res.Sources, "flags")
	}

	cfg.ApplyDefaults()
	res.Config = cfg
	res.DBPath = cfg.Store.Path
	return res, nil
}

// LoadFromEnvironment is LoadEffectiveConfig against the process environment.
func LoadFromEnvironment(flags Flags) (EffectiveConfigResult, error) {
	return LoadEffectiveConfig(flags, os.Getenv)
}
