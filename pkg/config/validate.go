package config

import (
	"fmt"
	"net/url"

	"github.com/adhocore/gronx"

	"chatsync/pkg/models"
)

// ValidateConfig fails fast on settings the client cannot start with.
func ValidateConfig(eff EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("effective config is nil")
	}
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set -db flag, CHATSYNC_DB_PATH env, or store.path in config")
	}

	c := cfg.Client
	if err := checkURL("client.base_url", c.BaseURL, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("client.ws_url", c.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("client.api_key is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("client.user_id is required")
	}
	for _, cid := range c.Channels {
		if _, err := models.ParseChannelID(cid); err != nil {
			return fmt.Errorf("client.channels: %w", err)
		}
	}

	if cfg.Store.LatestReactionsLimit < 0 {
		return fmt.Errorf("store.latest_reactions_limit must not be negative")
	}
	if cfg.Sync.ReconnectMax < cfg.Sync.ReconnectMin {
		return fmt.Errorf("sync.reconnect_max (%s) is below sync.reconnect_min (%s)", cfg.Sync.ReconnectMax, cfg.Sync.ReconnectMin)
	}
	if cfg.Sync.MaxFrameSize < 0 {
		return fmt.Errorf("sync.max_frame_size must not be negative")
	}

	ret := cfg.Retention
	if ret.Enabled {
		if !gronx.New().IsValid(ret.Cron) {
			return fmt.Errorf("invalid retention.cron: %q is not a valid cron expression", ret.Cron)
		}
		if ret.KeepPerChannel < 0 {
			return fmt.Errorf("retention.keep_per_channel must not be negative")
		}
	}

	t := cfg.Telemetry
	if t.DiskLowPct > t.DiskHighPct || t.DiskHighPct > 100 {
		return fmt.Errorf("telemetry disk thresholds must satisfy low <= high <= 100")
	}
	return nil
}

func checkURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s: %q must be an absolute %v url", field, raw, schemes)
}
