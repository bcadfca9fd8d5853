package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valyala/fasthttp"

	"chatsync/internal/retention"
	"chatsync/pkg/api"
	"chatsync/pkg/chat"
	"chatsync/pkg/config"
	"chatsync/pkg/ingest"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/realtime"
	"chatsync/pkg/state"
	"chatsync/pkg/store"
	"chatsync/pkg/telemetry"
)

// App groups the sync engine's components around one replica.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	paths    state.Paths
	registry *prometheus.Registry
	metrics  *telemetry.Metrics

	db        *store.DB
	proc      *ingest.Processor
	api       *api.Client
	chat      *chat.Client
	rt        *realtime.Client
	retention *retention.Manager
	disk      *state.DiskMonitor

	retentionCancel context.CancelFunc
	srvFast         *fasthttp.Server
	state           atomic.Value // string
}

// New opens the replica and builds every component. Nothing talks to the
// network until Run.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	cfg := eff.Config
	if cfg == nil {
		return nil, fmt.Errorf("effective config is nil")
	}
	paths, err := state.EnsureDirs(eff.DBPath)
	if err != nil {
		return nil, fmt.Errorf("prepare replica directory: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)
	metrics.SlowThreshold = cfg.Telemetry.SlowThreshold.Duration()

	db, err := store.Open(paths.Store, store.Options{
		LatestReactionsLimit: cfg.Store.LatestReactionsLimit,
		CacheSize:            cfg.Store.CacheSize.Int64(),
		SyncWrites:           cfg.Store.SyncWrites,
		QueueSize:            cfg.Store.WriteQueue,
		Metrics:              metrics,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		paths:     paths,
		registry:  reg,
		metrics:   metrics,
		db:        db,
	}
	a.state.Store("created")

	a.proc = ingest.NewProcessor(db, ingest.ProcessorConfig{QueueSize: cfg.Sync.IngestQueue, Metrics: metrics})
	ingest.RegisterDefaultHandlers(a.proc)

	a.api, err = api.New(api.Config{
		BaseURL:   cfg.Client.BaseURL,
		APIKey:    cfg.Client.APIKey,
		Token:     cfg.Client.Token,
		Timeout:   cfg.Sync.RequestTimeout.Duration(),
		RateLimit: cfg.Sync.RateLimit.RPS,
		Burst:     cfg.Sync.RateLimit.Burst,
		Metrics:   metrics,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	a.chat = chat.New(db, a.api, a.proc, metrics)

	a.rt = realtime.New(realtime.Config{
		URL:          cfg.Client.WSURL,
		APIKey:       cfg.Client.APIKey,
		Token:        cfg.Client.Token,
		UserID:       cfg.Client.UserID,
		MaxFrameSize: cfg.Sync.MaxFrameSize.Int64(),
		PongWait:     cfg.Sync.PongWait.Duration(),
		ReconnectMin: cfg.Sync.ReconnectMin.Duration(),
		ReconnectMax: cfg.Sync.ReconnectMax.Duration(),
		Metrics:      metrics,
	}, a.proc.Enqueue)

	if cfg.Retention.Enabled {
		a.retention = retention.New(db, retention.Config{
			Cron:           cfg.Retention.Cron,
			Period:         cfg.Retention.Period.Duration(),
			KeepPerChannel: cfg.Retention.KeepPerChannel,
			DryRun:         cfg.Retention.DryRun,
		}, metrics)
	}

	a.disk = state.NewDiskMonitor(state.DiskMonitorConfig{
		Path:         paths.Root,
		PollInterval: cfg.Telemetry.DiskPollInterval.Duration(),
		HighPct:      cfg.Telemetry.DiskHighPct,
		LowPct:       cfg.Telemetry.DiskLowPct,
	})
	return a, nil
}

// Run starts the components and blocks until ctx ends or the realtime
// connection or debug server fail.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()
	a.state.Store("running")

	a.proc.Start()
	a.disk.Start()
	if a.retention != nil {
		a.retentionCancel = a.retention.Start(ctx)
	}

	a.watchChannels(ctx)

	errCh := make(chan error, 2)
	if addr := a.eff.Config.Telemetry.DebugAddr; addr != "" {
		a.startHTTP(addr, errCh)
	}
	go func() {
		if err := a.rt.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("realtime: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// watchChannels queries the configured channels so the replica holds them
// before realtime events arrive. Failures are logged and startup continues;
// events for a channel that was never saved are skipped by ingest.
func (a *App) watchChannels(ctx context.Context) {
	for _, raw := range a.eff.Config.Client.Channels {
		cid, err := models.ParseChannelID(raw)
		if err != nil {
			logger.Warn("watch_channel_invalid", "cid", raw, "error", err)
			continue
		}
		if _, err := a.chat.WatchChannel(ctx, cid, a.eff.Config.Sync.MessagesLimit); err != nil {
			logger.Warn("watch_channel_failed", "cid", raw, "error", err)
		}
	}
}

func (a *App) printBanner() {
	ver := a.version
	if a.commit != "" && a.commit != "none" {
		ver += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		ver += " @ " + a.buildDate
	}
	items := append([]string{
		"version: " + ver,
		fmt.Sprintf("sources: %v", a.eff.Sources),
		"replica: " + a.paths.Root,
	}, a.eff.Config.Summary()...)
	if u, err := state.StatDisk(a.paths.Root); err == nil {
		items = append(items, fmt.Sprintf("disk: %s free of %s", humanize.IBytes(u.Available), humanize.IBytes(u.Total)))
	}
	logger.LogConfigSummary("chatsync", items)
}

// DB returns the replica handle.
func (a *App) DB() *store.DB { return a.db }

// Chat returns the action client.
func (a *App) Chat() *chat.Client { return a.chat }

// State is "created", "running", "shutting_down" or "stopped".
func (a *App) State() string {
	s, _ := a.state.Load().(string)
	return s
}
