package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/store"
	"chatsync/pkg/telemetry"
)

type Config struct {
	Cron string
	// Period protects messages younger than now minus Period. Zero prunes
	// any message beyond the kept ones.
	Period         time.Duration
	KeepPerChannel int
	DryRun         bool
	Clock          func() time.Time
}

// Report summarises one pruning run.
type Report struct {
	Channels int  `json:"channels"`
	Scanned  int  `json:"scanned"`
	Pruned   int  `json:"pruned"`
	Skipped  int  `json:"skipped"` // candidates kept because of a local state
	DryRun   bool `json:"dry_run"`
}

// Manager prunes old messages from the replica on a cron schedule. Messages
// with a local state are never pruned: they have not been confirmed by the
// server yet.
type Manager struct {
	db      *store.DB
	cfg     Config
	metrics *telemetry.Metrics

	mu      sync.Mutex
	running bool
}

func New(db *store.DB, cfg Config, m *telemetry.Metrics) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Manager{db: db, cfg: cfg, metrics: m}
}

// Start runs the schedule until ctx ends or the returned cancel is called.
func (rm *Manager) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	logger.Info("retention_enabled", "cron", rm.cfg.Cron, "keep_per_channel", rm.cfg.KeepPerChannel, "period", rm.cfg.Period)
	go rm.scheduleLoop(ctx)
	return cancel
}

func (rm *Manager) scheduleLoop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(rm.cfg.Cron, rm.cfg.Clock(), false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", rm.cfg.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			if _, err := rm.RunNow(ctx); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

var ErrRunning = fmt.Errorf("retention run already in progress")

// RunNow performs one pruning pass over every stored channel.
func (rm *Manager) RunNow(ctx context.Context) (Report, error) {
	rm.mu.Lock()
	if rm.running {
		rm.mu.Unlock()
		return Report{}, ErrRunning
	}
	rm.running = true
	rm.mu.Unlock()
	defer func() {
		rm.mu.Lock()
		rm.running = false
		rm.mu.Unlock()
	}()

	tr := rm.metrics.Track("retention_run")
	defer tr.Finish()

	report := Report{DryRun: rm.cfg.DryRun}
	var cids []models.ChannelID
	err := rm.db.Read(func(r *store.ReadSession) error {
		chs, err := r.Channels()
		if err != nil {
			return err
		}
		for _, ch := range chs {
			cids = append(cids, ch.CID)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("list channels: %w", err)
	}
	logger.Info("retention_run_start", "channels", len(cids), "dry_run", rm.cfg.DryRun)

	var cutoff time.Time
	if rm.cfg.Period > 0 {
		cutoff = rm.cfg.Clock().Add(-rm.cfg.Period)
	}
	for _, cid := range cids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		var res channelResult
		if rm.cfg.DryRun {
			err = rm.db.Read(func(r *store.ReadSession) error {
				var perr error
				res, perr = rm.pruneChannel(r, cid, cutoff, func(string) error { return nil })
				return perr
			})
		} else {
			err = rm.db.Write(ctx, func(s *store.Session) error {
				var perr error
				res, perr = rm.pruneChannel(s, cid, cutoff, s.DeleteMessage)
				return perr
			})
		}
		if err != nil {
			return report, fmt.Errorf("prune channel %s: %w", cid, err)
		}
		report.Channels++
		report.Scanned += res.scanned
		report.Pruned += res.pruned
		report.Skipped += res.skipped
		if res.pruned > 0 {
			logger.Debug("retention_channel_pruned", "cid", cid.String(), "pruned", res.pruned, "dry_run", rm.cfg.DryRun)
		}
	}
	if !rm.cfg.DryRun {
		rm.metrics.AddPruned(report.Pruned)
	}
	logger.Info("retention_run_complete", "channels", report.Channels, "scanned", report.Scanned,
		"pruned", report.Pruned, "skipped", report.Skipped, "dry_run", report.DryRun)
	return report, nil
}

type channelMessages interface {
	ChannelMessages(cid models.ChannelID, limit int) ([]*store.MessageRow, error)
}

type channelResult struct {
	scanned, pruned, skipped int
}

// pruneChannel calls del for every message of cid that is older than the
// kept window and the cutoff and has no local state.
func (rm *Manager) pruneChannel(q channelMessages, cid models.ChannelID, cutoff time.Time, del func(id string) error) (channelResult, error) {
	var res channelResult
	rows, err := q.ChannelMessages(cid, 0)
	if err != nil {
		return res, err
	}
	res.scanned = len(rows)
	if len(rows) <= rm.cfg.KeepPerChannel {
		return res, nil
	}
	for _, row := range rows[:len(rows)-rm.cfg.KeepPerChannel] {
		if !cutoff.IsZero() && !row.SortingKey().Before(cutoff) {
			continue
		}
		if row.LocalState != nil {
			res.skipped++
			continue
		}
		if err := del(row.ID); err != nil {
			return res, err
		}
		res.pruned++
	}
	return res, nil
}
