package state

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"chatsync/pkg/logger"
)

// DiskUsage describes the filesystem holding a path.
type DiskUsage struct {
	Total     uint64
	Available uint64
	UsedPct   float64
}

func StatDisk(path string) (DiskUsage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return DiskUsage{}, err
	}
	u := DiskUsage{
		Available: stat.Bavail * uint64(stat.Bsize),
		Total:     stat.Blocks * uint64(stat.Bsize),
	}
	if u.Total > 0 {
		u.UsedPct = float64(u.Total-u.Available) / float64(u.Total) * 100
	}
	return u, nil
}

type DiskMonitorConfig struct {
	Path         string
	PollInterval time.Duration
	HighPct      int
	LowPct       int
}

// DiskMonitor warns once when the replica's filesystem fills past HighPct
// and logs recovery once usage drops below LowPct.
type DiskMonitor struct {
	cfg      DiskMonitorConfig
	stat     func(string) (DiskUsage, error)
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu    sync.Mutex
	alert bool
}

func NewDiskMonitor(cfg DiskMonitorConfig) *DiskMonitor {
	return &DiskMonitor{cfg: cfg, stat: StatDisk, stopCh: make(chan struct{})}
}

func (m *DiskMonitor) Start() {
	if m.cfg.PollInterval <= 0 {
		return
	}
	m.wg.Add(1)
	go m.run()
}

func (m *DiskMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *DiskMonitor) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	m.Check()
	for {
		select {
		case <-ticker.C:
			m.Check()
		case <-m.stopCh:
			return
		}
	}
}

// Check samples usage once and reports whether usage is above the high mark.
func (m *DiskMonitor) Check() bool {
	u, err := m.stat(m.cfg.Path)
	if err != nil {
		logger.Error("disk_stat_failed", "path", m.cfg.Path, "error", err)
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case u.UsedPct > float64(m.cfg.HighPct):
		if !m.alert {
			logger.Warn("disk_usage_high", "path", m.cfg.Path, "usage_pct", u.UsedPct,
				"available", humanize.IBytes(u.Available), "threshold", m.cfg.HighPct)
			m.alert = true
		}
	case u.UsedPct < float64(m.cfg.LowPct) && m.alert:
		logger.Info("disk_usage_recovered", "path", m.cfg.Path, "usage_pct", u.UsedPct, "threshold", m.cfg.LowPct)
		m.alert = false
	}
	return m.alert
}
