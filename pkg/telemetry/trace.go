package telemetry

import (
	"time"

	"chatsync/pkg/logger"
)

type Step struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration_ms"`
}

// Trace times one operation and its marked steps.
type Trace struct {
	Name     string    `json:"name"`
	Start    time.Time `json:"start"`
	Steps    []Step    `json:"steps"`
	TotalMS  float64   `json:"total_ms"`
	lastMark time.Time
	m        *Metrics
	finished bool
}

// Track starts a new trace linked to m. m may be nil.
func (m *Metrics) Track(name string) *Trace {
	now := time.Now()
	return &Trace{
		Name:     name,
		Start:    now,
		lastMark: now,
		m:        m,
	}
}

// Mark records the elapsed duration since last mark.
func (tr *Trace) Mark(label string) {
	now := time.Now()
	delta := now.Sub(tr.lastMark).Seconds() * 1000
	tr.Steps = append(tr.Steps, Step{Name: label, Duration: delta})
	tr.lastMark = now
}

// Finish records the trace duration. Safe to call multiple times or via defer.
func (tr *Trace) Finish() {
	if tr.finished {
		return
	}
	tr.finished = true
	total := time.Since(tr.Start)
	tr.TotalMS = total.Seconds() * 1000

	var sum float64
	for _, s := range tr.Steps {
		sum += s.Duration
	}
	if remaining := tr.TotalMS - sum; remaining > 0.001 {
		tr.Steps = append(tr.Steps, Step{Name: "unmarked", Duration: remaining})
	}

	if tr.m == nil {
		return
	}
	tr.m.Operations.WithLabelValues(tr.Name).Observe(total.Seconds())
	if tr.m.SlowThreshold > 0 && total > tr.m.SlowThreshold {
		logger.Warn("slow_operation", "op", tr.Name, "total_ms", tr.TotalMS, "steps", tr.Steps)
	}
}
