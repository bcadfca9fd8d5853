package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveWrite(time.Millisecond, nil)
	m.ObserveEvent("message.new", "ok")
	m.ObserveRequest("send_message", "201", time.Millisecond)
	m.SetConnected(true)
	m.IncReconnects()
	m.AddPruned(3)

	tr := m.Track("noop")
	tr.Mark("step")
	tr.Finish()
	tr.Finish()
	assert.True(t, tr.finished)
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveWrite(time.Millisecond, nil)
	m.ObserveWrite(time.Millisecond, errors.New("boom"))
	m.ObserveWrite(time.Millisecond, nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreWrites.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreWrites.WithLabelValues("error")))

	m.SetConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connected))
	m.SetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Connected))

	m.AddPruned(0)
	m.AddPruned(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.MessagesPruned))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestTraceAddsUnmarkedRemainder(t *testing.T) {
	m := NewMetrics(nil)
	tr := m.Track("save_message")
	tr.Mark("load")
	time.Sleep(2 * time.Millisecond)
	tr.Finish()

	require.Len(t, tr.Steps, 2)
	assert.Equal(t, "load", tr.Steps[0].Name)
	assert.Equal(t, "unmarked", tr.Steps[1].Name)
	assert.GreaterOrEqual(t, tr.TotalMS, 2.0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.Operations))
}
