package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/pkg/models"
	"chatsync/pkg/payload"
	"chatsync/pkg/store"
	"chatsync/pkg/telemetry"
)

var (
	general = models.NewChannelID(models.ChannelTypeMessaging, "general")
	t0      = time.Date(2020, 7, 16, 15, 39, 3, 0, time.UTC)
)

// seed stores n server messages one minute apart, m0 oldest, plus one
// unsent local message between m0 and m1.
func seed(t *testing.T, n int) *store.DB {
	t.Helper()
	db, err := store.OpenInMemory(store.Options{Clock: func() time.Time { return t0.Add(30 * time.Second) }})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	user := payload.UserPayload{ID: "steep-moon-9", CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, db.Write(context.Background(), func(s *store.Session) error {
		if _, err := s.SaveCurrentUser(payload.CurrentUserPayload{UserPayload: user}); err != nil {
			return err
		}
		if _, err := s.SaveChannelDetail(payload.ChannelDetailPayload{CID: general, CreatedAt: t0, UpdatedAt: t0}); err != nil {
			return err
		}
		for i := range n {
			at := t0.Add(time.Duration(i) * time.Minute)
			if _, err := s.SaveMessage(payload.MessagePayload{
				ID: fmt.Sprintf("m%d", i), Type: models.MessageTypeRegular, User: user, CreatedAt: at, UpdatedAt: at,
			}, general); err != nil {
				return err
			}
		}
		_, err := s.CreateNewMessage(general, store.NewMessage{Text: "draft"})
		return err
	}))
	return db
}

func channelIDs(t *testing.T, db *store.DB) []string {
	t.Helper()
	var ids []string
	require.NoError(t, db.Read(func(r *store.ReadSession) error {
		var err error
		ids, err = r.ChannelMessageIDs(general, 0)
		return err
	}))
	return ids
}

func TestRunNowKeepsNewestAndLocal(t *testing.T) {
	db := seed(t, 6)
	m := telemetry.NewMetrics(prometheus.NewRegistry())
	rm := New(db, Config{KeepPerChannel: 2}, m)

	report, err := rm.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Channels: 1, Scanned: 7, Pruned: 4, Skipped: 1}, report)

	ids := channelIDs(t, db)
	require.Len(t, ids, 3)
	assert.Equal(t, []string{"m4", "m5"}, ids[1:])
	assert.Equal(t, 4.0, testutil.ToFloat64(m.MessagesPruned))

	require.NoError(t, db.Read(func(r *store.ReadSession) error {
		_, err := r.Message("m0")
		assert.True(t, store.IsNotFound(err))
		return nil
	}))
}

func TestRunNowPeriodAndDryRun(t *testing.T) {
	db := seed(t, 6)
	now := t0.Add(10 * time.Minute)

	// only messages older than now-7m (m0, m1, m2) are eligible
	rm := New(db, Config{KeepPerChannel: 1, Period: 7 * time.Minute, DryRun: true, Clock: func() time.Time { return now }}, nil)
	report, err := rm.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Pruned)
	assert.Equal(t, 1, report.Skipped)
	assert.True(t, report.DryRun)
	assert.Len(t, channelIDs(t, db), 7, "dry run deletes nothing")

	rm.cfg.DryRun = false
	report, err = rm.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Pruned)
	assert.Len(t, channelIDs(t, db), 4)
}

func TestRunNowSmallChannelUntouched(t *testing.T) {
	db := seed(t, 2)
	report, err := New(db, Config{KeepPerChannel: 10}, nil).RunNow(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Pruned)
	assert.Len(t, channelIDs(t, db), 3)
}

func TestRunNowCancelled(t *testing.T) {
	db := seed(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(db, Config{}, nil).RunNow(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
