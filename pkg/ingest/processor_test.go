package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/pkg/models"
	"chatsync/pkg/payload"
	"chatsync/pkg/store"
)

var (
	general    = models.NewChannelID(models.ChannelTypeMessaging, "general")
	newChannel = models.NewChannelID(models.ChannelTypeMessaging, "new_channel_9125")
)

const messageID = "broken-waterfall-5-a1b2"

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "events", "testdata", name+".json"))
	require.NoError(t, err)
	return b
}

func newTestProcessor(t *testing.T) (*Processor, *store.DB) {
	t.Helper()
	db, err := store.OpenInMemory(store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Write(context.Background(), func(s *store.Session) error {
		for _, cid := range []models.ChannelID{general, newChannel} {
			if _, err := s.SaveChannelDetail(payload.ChannelDetailPayload{CID: cid}); err != nil {
				return err
			}
		}
		return nil
	}))
	p := NewProcessor(db, ProcessorConfig{QueueSize: 8})
	RegisterDefaultHandlers(p)
	return p, db
}

func process(t *testing.T, p *Processor, frame []byte) {
	t.Helper()
	require.NoError(t, p.Process(context.Background(), frame))
}

func TestProcessMessageAndReactionFrames(t *testing.T) {
	p, db := newTestProcessor(t)
	process(t, p, fixture(t, "HealthCheck"))
	process(t, p, fixture(t, "MessageNew"))
	process(t, p, fixture(t, "ReactionNew"))

	require.NoError(t, db.Read(func(r *store.ReadSession) error {
		cu, err := r.CurrentUserModel()
		require.NoError(t, err)
		assert.Equal(t, "steep-moon-9", cu.ID)
		assert.Equal(t, 7, cu.UnreadMessagesCount, "message.new refreshes the unread total")
		assert.Equal(t, 1, cu.UnreadChannelsCount)

		m, err := r.MessageModel(messageID)
		require.NoError(t, err)
		assert.Equal(t, general, m.CID)
		assert.Equal(t, map[string]int{"like": 1}, m.ReactionScores)
		require.Len(t, m.LatestReactions, 1)
		require.Len(t, m.CurrentUserReactions, 1)
		assert.Equal(t, "like", m.CurrentUserReactions[0].Type)
		return nil
	}))

	process(t, p, []byte(`{
		"type": "reaction.deleted",
		"cid": "messaging:general",
		"message": {"id": "`+messageID+`", "user": {"id": "broken-waterfall-5"}, "reaction_scores": {}},
		"reaction": {"message_id": "`+messageID+`", "user": {"id": "steep-moon-9"}, "type": "like"}
	}`))
	require.NoError(t, db.Read(func(r *store.ReadSession) error {
		rows, err := r.LoadLatestReactions(messageID, 10)
		require.NoError(t, err)
		assert.Empty(t, rows)
		return nil
	}))
}

func TestProcessMemberFrames(t *testing.T) {
	p, db := newTestProcessor(t)
	process(t, p, fixture(t, "MemberAdded"))
	require.NoError(t, db.Read(func(r *store.ReadSession) error {
		m, err := r.Member(newChannel, "steep-moon-9")
		require.NoError(t, err)
		assert.Equal(t, models.MemberRoleMember, m.Role)
		return nil
	}))

	process(t, p, fixture(t, "MemberRemoved"))
	require.NoError(t, db.Read(func(r *store.ReadSession) error {
		_, err := r.Member(newChannel, "steep-moon-9")
		assert.True(t, store.IsNotFound(err))
		return nil
	}))
}

func TestProcessSkipsAndFailures(t *testing.T) {
	p, db := newTestProcessor(t)

	assert.NoError(t, p.Process(context.Background(), []byte(`{"type":"poll.closed","poll":{}}`)))
	assert.NoError(t, p.Process(context.Background(), []byte(`{"type":"typing.start","cid":"messaging:general","user":{"id":"u"}}`)))
	assert.NoError(t, p.Process(context.Background(), []byte(`{
		"type": "message.new",
		"cid": "messaging:unwatched",
		"message": {"id": "elsewhere", "user": {"id": "u"}}
	}`)), "events for channels outside the replica are skipped")
	assert.Error(t, p.Process(context.Background(), []byte(`{"type":`)))

	require.NoError(t, db.Read(func(r *store.ReadSession) error {
		_, err := r.Message("elsewhere")
		assert.True(t, store.IsNotFound(err))
		return nil
	}))
	processed, failed := p.Stats()
	assert.Equal(t, uint64(1), processed)
	assert.Equal(t, uint64(1), failed)
}

func TestWorkerAppliesFramesInOrder(t *testing.T) {
	p, db := newTestProcessor(t)
	p.Start()

	ctx := context.Background()
	require.NoError(t, p.Enqueue(ctx, fixture(t, "MessageNew")))
	require.NoError(t, p.Enqueue(ctx, []byte(`not json`)))
	require.NoError(t, p.Enqueue(ctx, []byte(`{
		"type": "message.updated",
		"cid": "messaging:general",
		"message": {"id": "`+messageID+`", "text": "edited", "user": {"id": "broken-waterfall-5"}}
	}`)))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	p.Stop(stopCtx)
	assert.ErrorIs(t, p.Enqueue(ctx, []byte(`{}`)), ErrStopped)

	require.NoError(t, db.Read(func(r *store.ReadSession) error {
		m, err := r.Message(messageID)
		require.NoError(t, err)
		assert.Equal(t, "edited", m.Text)
		return nil
	}))
	processed, failed := p.Stats()
	assert.Equal(t, uint64(2), processed)
	assert.Equal(t, uint64(1), failed)
}
