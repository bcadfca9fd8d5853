package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/pkg/models"
	"chatsync/pkg/payload"
)

func reaction(msgID, userID, typ string, at time.Time) payload.ReactionPayload {
	return payload.ReactionPayload{
		Type:      typ,
		Score:     1,
		MessageID: msgID,
		User:      userPayload(userID),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestLatestAndOwnReactions(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)
	seedCurrentUser(t, db, "me")

	p := messagePayload("m1", "u1", t0)
	p.LatestReactions = []payload.ReactionPayload{
		reaction("m1", "u1", "like", t0.Add(1*time.Minute)),
		reaction("m1", "me", "like", t0.Add(3*time.Minute)),
	}
	p.OwnReactions = []payload.ReactionPayload{
		reaction("m1", "me", "love", t0.Add(2*time.Minute)),
	}
	saveMessage(t, db, p)

	read(t, db, func(r *ReadSession) error {
		latest, err := r.LoadLatestReactions("m1", 10)
		require.NoError(t, err)
		require.Len(t, latest, 3)
		assert.Equal(t, []string{"me/like", "me/love", "u1/like"}, reactionNames(latest))

		capped, err := r.LoadLatestReactions("m1", 2)
		require.NoError(t, err)
		assert.Len(t, capped, 2)

		own, err := r.LoadReactions("m1", "me", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"me/like", "me/love"}, reactionNames(own))

		m, err := r.MessageModel("m1")
		require.NoError(t, err)
		assert.Len(t, m.LatestReactions, 3)
		require.Len(t, m.CurrentUserReactions, 2)
		for _, cr := range m.CurrentUserReactions {
			assert.Equal(t, "me", cr.Author.ID)
		}
		return nil
	})
}

func reactionNames(rows []ReactionRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.UserID+"/"+r.Type)
	}
	return out
}

func TestSaveMessageNeverDeletesReactions(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)

	p := messagePayload("m1", "u1", t0)
	p.LatestReactions = []payload.ReactionPayload{reaction("m1", "u2", "like", t0)}
	saveMessage(t, db, p)

	p.LatestReactions = nil
	saveMessage(t, db, p)

	read(t, db, func(r *ReadSession) error {
		rows, err := r.LoadLatestReactions("m1", 10)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		return nil
	})

	write(t, db, func(s *Session) error { return s.DeleteReaction("m1", "u2", "like") })
	write(t, db, func(s *Session) error { return s.DeleteReaction("m1", "u2", "like") })
	read(t, db, func(r *ReadSession) error {
		rows, err := r.LoadLatestReactions("m1", 10)
		require.NoError(t, err)
		assert.Empty(t, rows)
		return nil
	})
}

func TestSaveReactionRequiresMessage(t *testing.T) {
	db := newTestDB(t)
	err := db.Write(t.Context(), func(s *Session) error {
		_, err := s.SaveReaction(reaction("missing", "u1", "like", t0))
		return err
	})
	assert.ErrorIs(t, err, ErrMessageDoesNotExist)
}

type moodData struct {
	Mood string `json:"mood"`
}

func (moodData) Default() moodData { return moodData{Mood: "neutral"} }

func TestExtraDataDecodedAtProjection(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)

	p := messagePayload("m1", "u1", t0)
	p.ExtraData = json.RawMessage(`{"mood":"sunny"}`)
	saveMessage(t, db, p)
	saveMessage(t, db, messagePayload("m2", "u1", t0))
	write(t, db, func(s *Session) error {
		_, err := s.UpdateMessage("m2", func(r *MessageRow) { r.ExtraData = json.RawMessage(`["not","an","object"]`) })
		return err
	})

	read(t, db, func(r *ReadSession) error {
		m1, err := r.MessageModel("m1")
		require.NoError(t, err)
		assert.Equal(t, "sunny", models.DecodeExtraData[moodData](m1.ExtraData).Mood)

		m2, err := r.MessageModel("m2")
		require.NoError(t, err, "malformed extra data never fails a read")
		assert.Equal(t, "neutral", models.DecodeExtraData[moodData](m2.ExtraData).Mood)
		return nil
	})
}
