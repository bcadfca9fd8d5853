package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionPayloadDecode(t *testing.T) {
	var r ReactionPayload
	raw := `{"type":"like","score":2,"message_id":"m1","user":{"id":"u1","name":"Ann"},"user_id":"u1","created_at":"2020-07-16T15:39:03Z","emoji":"+1"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	assert.Equal(t, "like", r.Type)
	assert.Equal(t, 2, r.Score)
	assert.Equal(t, "u1", r.User.ID)
	assert.Equal(t, "Ann", r.User.Name)
	assert.JSONEq(t, `{"emoji":"+1"}`, string(r.ExtraData))
}

func TestReactionPayloadUserIDFallback(t *testing.T) {
	var r ReactionPayload
	require.NoError(t, json.Unmarshal([]byte(`{"type":"love","message_id":"m1","user_id":"u2"}`), &r))
	assert.Equal(t, "u2", r.User.ID)
	assert.Nil(t, r.ExtraData)

	// an embedded user wins over the bare id
	require.NoError(t, json.Unmarshal([]byte(`{"type":"love","message_id":"m1","user":{"id":"u3"},"user_id":"u2"}`), &r))
	assert.Equal(t, "u3", r.User.ID)
}
