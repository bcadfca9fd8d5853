package payload

import (
	"encoding/json"
	"time"
)

var reactionKeys = newKeySet(
	"type", "score", "message_id", "user", "user_id", "created_at", "updated_at",
)

type ReactionPayload struct {
	Type      string          `json:"type" validate:"required"`
	Score     int             `json:"score"`
	MessageID string          `json:"message_id" validate:"required"`
	User      UserPayload     `json:"user"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExtraData json.RawMessage `json:"-"`
}

type reactionAlias ReactionPayload

func (r *ReactionPayload) UnmarshalJSON(data []byte) error {
	var a reactionAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtraData(data, reactionKeys)
	if err != nil {
		return err
	}
	a.ExtraData = extra
	if a.User.ID == "" {
		var alt struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal(data, &alt); err == nil {
			a.User.ID = alt.UserID
		}
	}
	*r = ReactionPayload(a)
	return nil
}

func (r ReactionPayload) MarshalJSON() ([]byte, error) {
	return flatten(reactionAlias(r), r.ExtraData)
}

// ReactionRequestBody is the body of the add reaction request.
type ReactionRequestBody struct {
	Type      string          `json:"type"`
	Score     int             `json:"score,omitempty"`
	ExtraData json.RawMessage `json:"-"`
}

func (r ReactionRequestBody) MarshalJSON() ([]byte, error) {
	type alias ReactionRequestBody
	return flatten(alias(r), r.ExtraData)
}
