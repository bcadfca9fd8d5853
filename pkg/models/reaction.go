package models

import (
	"encoding/json"
	"time"
)

type ChatMessageReaction struct {
	MessageID string
	Type      string
	Score     int
	Author    ChatUser
	CreatedAt time.Time
	UpdatedAt time.Time
	ExtraData json.RawMessage
}
