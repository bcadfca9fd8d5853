package store

import (
	"fmt"

	"chatsync/pkg/payload"
	"chatsync/pkg/store/keys"
)

func reactionID(messageID, userID, typ string) string {
	return messageID + "/" + userID + "/" + typ
}

// SaveReaction upserts one reaction keyed by message, author and type.
func (s *Session) SaveReaction(p payload.ReactionPayload) (*ReactionRow, error) {
	if p.MessageID == "" || p.Type == "" {
		return nil, fmt.Errorf("save reaction: %w", ErrMissingID)
	}
	if ok, err := s.has(keys.GenMessageKey(p.MessageID)); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("save reaction: %w: %s", ErrMessageDoesNotExist, p.MessageID)
	}
	user, err := s.SaveUser(p.User)
	if err != nil {
		return nil, fmt.Errorf("save reaction author: %w", err)
	}
	row := &ReactionRow{
		MessageID: p.MessageID,
		UserID:    user.ID,
		Type:      p.Type,
		Score:     p.Score,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		ExtraData: p.ExtraData,
	}
	key := keys.GenReactionKey(row.MessageID, row.UserID, row.Type)
	if err := s.put(EntityReaction, reactionID(row.MessageID, row.UserID, row.Type), key, row); err != nil {
		return nil, err
	}
	return row, nil
}

// DeleteReaction removes a reaction. Removing an absent reaction is not an error.
func (s *Session) DeleteReaction(messageID, userID, typ string) error {
	return s.del(EntityReaction, reactionID(messageID, userID, typ), keys.GenReactionKey(messageID, userID, typ))
}
