package store

import (
	"fmt"

	"chatsync/pkg/payload"
	"chatsync/pkg/store/keys"
)

// SaveUser upserts a user, overwriting every server field.
func (s *Session) SaveUser(p payload.UserPayload) (*UserRow, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("save user: %w", ErrMissingID)
	}
	row := &UserRow{
		ID:           p.ID,
		Name:         p.Name,
		ImageURL:     p.ImageURL,
		Role:         p.Role,
		IsOnline:     p.IsOnline,
		IsBanned:     p.IsBanned,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		LastActiveAt: p.LastActiveAt,
		ExtraData:    p.ExtraData,
	}
	if err := s.put(EntityUser, row.ID, keys.GenUserKey(row.ID), row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Session) saveUsers(ps []payload.UserPayload) ([]string, error) {
	if len(ps) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		row, err := s.SaveUser(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// SaveCurrentUser upserts the session user and marks it as current.
func (s *Session) SaveCurrentUser(p payload.CurrentUserPayload) (*CurrentUserRow, error) {
	user, err := s.SaveUser(p.UserPayload)
	if err != nil {
		return nil, fmt.Errorf("save current user: %w", err)
	}
	row := &CurrentUserRow{
		UserID:              user.ID,
		UnreadMessagesCount: p.UnreadMessagesCount,
		UnreadChannelsCount: p.UnreadChannelsCount,
	}
	if err := s.put(EntityCurrentUser, row.UserID, keys.CurrentUser, row); err != nil {
		return nil, err
	}
	return row, nil
}
