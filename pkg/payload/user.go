package payload

import (
	"encoding/json"
	"time"

	"chatsync/pkg/models"
)

var userKeys = newKeySet(
	"id", "name", "image", "image_url", "role", "created_at", "updated_at",
	"last_active", "online", "banned", "teams", "language", "invisible",
	"deactivated_at", "deleted_at", "devices", "mutes", "channel_mutes",
	"unread_count", "total_unread_count", "unread_channels", "shadow_banned",
)

type UserPayload struct {
	ID           string          `json:"id" validate:"required"`
	Name         string          `json:"name,omitempty"`
	ImageURL     string          `json:"image,omitempty"`
	Role         models.UserRole `json:"role,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	LastActiveAt *time.Time      `json:"last_active,omitempty"`
	IsOnline     bool            `json:"online"`
	IsBanned     bool            `json:"banned"`
	ExtraData    json.RawMessage `json:"-"`
}

type userAlias UserPayload

func (u *UserPayload) UnmarshalJSON(data []byte) error {
	var a userAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.ImageURL == "" {
		var alt struct {
			ImageURL string `json:"image_url"`
		}
		if err := json.Unmarshal(data, &alt); err == nil {
			a.ImageURL = alt.ImageURL
		}
	}
	extra, err := splitExtraData(data, userKeys)
	if err != nil {
		return err
	}
	a.ExtraData = extra
	*u = UserPayload(a)
	return nil
}

func (u UserPayload) MarshalJSON() ([]byte, error) {
	return flatten(userAlias(u), u.ExtraData)
}

// CurrentUserPayload is the user of the connection, carried by health check
// events and connection responses.
type CurrentUserPayload struct {
	UserPayload
	UnreadMessagesCount int `json:"total_unread_count"`
	UnreadChannelsCount int `json:"unread_channels"`
}

func (c *CurrentUserPayload) UnmarshalJSON(data []byte) error {
	if err := c.UserPayload.UnmarshalJSON(data); err != nil {
		return err
	}
	var counts struct {
		UnreadMessagesCount int `json:"total_unread_count"`
		UnreadChannelsCount int `json:"unread_channels"`
	}
	if err := json.Unmarshal(data, &counts); err != nil {
		return err
	}
	c.UnreadMessagesCount = counts.UnreadMessagesCount
	c.UnreadChannelsCount = counts.UnreadChannelsCount
	return nil
}

func (c CurrentUserPayload) MarshalJSON() ([]byte, error) {
	base, err := c.UserPayload.MarshalJSON()
	if err != nil {
		return nil, err
	}
	counts, err := json.Marshal(struct {
		UnreadMessagesCount int `json:"total_unread_count"`
		UnreadChannelsCount int `json:"unread_channels"`
	}{c.UnreadMessagesCount, c.UnreadChannelsCount})
	if err != nil {
		return nil, err
	}
	return flatten(json.RawMessage(base), counts)
}
