package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ChannelType is the first half of a channel id. Unknown types are custom
// types configured on the backend and are kept verbatim.
type ChannelType string

const (
	ChannelTypeLivestream ChannelType = "livestream"
	ChannelTypeMessaging  ChannelType = "messaging"
	ChannelTypeTeam       ChannelType = "team"
	ChannelTypeGaming     ChannelType = "gaming"
	ChannelTypeCommerce   ChannelType = "commerce"
)

// ChannelID identifies a channel by its (type, id) pair.
type ChannelID struct {
	Type ChannelType `validate:"required"`
	ID   string      `validate:"required"`
}

// NewChannelID returns a channel id for the given type and id.
func NewChannelID(typ ChannelType, id string) ChannelID {
	return ChannelID{Type: typ, ID: id}
}

// ParseChannelID parses the "type:id" form. Only the first colon splits,
// channel ids may contain colons themselves.
func ParseChannelID(s string) (ChannelID, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || typ == "" || id == "" {
		return ChannelID{}, fmt.Errorf("invalid channel id %q: expected <type>:<id>", s)
	}
	return ChannelID{Type: ChannelType(typ), ID: id}, nil
}

func (c ChannelID) String() string {
	return string(c.Type) + ":" + c.ID
}

// IsZero reports whether the id is unset.
func (c ChannelID) IsZero() bool {
	return c.Type == "" && c.ID == ""
}

func (c ChannelID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ChannelID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseChannelID(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AttachmentID identifies an attachment by its position inside its message.
type AttachmentID struct {
	CID       ChannelID
	MessageID string
	Index     int
}

func (a AttachmentID) String() string {
	return a.CID.String() + "/" + a.MessageID + "/" + strconv.Itoa(a.Index)
}

// ParseAttachmentID parses the "cid/messageID/index" form.
func ParseAttachmentID(s string) (AttachmentID, error) {
	first := strings.Index(s, "/")
	last := strings.LastIndex(s, "/")
	if first <= 0 || last <= first {
		return AttachmentID{}, fmt.Errorf("invalid attachment id %q", s)
	}
	cid, err := ParseChannelID(s[:first])
	if err != nil {
		return AttachmentID{}, fmt.Errorf("invalid attachment id %q: %w", s, err)
	}
	idx, err := strconv.Atoi(s[last+1:])
	if err != nil || idx < 0 {
		return AttachmentID{}, fmt.Errorf("invalid attachment index in %q", s)
	}
	return AttachmentID{CID: cid, MessageID: s[first+1 : last], Index: idx}, nil
}
