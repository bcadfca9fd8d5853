package keys

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelMessageIndexParts are the components of a channel ordering index key.
type ChannelMessageIndexParts struct {
	CID       string
	SortTS    int64
	MessageID string
}

func ParseChannelMessageIndex(key string) (*ChannelMessageIndexParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 6 || parts[0] != "idx" || parts[1] != "ch" || parts[3] != "ms" {
		return nil, fmt.Errorf("invalid channel message index key: %s", key)
	}
	ts, err := parsePaddedInt(parts[4], TSPadWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid sort timestamp in %s: %w", key, err)
	}
	return &ChannelMessageIndexParts{
		CID:       Unescape(parts[2]),
		SortTS:    ts,
		MessageID: Unescape(parts[5]),
	}, nil
}

// ReactionKeyParts are the components of a reaction key.
type ReactionKeyParts struct {
	MessageID string
	UserID    string
	Type      string
}

func ParseReactionKey(key string) (*ReactionKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "r" {
		return nil, fmt.Errorf("invalid reaction key: %s", key)
	}
	return &ReactionKeyParts{
		MessageID: Unescape(parts[1]),
		UserID:    Unescape(parts[2]),
		Type:      Unescape(parts[3]),
	}, nil
}

// AttachmentKeyParts are the components of an attachment key.
type AttachmentKeyParts struct {
	CID       string
	MessageID string
	Index     int
}

func ParseAttachmentKey(key string) (*AttachmentKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "a" {
		return nil, fmt.Errorf("invalid attachment key: %s", key)
	}
	idx, err := parsePaddedInt(parts[3], IndexPadWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid attachment index in %s: %w", key, err)
	}
	return &AttachmentKeyParts{
		CID:       Unescape(parts[1]),
		MessageID: Unescape(parts[2]),
		Index:     int(idx),
	}, nil
}

// ParseMessageKey returns the message id of a message key.
func ParseMessageKey(key string) (string, error) {
	id, ok := strings.CutPrefix(key, MessagesPrefix())
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", fmt.Errorf("invalid message key: %s", key)
	}
	return Unescape(id), nil
}

func parsePaddedInt(s string, width int) (int64, error) {
	if len(s) != width {
		return 0, fmt.Errorf("expected %d digits, got %q", width, s)
	}
	return strconv.ParseInt(s, 10, 64)
}
