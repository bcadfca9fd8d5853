package models

import (
	"bytes"
	"encoding/json"

	"chatsync/pkg/logger"
)

// ExtraData is implemented by caller-defined types that extra data blobs are
// decoded into. Default is used when the stored bytes are absent or malformed.
type ExtraData[T any] interface {
	Default() T
}

// NoExtraData is the extra data type for callers that ignore extra data.
type NoExtraData struct{}

func (NoExtraData) Default() NoExtraData { return NoExtraData{} }

// DecodeExtraData decodes raw into T. Malformed bytes never fail the read:
// they resolve to T's default value.
func DecodeExtraData[T ExtraData[T]](raw json.RawMessage) T {
	var zero T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return zero.Default()
	}
	var out T
	if err := json.Unmarshal(trimmed, &out); err != nil {
		logger.Warn("extra_data_decode_failed", "error", err, "bytes", len(trimmed))
		return zero.Default()
	}
	return out
}
