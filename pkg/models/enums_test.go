package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnumsKnown(t *testing.T) {
	assert.True(t, MessageTypeReply.IsKnown())
	assert.False(t, MessageType("poll-result").IsKnown())
	assert.False(t, MessageType("").IsKnown())

	assert.True(t, UserRoleGuest.IsKnown())
	assert.False(t, UserRole("bot").IsKnown())

	assert.True(t, MemberRoleOwner.IsKnown())
	assert.False(t, MemberRole("channel_member").IsKnown())

	typ, ok := ParseAttachmentType("hologram")
	assert.False(t, ok)
	assert.Equal(t, AttachmentTypeUnknown, typ)
}
