package keys

import (
	"fmt"
	"strings"
	"time"
)

var (
	escaper   = strings.NewReplacer("%", "%25", ":", "%3A")
	unescaper = strings.NewReplacer("%3A", ":", "%25", "%")
)

// Escape makes an id safe to use as a single key segment.
func Escape(s string) string { return escaper.Replace(s) }

// Unescape reverses Escape.
func Unescape(s string) string { return unescaper.Replace(s) }

// primary
func GenUserKey(userID string) string {
	return fmt.Sprintf(UserKey, Escape(userID))
}

func GenChannelKey(cid string) string {
	return fmt.Sprintf(ChannelKey, Escape(cid))
}

func GenMemberKey(cid, userID string) string {
	return fmt.Sprintf(MemberKey, Escape(cid), Escape(userID))
}

func GenReadKey(cid, userID string) string {
	return fmt.Sprintf(ReadKey, Escape(cid), Escape(userID))
}

func GenMessageKey(messageID string) string {
	return fmt.Sprintf(MessageKey, Escape(messageID))
}

func GenReactionKey(messageID, userID, reactionType string) string {
	return fmt.Sprintf(ReactionKey, Escape(messageID), Escape(userID), Escape(reactionType))
}

func GenAttachmentKey(cid, messageID string, index int) string {
	return fmt.Sprintf(AttachmentKey, Escape(cid), Escape(messageID), PadIndex(index))
}

// indexes
func GenChannelMessageIndex(cid string, sortKey time.Time, messageID string) string {
	return fmt.Sprintf(ChannelMessageIndex, Escape(cid), PadTS(sortKey.UnixNano()), Escape(messageID))
}

func GenReplyIndex(parentID string) string {
	return fmt.Sprintf(ReplyIndex, Escape(parentID))
}

// prefixes
func ChannelsPrefix() string { return "ch:" }

func MembersPrefix(cid string) string { return "mem:" + Escape(cid) + ":" }

func ReadsPrefix(cid string) string { return "rd:" + Escape(cid) + ":" }

func MessagesPrefix() string { return "m:" }

func ChannelMessagesPrefix(cid string) string { return "idx:ch:" + Escape(cid) + ":ms:" }

func ReactionsPrefix(messageID string) string { return "r:" + Escape(messageID) + ":" }

func UserReactionsPrefix(messageID, userID string) string {
	return "r:" + Escape(messageID) + ":" + Escape(userID) + ":"
}

func AttachmentsPrefix(cid, messageID string) string {
	return "a:" + Escape(cid) + ":" + Escape(messageID) + ":"
}

// PrefixEnd returns the smallest key greater than every key with the prefix,
// for use as an iterator upper bound.
func PrefixEnd(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// PadTS pads a unix nano timestamp. Negative values clamp to zero.
func PadTS(ts int64) string {
	if ts < 0 {
		ts = 0
	}
	return fmt.Sprintf("%0*d", TSPadWidth, ts)
}

func PadIndex(i int) string {
	return fmt.Sprintf("%0*d", IndexPadWidth, i)
}
