package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/cockroachdb/pebble"

	"chatsync/pkg/models"
	"chatsync/pkg/store/keys"
)

// reader is what an indexed batch and a snapshot have in common.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

// queries is the read surface shared by Session and ReadSession.
type queries struct {
	r    reader
	opts *Options
}

// ReadSession is a consistent read view of committed state.
type ReadSession struct {
	queries
}

func (q queries) get(key string, v any) error {
	val, closer, err := q.r.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	defer closer.Close()
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (q queries) has(key string) (bool, error) {
	_, closer, err := q.r.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

// scan calls fn for every key with prefix in ascending order. key and value
// are only valid during the call.
func (q queries) scan(prefix string, fn func(key, value []byte) error) error {
	iter, err := q.r.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keys.PrefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), []byte(prefix)) {
			break
		}
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// scanReverse is scan in descending key order. Returning errStop ends it early.
func (q queries) scanReverse(prefix string, fn func(key, value []byte) error) error {
	iter, err := q.r.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keys.PrefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.Last(); iter.Valid(); iter.Prev() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			if errors.Is(err, errStop) {
				return nil
			}
			return err
		}
	}
	return iter.Error()
}

var errStop = errors.New("stop iteration")

func scanRows[T any](q queries, prefix string) ([]T, error) {
	var out []T
	err := q.scan(prefix, func(key, value []byte) error {
		var row T
		if err := json.Unmarshal(value, &row); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

func (q queries) Message(id string) (*MessageRow, error) {
	var row MessageRow
	if err := q.get(keys.GenMessageKey(id), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (q queries) Channel(cid models.ChannelID) (*ChannelRow, error) {
	var row ChannelRow
	if err := q.get(keys.GenChannelKey(cid.String()), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// Channels lists every channel row in key order.
func (q queries) Channels() ([]ChannelRow, error) {
	return scanRows[ChannelRow](q, keys.ChannelsPrefix())
}

func (q queries) User(id string) (*UserRow, error) {
	var row UserRow
	if err := q.get(keys.GenUserKey(id), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (q queries) CurrentUser() (*CurrentUserRow, error) {
	var row CurrentUserRow
	if err := q.get(keys.CurrentUser, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (q queries) Member(cid models.ChannelID, userID string) (*MemberRow, error) {
	var row MemberRow
	if err := q.get(keys.GenMemberKey(cid.String(), userID), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (q queries) Members(cid models.ChannelID) ([]MemberRow, error) {
	return scanRows[MemberRow](q, keys.MembersPrefix(cid.String()))
}

func (q queries) Reads(cid models.ChannelID) ([]ReadRow, error) {
	return scanRows[ReadRow](q, keys.ReadsPrefix(cid.String()))
}

func (q queries) Attachment(id models.AttachmentID) (*AttachmentRow, error) {
	var row AttachmentRow
	if err := q.get(keys.GenAttachmentKey(id.CID.String(), id.MessageID, id.Index), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// Attachments returns the attachments of a message ordered by index.
func (q queries) Attachments(messageID string) ([]AttachmentRow, error) {
	msg, err := q.Message(messageID)
	if err != nil {
		return nil, err
	}
	return q.attachmentsOf(msg.CID, messageID)
}

func (q queries) attachmentsOf(cid models.ChannelID, messageID string) ([]AttachmentRow, error) {
	return scanRows[AttachmentRow](q, keys.AttachmentsPrefix(cid.String(), messageID))
}

// Replies returns the reply ids of parentID in link order.
func (q queries) Replies(parentID string) ([]string, error) {
	var ids []string
	if err := q.get(keys.GenReplyIndex(parentID), &ids); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return ids, nil
}

// ChannelMessageIDs returns message ids of a channel in ascending ordering
// key. A positive limit keeps only the newest limit ids.
func (q queries) ChannelMessageIDs(cid models.ChannelID, limit int) ([]string, error) {
	var ids []string
	err := q.scanReverse(keys.ChannelMessagesPrefix(cid.String()), func(key, _ []byte) error {
		if limit > 0 && len(ids) >= limit {
			return errStop
		}
		parts, err := keys.ParseChannelMessageIndex(string(key))
		if err != nil {
			return err
		}
		ids = append(ids, parts.MessageID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

// ChannelMessages returns message rows of a channel in ascending ordering key.
func (q queries) ChannelMessages(cid models.ChannelID, limit int) ([]*MessageRow, error) {
	ids, err := q.ChannelMessageIDs(cid, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*MessageRow, 0, len(ids))
	for _, id := range ids {
		row, err := q.Message(id)
		if err != nil {
			return nil, fmt.Errorf("channel %s index points at %s: %w", cid, id, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// LoadLatestReactions returns up to limit reactions of a message, newest first.
func (q queries) LoadLatestReactions(messageID string, limit int) ([]ReactionRow, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := scanRows[ReactionRow](q, keys.ReactionsPrefix(messageID))
	if err != nil {
		return nil, err
	}
	sortNewestFirst(rows)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// LoadReactions returns the reactions userID left on a message, newest
// first. limit <= 0 means uncapped.
func (q queries) LoadReactions(messageID, userID string, limit int) ([]ReactionRow, error) {
	rows, err := scanRows[ReactionRow](q, keys.UserReactionsPrefix(messageID, userID))
	if err != nil {
		return nil, err
	}
	sortNewestFirst(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func sortNewestFirst(rows []ReactionRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
}
