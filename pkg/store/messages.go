package store

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"chatsync/pkg/models"
	"chatsync/pkg/payload"
	"chatsync/pkg/store/keys"
)

// NewMessage describes a message composed locally.
type NewMessage struct {
	Text               string
	Command            *string
	Arguments          *string
	ParentMessageID    *string
	ShowReplyInChannel bool
	Attachments        []models.AttachmentSeed
	ExtraData          json.RawMessage
}

// SaveMessage upserts a server message into cid. Server fields are
// overwritten; local state and the local creation time are kept. Attachments
// are replaced by the payload's list.
func (s *Session) SaveMessage(p payload.MessagePayload, cid models.ChannelID) (*MessageRow, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("save message: %w", ErrMissingID)
	}
	if _, err := s.requireChannel(cid); err != nil {
		return nil, fmt.Errorf("save message %s: %w", p.ID, err)
	}
	row, err := s.Message(p.ID)
	switch {
	case err == nil:
	case IsNotFound(err):
		row = &MessageRow{ID: p.ID}
	default:
		return nil, err
	}
	prevCID := row.CID
	prevParent := row.ParentID

	author, err := s.SaveUser(p.User)
	if err != nil {
		return nil, fmt.Errorf("save message %s author: %w", p.ID, err)
	}
	mentioned, err := s.saveUsers(p.MentionedUsers)
	if err != nil {
		return nil, err
	}
	participants, err := s.saveUsers(p.ThreadParticipants)
	if err != nil {
		return nil, err
	}

	row.CID = cid
	row.Type = p.Type
	row.Text = p.Text
	row.UserID = author.ID
	row.Command = p.Command
	row.Args = p.Args
	row.CreatedAt = p.CreatedAt
	row.UpdatedAt = p.UpdatedAt
	row.DeletedAt = p.DeletedAt
	row.ParentID = p.ParentID
	row.ShowReplyInChannel = p.ShowReplyInChannel
	row.ReplyCount = p.ReplyCount
	row.IsSilent = p.IsSilent
	row.MentionedUserIDs = mentioned
	row.ThreadParticipantIDs = participants
	row.ReactionScores = p.ReactionScores
	row.ExtraData = p.ExtraData

	if err := s.putMessage(row, prevCID); err != nil {
		return nil, err
	}
	if err := s.replaceAttachments(row, prevCID, p.Attachments); err != nil {
		return nil, err
	}
	for _, group := range [][]payload.ReactionPayload{p.LatestReactions, p.OwnReactions} {
		for _, r := range group {
			if r.MessageID == "" {
				r.MessageID = row.ID
			}
			if _, err := s.SaveReaction(r); err != nil {
				return nil, fmt.Errorf("save message %s reactions: %w", row.ID, err)
			}
		}
	}
	if prevParent != nil && (row.ParentID == nil || *row.ParentID != *prevParent) {
		if err := s.unlinkReply(*prevParent, row.ID); err != nil {
			return nil, err
		}
	}
	if row.ParentID != nil {
		if err := s.linkReply(*row.ParentID, row.ID); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// putMessage writes the row and keeps its channel index entry in step with
// the ordering key. prevCID is the channel the row was indexed under, if any.
func (s *Session) putMessage(row *MessageRow, prevCID models.ChannelID) error {
	sortKey := row.SortingKey()
	if !prevCID.IsZero() && (prevCID != row.CID || !row.IndexedSortKey.Equal(sortKey)) {
		if err := s.del("", "", keys.GenChannelMessageIndex(prevCID.String(), row.IndexedSortKey, row.ID)); err != nil {
			return err
		}
	}
	row.IndexedSortKey = sortKey
	if err := s.putIndex(keys.GenChannelMessageIndex(row.CID.String(), sortKey, row.ID)); err != nil {
		return err
	}
	return s.put(EntityMessage, row.ID, keys.GenMessageKey(row.ID), row)
}

// replaceAttachments rewrites the attachments of row positionally. The
// upload state and local file of the previous row at the same index carry
// over to the new row.
func (s *Session) replaceAttachments(row *MessageRow, prevCID models.ChannelID, atts []payload.AttachmentPayload) error {
	prefixes := []string{keys.AttachmentsPrefix(row.CID.String(), row.ID)}
	if !prevCID.IsZero() && prevCID != row.CID {
		prefixes = append(prefixes, keys.AttachmentsPrefix(prevCID.String(), row.ID))
	}
	local := make(map[int]AttachmentRow)
	for _, prefix := range prefixes {
		prev, err := scanRows[AttachmentRow](s.queries, prefix)
		if err != nil {
			return err
		}
		for _, a := range prev {
			if a.LocalState != nil || a.LocalURL != "" {
				local[a.ID.Index] = a
			}
		}
	}
	for _, prefix := range prefixes {
		old, err := s.keysWithPrefix(prefix)
		if err != nil {
			return err
		}
		for _, k := range old {
			parts, err := keys.ParseAttachmentKey(k)
			if err != nil {
				return err
			}
			if err := s.del(EntityAttachment, attachmentChangeID(parts), k); err != nil {
				return err
			}
		}
	}
	for i, a := range atts {
		id := models.AttachmentID{CID: row.CID, MessageID: row.ID, Index: i}
		next := attachmentRowFromPayload(id, a)
		if prev, ok := local[i]; ok {
			next.LocalState = prev.LocalState
			next.LocalURL = prev.LocalURL
		}
		if err := s.putAttachment(next); err != nil {
			return err
		}
	}
	return nil
}

func attachmentChangeID(p *keys.AttachmentKeyParts) string {
	cid, err := models.ParseChannelID(p.CID)
	if err != nil {
		return p.CID + "/" + p.MessageID
	}
	return models.AttachmentID{CID: cid, MessageID: p.MessageID, Index: p.Index}.String()
}

// linkReply appends replyID to the parent's reply index. The parent row need
// not exist: a thread page can arrive before its parent, which then projects
// the replies already linked.
func (s *Session) linkReply(parentID, replyID string) error {
	ids, err := s.Replies(parentID)
	if err != nil {
		return err
	}
	if slices.Contains(ids, replyID) {
		return nil
	}
	ids = append(ids, replyID)
	if err := s.put("", "", keys.GenReplyIndex(parentID), ids); err != nil {
		return err
	}
	s.touch(EntityMessage, parentID)
	return nil
}

func (s *Session) unlinkReply(parentID, replyID string) error {
	ids, err := s.Replies(parentID)
	if err != nil {
		return err
	}
	i := slices.Index(ids, replyID)
	if i < 0 {
		return nil
	}
	ids = slices.Delete(ids, i, i+1)
	key := keys.GenReplyIndex(parentID)
	if len(ids) == 0 {
		err = s.del("", "", key)
	} else {
		err = s.put("", "", key, ids)
	}
	if err != nil {
		return err
	}
	s.touch(EntityMessage, parentID)
	return nil
}

// CreateNewMessage stores a locally composed message authored by the current
// user, pending send.
func (s *Session) CreateNewMessage(cid models.ChannelID, m NewMessage) (*MessageRow, error) {
	cu, err := s.CurrentUser()
	if IsNotFound(err) {
		return nil, ErrCurrentUserDoesNotExist
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.requireChannel(cid); err != nil {
		return nil, err
	}

	now := s.db.now()
	typ := models.MessageTypeRegular
	if m.ParentMessageID != nil {
		typ = models.MessageTypeReply
	}
	row := &MessageRow{
		ID:                 uuid.NewString(),
		CID:                cid,
		Type:               typ,
		Text:               m.Text,
		UserID:             cu.UserID,
		Command:            m.Command,
		Args:               m.Arguments,
		CreatedAt:          now,
		LocallyCreatedAt:   &now,
		UpdatedAt:          now,
		ParentID:           m.ParentMessageID,
		ShowReplyInChannel: m.ShowReplyInChannel,
		ReactionScores:     map[string]int{},
		ExtraData:          m.ExtraData,
		LocalState:         models.MessagePendingSend.StatePtr(),
	}
	if err := s.putMessage(row, models.ChannelID{}); err != nil {
		return nil, err
	}
	for i, seed := range m.Attachments {
		id := models.AttachmentID{CID: cid, MessageID: row.ID, Index: i}
		if _, err := s.CreateNewAttachment(seed, id); err != nil {
			return nil, err
		}
	}
	if row.ParentID != nil {
		if err := s.linkReply(*row.ParentID, row.ID); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// DeleteMessage removes a message with its attachments and reactions. Replies
// and the parent stay; the message leaves its parent's reply list.
func (s *Session) DeleteMessage(id string) error {
	row, err := s.Message(id)
	if IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrMessageDoesNotExist, id)
	}
	if err != nil {
		return err
	}
	if err := s.replaceAttachments(row, models.ChannelID{}, nil); err != nil {
		return err
	}
	reactions, err := scanRows[ReactionRow](s.queries, keys.ReactionsPrefix(id))
	if err != nil {
		return err
	}
	for _, r := range reactions {
		if err := s.DeleteReaction(r.MessageID, r.UserID, r.Type); err != nil {
			return err
		}
	}
	if err := s.del("", "", keys.GenChannelMessageIndex(row.CID.String(), row.IndexedSortKey, row.ID)); err != nil {
		return err
	}
	if row.ParentID != nil {
		if err := s.unlinkReply(*row.ParentID, row.ID); err != nil {
			return err
		}
	}
	if err := s.del("", "", keys.GenReplyIndex(row.ID)); err != nil {
		return err
	}
	return s.del(EntityMessage, row.ID, keys.GenMessageKey(row.ID))
}

// UpdateMessage applies fn to a stored message and writes it back.
func (s *Session) UpdateMessage(id string, fn func(*MessageRow)) (*MessageRow, error) {
	row, err := s.Message(id)
	if IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrMessageDoesNotExist, id)
	}
	if err != nil {
		return nil, err
	}
	prevCID := row.CID
	fn(row)
	row.ID = id
	if row.CID != prevCID {
		return nil, fmt.Errorf("update message %s: channel cannot change", id)
	}
	if err := s.putMessage(row, prevCID); err != nil {
		return nil, err
	}
	return row, nil
}

// SetMessageLocalState sets or, with nil, clears the local state.
func (s *Session) SetMessageLocalState(id string, state *models.LocalMessageState) error {
	_, err := s.UpdateMessage(id, func(r *MessageRow) { r.LocalState = state })
	return err
}
