package store

import (
	"fmt"
	"time"

	"chatsync/pkg/models"
	"chatsync/pkg/payload"
	"chatsync/pkg/store/keys"
)

// SaveChannelDetail upserts the channel row. Watcher count survives, it only
// arrives with full channel payloads.
func (s *Session) SaveChannelDetail(p payload.ChannelDetailPayload) (*ChannelRow, error) {
	if p.CID.IsZero() {
		return nil, fmt.Errorf("save channel: %w", ErrMissingID)
	}
	row, err := s.Channel(p.CID)
	switch {
	case err == nil:
	case IsNotFound(err):
		row = &ChannelRow{CID: p.CID}
	default:
		return nil, err
	}

	var createdBy string
	if p.CreatedBy != nil {
		u, err := s.SaveUser(*p.CreatedBy)
		if err != nil {
			return nil, fmt.Errorf("save channel %s creator: %w", p.CID, err)
		}
		createdBy = u.ID
	}

	row.Name = p.Name
	row.ImageURL = p.ImageURL
	row.CreatedAt = p.CreatedAt
	row.UpdatedAt = p.UpdatedAt
	row.DeletedAt = p.DeletedAt
	row.LastMessageAt = p.LastMessageAt
	row.TruncatedAt = p.TruncatedAt
	row.CreatedByID = createdBy
	row.IsFrozen = p.IsFrozen
	row.MemberCount = p.MemberCount
	row.Team = p.Team
	row.ExtraData = p.ExtraData

	if err := s.putChannel(row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Session) putChannel(row *ChannelRow) error {
	cid := row.CID.String()
	return s.put(EntityChannel, cid, keys.GenChannelKey(cid), row)
}

// SaveChannel upserts a full channel payload: the channel row, watchers,
// members, read states and messages.
func (s *Session) SaveChannel(p payload.ChannelPayload) (*ChannelRow, error) {
	row, err := s.SaveChannelDetail(p.Channel)
	if err != nil {
		return nil, err
	}
	row.WatcherCount = p.WatcherCount
	if err := s.putChannel(row); err != nil {
		return nil, err
	}
	if _, err := s.saveUsers(p.Watchers); err != nil {
		return nil, fmt.Errorf("save channel %s watchers: %w", row.CID, err)
	}
	for _, m := range p.Members {
		if _, err := s.SaveMember(m, row.CID); err != nil {
			return nil, err
		}
	}
	for _, r := range p.Reads {
		if _, err := s.SaveChannelRead(r, row.CID); err != nil {
			return nil, err
		}
	}
	for _, m := range p.Messages {
		if _, err := s.SaveMessage(m, row.CID); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func (s *Session) requireChannel(cid models.ChannelID) (*ChannelRow, error) {
	row, err := s.Channel(cid)
	if IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrChannelDoesNotExist, cid)
	}
	return row, err
}

// SaveMember upserts a channel member and its user.
func (s *Session) SaveMember(p payload.MemberPayload, cid models.ChannelID) (*MemberRow, error) {
	if _, err := s.requireChannel(cid); err != nil {
		return nil, err
	}
	userID := p.MemberUserID()
	if userID == "" {
		return nil, fmt.Errorf("save member of %s: %w", cid, ErrMissingID)
	}
	if p.User != nil {
		if _, err := s.SaveUser(*p.User); err != nil {
			return nil, err
		}
	}
	row := &MemberRow{
		CID:              cid,
		UserID:           userID,
		Role:             p.Role,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		IsInvited:        p.IsInvited,
		InviteAcceptedAt: p.InviteAcceptedAt,
		InviteRejectedAt: p.InviteRejectedAt,
	}
	if err := s.put(EntityMember, memberID(cid, userID), keys.GenMemberKey(cid.String(), userID), row); err != nil {
		return nil, err
	}
	return row, nil
}

// DeleteMember removes a membership. The user row stays.
func (s *Session) DeleteMember(cid models.ChannelID, userID string) error {
	return s.del(EntityMember, memberID(cid, userID), keys.GenMemberKey(cid.String(), userID))
}

func memberID(cid models.ChannelID, userID string) string {
	return cid.String() + "/" + userID
}

// SaveChannelRead upserts the read watermark of one user in a channel.
func (s *Session) SaveChannelRead(p payload.ChannelReadPayload, cid models.ChannelID) (*ReadRow, error) {
	if _, err := s.requireChannel(cid); err != nil {
		return nil, err
	}
	user, err := s.SaveUser(p.User)
	if err != nil {
		return nil, fmt.Errorf("save read of %s: %w", cid, err)
	}
	row := &ReadRow{
		CID:                 cid,
		UserID:              user.ID,
		LastReadAt:          p.LastReadAt,
		UnreadMessagesCount: p.UnreadMessagesCount,
	}
	if err := s.put(EntityRead, memberID(cid, user.ID), keys.GenReadKey(cid.String(), user.ID), row); err != nil {
		return nil, err
	}
	return row, nil
}

// DeleteChannel removes a channel with its members, reads and messages.
func (s *Session) DeleteChannel(cid models.ChannelID) error {
	if _, err := s.requireChannel(cid); err != nil {
		return err
	}
	ids, err := s.ChannelMessageIDs(cid, 0)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.DeleteMessage(id); err != nil {
			return err
		}
	}
	members, err := s.Members(cid)
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := s.DeleteMember(cid, m.UserID); err != nil {
			return err
		}
	}
	reads, err := s.Reads(cid)
	if err != nil {
		return err
	}
	for _, r := range reads {
		if err := s.del(EntityRead, memberID(cid, r.UserID), keys.GenReadKey(cid.String(), r.UserID)); err != nil {
			return err
		}
	}
	return s.del(EntityChannel, cid.String(), keys.GenChannelKey(cid.String()))
}

// TruncateChannel removes every confirmed message ordered at or before at.
// Messages with a local state are kept. It returns the number removed.
func (s *Session) TruncateChannel(cid models.ChannelID, at time.Time) (int, error) {
	row, err := s.requireChannel(cid)
	if err != nil {
		return 0, err
	}
	msgs, err := s.ChannelMessages(cid, 0)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range msgs {
		if m.SortingKey().After(at) {
			break
		}
		if m.LocalState != nil {
			continue
		}
		if err := s.DeleteMessage(m.ID); err != nil {
			return removed, err
		}
		removed++
	}
	row.TruncatedAt = &at
	if err := s.putChannel(row); err != nil {
		return removed, err
	}
	return removed, nil
}
