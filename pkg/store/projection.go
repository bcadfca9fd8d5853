package store

import (
	"fmt"
	"maps"

	"chatsync/pkg/models"
)

// MessageModel projects a stored message and its related rows into an
// immutable snapshot.
func (q queries) MessageModel(id string) (*models.ChatMessage, error) {
	row, err := q.Message(id)
	if err != nil {
		return nil, err
	}
	return q.messageModel(row)
}

func (q queries) messageModel(row *MessageRow) (*models.ChatMessage, error) {
	m := &models.ChatMessage{
		ID:                 row.ID,
		CID:                row.CID,
		Type:               row.Type,
		Text:               row.Text,
		Command:            row.Command,
		Arguments:          row.Args,
		CreatedAt:          row.CreatedAt,
		LocallyCreatedAt:   row.LocallyCreatedAt,
		UpdatedAt:          row.UpdatedAt,
		DeletedAt:          row.DeletedAt,
		ParentMessageID:    row.ParentID,
		ShowReplyInChannel: row.ShowReplyInChannel,
		ReplyCount:         row.ReplyCount,
		IsSilent:           row.IsSilent,
		ExtraData:          row.ExtraData,
		ReactionScores:     maps.Clone(row.ReactionScores),
		LocalState:         row.LocalState,
	}
	if m.ReactionScores == nil {
		m.ReactionScores = map[string]int{}
	}

	var err error
	if m.Author, err = q.userModel(row.UserID); err != nil {
		return nil, err
	}
	if m.MentionedUsers, err = q.userModels(row.MentionedUserIDs); err != nil {
		return nil, err
	}
	if m.ThreadParticipants, err = q.userModels(row.ThreadParticipantIDs); err != nil {
		return nil, err
	}
	if m.ReplyIDs, err = q.Replies(row.ID); err != nil {
		return nil, err
	}

	latest, err := q.LoadLatestReactions(row.ID, q.opts.LatestReactionsLimit)
	if err != nil {
		return nil, err
	}
	if m.LatestReactions, err = q.reactionModels(latest); err != nil {
		return nil, err
	}
	cu, err := q.CurrentUser()
	switch {
	case err == nil:
		own, err := q.LoadReactions(row.ID, cu.UserID, 0)
		if err != nil {
			return nil, err
		}
		if m.CurrentUserReactions, err = q.reactionModels(own); err != nil {
			return nil, err
		}
	case !IsNotFound(err):
		return nil, err
	}

	atts, err := q.attachmentsOf(row.CID, row.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range atts {
		m.Attachments = append(m.Attachments, attachmentModel(a))
	}
	return m, nil
}

// userModel resolves a user id. A user without a row projects to its id alone.
func (q queries) userModel(id string) (models.ChatUser, error) {
	row, err := q.User(id)
	if IsNotFound(err) {
		return models.ChatUser{ID: id}, nil
	}
	if err != nil {
		return models.ChatUser{}, err
	}
	return models.ChatUser{
		ID:           row.ID,
		Name:         row.Name,
		ImageURL:     row.ImageURL,
		Role:         row.Role,
		IsOnline:     row.IsOnline,
		IsBanned:     row.IsBanned,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastActiveAt: row.LastActiveAt,
		ExtraData:    row.ExtraData,
	}, nil
}

func (q queries) userModels(ids []string) ([]models.ChatUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]models.ChatUser, 0, len(ids))
	for _, id := range ids {
		u, err := q.userModel(id)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (q queries) reactionModels(rows []ReactionRow) ([]models.ChatMessageReaction, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]models.ChatMessageReaction, 0, len(rows))
	for _, r := range rows {
		author, err := q.userModel(r.UserID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.ChatMessageReaction{
			MessageID: r.MessageID,
			Type:      r.Type,
			Score:     r.Score,
			Author:    author,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			ExtraData: r.ExtraData,
		})
	}
	return out, nil
}

func attachmentModel(a AttachmentRow) models.ChatMessageAttachment {
	return models.ChatMessageAttachment{
		ID:         a.ID,
		Type:       a.Type,
		Title:      a.Title,
		Author:     a.Author,
		Text:       a.Text,
		URL:        a.URL,
		ImageURL:   a.ImageURL,
		LocalURL:   a.LocalURL,
		File:       a.File,
		Actions:    a.Actions,
		LocalState: a.LocalState,
		ExtraData:  a.ExtraData,
	}
}

// ChannelMessageModels projects the newest limit messages of a channel in
// ascending order. limit <= 0 returns all of them.
func (q queries) ChannelMessageModels(cid models.ChannelID, limit int) ([]*models.ChatMessage, error) {
	rows, err := q.ChannelMessages(cid, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ChatMessage, 0, len(rows))
	for _, r := range rows {
		m, err := q.messageModel(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (q queries) ChannelModel(cid models.ChannelID) (*models.ChatChannel, error) {
	row, err := q.Channel(cid)
	if err != nil {
		return nil, err
	}
	ch := &models.ChatChannel{
		CID:           row.CID,
		Name:          row.Name,
		ImageURL:      row.ImageURL,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		DeletedAt:     row.DeletedAt,
		TruncatedAt:   row.TruncatedAt,
		LastMessageAt: row.LastMessageAt,
		IsFrozen:      row.IsFrozen,
		MemberCount:   row.MemberCount,
		WatcherCount:  row.WatcherCount,
		ExtraData:     row.ExtraData,
	}
	if row.CreatedByID != "" {
		u, err := q.userModel(row.CreatedByID)
		if err != nil {
			return nil, err
		}
		ch.CreatedBy = &u
	}

	members, err := q.Members(cid)
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", cid, err)
	}
	for _, mr := range members {
		u, err := q.userModel(mr.UserID)
		if err != nil {
			return nil, err
		}
		ch.Members = append(ch.Members, models.ChatChannelMember{
			ChatUser:         u,
			MemberRole:       mr.Role,
			MemberCreatedAt:  mr.CreatedAt,
			MemberUpdatedAt:  mr.UpdatedAt,
			IsInvited:        mr.IsInvited,
			InviteAcceptedAt: mr.InviteAcceptedAt,
			InviteRejectedAt: mr.InviteRejectedAt,
		})
	}

	reads, err := q.Reads(cid)
	if err != nil {
		return nil, fmt.Errorf("reads of %s: %w", cid, err)
	}
	for _, rr := range reads {
		u, err := q.userModel(rr.UserID)
		if err != nil {
			return nil, err
		}
		ch.Reads = append(ch.Reads, models.ChatChannelRead{
			User:        u,
			LastReadAt:  rr.LastReadAt,
			UnreadCount: rr.UnreadMessagesCount,
		})
	}
	return ch, nil
}

func (q queries) CurrentUserModel() (*models.CurrentChatUser, error) {
	cu, err := q.CurrentUser()
	if err != nil {
		return nil, err
	}
	u, err := q.userModel(cu.UserID)
	if err != nil {
		return nil, err
	}
	return &models.CurrentChatUser{
		ChatUser:            u,
		UnreadMessagesCount: cu.UnreadMessagesCount,
		UnreadChannelsCount: cu.UnreadChannelsCount,
	}, nil
}
