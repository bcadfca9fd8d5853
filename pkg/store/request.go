package store

import (
	"chatsync/pkg/payload"
)

// MessageRequestBody builds the body that sends a stored message to the server.
func (q queries) MessageRequestBody(id string) (*payload.MessageRequestBody, error) {
	row, err := q.Message(id)
	if err != nil {
		return nil, err
	}
	author, err := q.userModel(row.UserID)
	if err != nil {
		return nil, err
	}
	atts, err := q.attachmentsOf(row.CID, row.ID)
	if err != nil {
		return nil, err
	}

	body := &payload.MessageRequestBody{
		ID: row.ID,
		User: payload.UserRequestBody{
			ID:        author.ID,
			Name:      author.Name,
			ImageURL:  author.ImageURL,
			ExtraData: author.ExtraData,
		},
		Text:               row.Text,
		Command:            row.Command,
		Args:               row.Args,
		ParentID:           row.ParentID,
		ShowReplyInChannel: row.ShowReplyInChannel,
		ExtraData:          row.ExtraData,
	}
	for _, a := range atts {
		body.Attachments = append(body.Attachments, payload.AttachmentPayload{
			Type:     a.Type,
			Title:    a.Title,
			URL:      a.URL,
			ImageURL: a.ImageURL,
		})
	}
	return body, nil
}
