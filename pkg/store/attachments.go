package store

import (
	"fmt"

	"chatsync/pkg/models"
	"chatsync/pkg/payload"
	"chatsync/pkg/store/keys"
)

func attachmentRowFromPayload(id models.AttachmentID, a payload.AttachmentPayload) *AttachmentRow {
	return &AttachmentRow{
		ID:        id,
		Type:      a.Type,
		Title:     a.Title,
		Author:    a.Author,
		Text:      a.Text,
		URL:       a.URL,
		ImageURL:  a.ImageURL,
		File:      a.File,
		Actions:   a.Actions,
		ExtraData: a.ExtraData,
	}
}

func (s *Session) putAttachment(row *AttachmentRow) error {
	key := keys.GenAttachmentKey(row.ID.CID.String(), row.ID.MessageID, row.ID.Index)
	return s.put(EntityAttachment, row.ID.String(), key, row)
}

// CreateNewAttachment stores a locally picked file as a pending upload of an
// existing message.
func (s *Session) CreateNewAttachment(seed models.AttachmentSeed, id models.AttachmentID) (*AttachmentRow, error) {
	msg, err := s.Message(id.MessageID)
	if IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrMessageDoesNotExist, id.MessageID)
	}
	if err != nil {
		return nil, err
	}
	if msg.CID != id.CID {
		return nil, fmt.Errorf("attachment %s: message %s belongs to %s", id, msg.ID, msg.CID)
	}

	typ := seed.Type
	if typ == "" {
		typ = models.AttachmentTypeFile
		if isImageMime(seed.MimeType) {
			typ = models.AttachmentTypeImage
		}
	}
	row := &AttachmentRow{
		ID:         id,
		Type:       typ,
		Title:      seed.FileName,
		LocalURL:   seed.LocalURL,
		LocalState: statePtr(models.AttachmentPendingUpload),
		ExtraData:  seed.ExtraData,
	}
	if seed.MimeType != "" || seed.FileSize > 0 {
		row.File = &models.AttachmentFile{
			Type:     models.FileTypeForMime(seed.MimeType),
			Size:     seed.FileSize,
			MimeType: seed.MimeType,
		}
	}
	if err := s.putAttachment(row); err != nil {
		return nil, err
	}
	return row, nil
}

func isImageMime(mime string) bool {
	switch models.FileTypeForMime(mime) {
	case models.FileTypeJPEG, models.FileTypePNG, models.FileTypeGIF:
		return true
	}
	return false
}

func statePtr(s models.AttachmentLocalState) *models.AttachmentLocalState { return &s }

// UpdateAttachment applies fn to a stored attachment and writes it back.
func (s *Session) UpdateAttachment(id models.AttachmentID, fn func(*AttachmentRow)) (*AttachmentRow, error) {
	row, err := s.Attachment(id)
	if err != nil {
		return nil, fmt.Errorf("attachment %s: %w", id, err)
	}
	fn(row)
	row.ID = id
	if err := s.putAttachment(row); err != nil {
		return nil, err
	}
	return row, nil
}

// SetAttachmentLocalState sets or, with nil, clears the upload state.
func (s *Session) SetAttachmentLocalState(id models.AttachmentID, state *models.AttachmentLocalState) error {
	_, err := s.UpdateAttachment(id, func(r *AttachmentRow) { r.LocalState = state })
	return err
}
