package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/pkg/models"
	"chatsync/pkg/payload"
)

func strPtr(s string) *string { return &s }

func TestSaveMessageRequiresChannel(t *testing.T) {
	db := newTestDB(t)
	err := db.Write(t.Context(), func(s *Session) error {
		_, err := s.SaveMessage(messagePayload("m1", "u1", t0), general)
		return err
	})
	assert.ErrorIs(t, err, ErrChannelDoesNotExist)
}

func TestSaveMessageKeepsLocalState(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)
	saveMessage(t, db, messagePayload("m1", "u1", t0))

	write(t, db, func(s *Session) error {
		return s.SetMessageLocalState("m1", models.MessageSyncing.StatePtr())
	})

	edited := messagePayload("m1", "u1", t0)
	edited.Text = "edited"
	edited.UpdatedAt = t0.Add(time.Minute)
	saveMessage(t, db, edited)

	read(t, db, func(r *ReadSession) error {
		row, err := r.Message("m1")
		require.NoError(t, err)
		assert.Equal(t, "edited", row.Text)
		assert.True(t, row.UpdatedAt.Equal(t0.Add(time.Minute)))
		require.NotNil(t, row.LocalState)
		assert.Equal(t, models.MessageSyncing, *row.LocalState)
		return nil
	})

	write(t, db, func(s *Session) error { return s.SetMessageLocalState("m1", nil) })
	read(t, db, func(r *ReadSession) error {
		m, err := r.MessageModel("m1")
		require.NoError(t, err)
		assert.Nil(t, m.LocalState)
		return nil
	})
}

func TestOrderingKey(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)
	seedCurrentUser(t, db, "me")
	saveMessage(t, db, messagePayload("old", "u1", t0))
	saveMessage(t, db, messagePayload("mid", "u1", t0.Add(30*time.Minute)))

	var localID string
	write(t, db, func(s *Session) error {
		row, err := s.CreateNewMessage(general, NewMessage{Text: "local"})
		if err != nil {
			return err
		}
		localID = row.ID
		return nil
	})

	ids := func() []string {
		var out []string
		read(t, db, func(r *ReadSession) error {
			var err error
			out, err = r.ChannelMessageIDs(general, 0)
			return err
		})
		return out
	}
	assert.Equal(t, []string{"old", "mid", localID}, ids())

	// the server stamps the sent message later; the local key still wins
	confirmed := messagePayload(localID, "me", t0.Add(2*time.Hour))
	saveMessage(t, db, confirmed)
	read(t, db, func(r *ReadSession) error {
		row, err := r.Message(localID)
		require.NoError(t, err)
		require.NotNil(t, row.LocallyCreatedAt)
		assert.True(t, row.SortingKey().Equal(localT))
		assert.True(t, row.CreatedAt.Equal(t0.Add(2*time.Hour)))

		m, err := r.MessageModel("old")
		require.NoError(t, err)
		assert.Nil(t, m.LocallyCreatedAt)
		assert.True(t, m.SortingKey().Equal(t0))
		return nil
	})
	assert.Equal(t, []string{"old", "mid", localID}, ids())

	// a changed server timestamp moves the index entry instead of duplicating it
	saveMessage(t, db, messagePayload("old", "u1", t0.Add(3*time.Hour)))
	assert.Equal(t, []string{"mid", localID, "old"}, ids())

	read(t, db, func(r *ReadSession) error {
		latest, err := r.ChannelMessageIDs(general, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{localID, "old"}, latest)
		return nil
	})
}

func TestReplyLinkedOnce(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)
	saveMessage(t, db, messagePayload("parent", "u1", t0))

	reply := messagePayload("reply", "u2", t0.Add(time.Minute))
	reply.ParentID = strPtr("parent")
	for i := 0; i < 3; i++ {
		saveMessage(t, db, reply)
	}

	read(t, db, func(r *ReadSession) error {
		ids, err := r.Replies("parent")
		require.NoError(t, err)
		assert.Equal(t, []string{"reply"}, ids)

		m, err := r.MessageModel("parent")
		require.NoError(t, err)
		assert.Equal(t, []string{"reply"}, m.ReplyIDs)

		rm, err := r.MessageModel("reply")
		require.NoError(t, err)
		assert.True(t, rm.IsReply())
		return nil
	})
}

func TestDeleteMessageCascades(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)

	parent := messagePayload("parent", "u1", t0)
	parent.Attachments = []payload.AttachmentPayload{
		{Type: models.AttachmentTypeImage, ImageURL: "https://cdn/a.png"},
		{Type: models.AttachmentTypeLink, URL: "https://example.com"},
	}
	parent.LatestReactions = []payload.ReactionPayload{
		{Type: "like", Score: 1, MessageID: "parent", User: userPayload("u2"), CreatedAt: t0},
	}
	saveMessage(t, db, parent)

	reply := messagePayload("reply", "u2", t0.Add(time.Minute))
	reply.ParentID = strPtr("parent")
	saveMessage(t, db, reply)

	read(t, db, func(r *ReadSession) error {
		atts, err := r.Attachments("parent")
		require.NoError(t, err)
		assert.Len(t, atts, 2)
		return nil
	})

	write(t, db, func(s *Session) error { return s.DeleteMessage("parent") })

	read(t, db, func(r *ReadSession) error {
		_, err := r.Message("parent")
		assert.True(t, IsNotFound(err))

		atts, err := r.attachmentsOf(general, "parent")
		require.NoError(t, err)
		assert.Empty(t, atts)

		reactions, err := r.LoadLatestReactions("parent", 10)
		require.NoError(t, err)
		assert.Empty(t, reactions)

		kept, err := r.Message("reply")
		require.NoError(t, err)
		assert.Equal(t, "parent", *kept.ParentID)

		ids, err := r.ChannelMessageIDs(general, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"reply"}, ids)

		replies, err := r.Replies("parent")
		require.NoError(t, err)
		assert.Empty(t, replies)

		_, err = r.User("u2")
		assert.NoError(t, err, "users outlive their messages")
		return nil
	})

	err := db.Write(t.Context(), func(s *Session) error { return s.DeleteMessage("parent") })
	assert.ErrorIs(t, err, ErrMessageDoesNotExist)
}

func TestDeleteReplyUnlinksFromParent(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)
	saveMessage(t, db, messagePayload("parent", "u1", t0))
	for _, id := range []string{"r1", "r2"} {
		p := messagePayload(id, "u2", t0.Add(time.Minute))
		p.ParentID = strPtr("parent")
		saveMessage(t, db, p)
	}

	write(t, db, func(s *Session) error { return s.DeleteMessage("r1") })
	read(t, db, func(r *ReadSession) error {
		ids, err := r.Replies("parent")
		require.NoError(t, err)
		assert.Equal(t, []string{"r2"}, ids)
		return nil
	})
}

func TestReplyMovesBetweenParents(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)
	saveMessage(t, db, messagePayload("p1", "u1", t0))
	saveMessage(t, db, messagePayload("p2", "u1", t0))

	reply := messagePayload("r", "u2", t0.Add(time.Minute))
	reply.ParentID = strPtr("p1")
	saveMessage(t, db, reply)

	replies := func(parent string) []string {
		var ids []string
		read(t, db, func(r *ReadSession) error {
			var err error
			ids, err = r.Replies(parent)
			return err
		})
		return ids
	}

	reply.ParentID = strPtr("p2")
	saveMessage(t, db, reply)
	assert.NotContains(t, replies("p1"), "r")
	assert.Equal(t, []string{"r"}, replies("p2"))

	reply.ParentID = nil
	saveMessage(t, db, reply)
	assert.Empty(t, replies("p1"))
	assert.Empty(t, replies("p2"))
}

func TestReplySavedBeforeParent(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)

	reply := messagePayload("r", "u2", t0.Add(time.Minute))
	reply.ParentID = strPtr("parent")
	saveMessage(t, db, reply)
	saveMessage(t, db, messagePayload("parent", "u1", t0))

	read(t, db, func(r *ReadSession) error {
		m, err := r.MessageModel("parent")
		require.NoError(t, err)
		assert.Equal(t, []string{"r"}, m.ReplyIDs)
		return nil
	})

	// deleting the parent drops its index; replies stay intact
	write(t, db, func(s *Session) error { return s.DeleteMessage("parent") })
	read(t, db, func(r *ReadSession) error {
		ids, err := r.Replies("parent")
		require.NoError(t, err)
		assert.Empty(t, ids)
		row, err := r.Message("r")
		require.NoError(t, err)
		assert.Equal(t, "parent", *row.ParentID)
		return nil
	})
}

func TestAttachmentsReplacedPositionally(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)

	p := messagePayload("m1", "u1", t0)
	p.Attachments = []payload.AttachmentPayload{
		{Type: models.AttachmentTypeImage, ImageURL: "https://cdn/0.png"},
		{Type: models.AttachmentTypeImage, ImageURL: "https://cdn/1.png"},
		{Type: models.AttachmentTypeImage, ImageURL: "https://cdn/2.png"},
	}
	saveMessage(t, db, p)

	p.Attachments = []payload.AttachmentPayload{
		{Type: models.AttachmentTypeFile, URL: "https://cdn/doc.pdf", Title: "doc.pdf"},
	}
	saveMessage(t, db, p)

	read(t, db, func(r *ReadSession) error {
		m, err := r.MessageModel("m1")
		require.NoError(t, err)
		require.Len(t, m.Attachments, 1)
		assert.Equal(t, models.AttachmentID{CID: general, MessageID: "m1", Index: 0}, m.Attachments[0].ID)
		assert.Equal(t, "doc.pdf", m.Attachments[0].Title)
		return nil
	})
}

func TestResaveKeepsAttachmentUploadState(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)
	seedCurrentUser(t, db, "me")

	var id string
	write(t, db, func(s *Session) error {
		row, err := s.CreateNewMessage(general, NewMessage{
			Text: "cat",
			Attachments: []models.AttachmentSeed{
				{LocalURL: "file:///tmp/cat.png", FileName: "cat.png", MimeType: "image/png", FileSize: 2048},
			},
		})
		if err != nil {
			return err
		}
		id = row.ID
		return nil
	})

	// the realtime echo arrives before the send response
	echo := messagePayload(id, "me", t0)
	echo.Attachments = []payload.AttachmentPayload{
		{Type: models.AttachmentTypeImage, ImageURL: "https://cdn/cat.png", Title: "cat.png"},
		{Type: models.AttachmentTypeLink, URL: "https://example.com"},
	}
	saveMessage(t, db, echo)

	read(t, db, func(r *ReadSession) error {
		row, err := r.Message(id)
		require.NoError(t, err)
		require.NotNil(t, row.LocalState)
		assert.Equal(t, models.MessagePendingSend, *row.LocalState)

		first, err := r.Attachment(models.AttachmentID{CID: general, MessageID: id, Index: 0})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/cat.png", first.ImageURL)
		require.NotNil(t, first.LocalState)
		assert.Equal(t, models.AttachmentPendingUpload, *first.LocalState)
		assert.Equal(t, "file:///tmp/cat.png", first.LocalURL)

		second, err := r.Attachment(models.AttachmentID{CID: general, MessageID: id, Index: 1})
		require.NoError(t, err)
		assert.Nil(t, second.LocalState)
		assert.Empty(t, second.LocalURL)
		return nil
	})
}

func TestCreateNewMessage(t *testing.T) {
	t.Run("without current user", func(t *testing.T) {
		db := newTestDB(t)
		seedChannel(t, db, general)
		err := db.Write(t.Context(), func(s *Session) error {
			_, err := s.CreateNewMessage(general, NewMessage{Text: "hi"})
			return err
		})
		assert.ErrorIs(t, err, ErrCurrentUserDoesNotExist)
	})

	t.Run("without channel", func(t *testing.T) {
		db := newTestDB(t)
		seedCurrentUser(t, db, "me")
		err := db.Write(t.Context(), func(s *Session) error {
			_, err := s.CreateNewMessage(general, NewMessage{Text: "hi"})
			return err
		})
		assert.ErrorIs(t, err, ErrChannelDoesNotExist)
	})

	t.Run("created pending send", func(t *testing.T) {
		db := newTestDB(t)
		seedChannel(t, db, general)
		seedCurrentUser(t, db, "me")
		saveMessage(t, db, messagePayload("parent", "u1", t0))

		var row *MessageRow
		write(t, db, func(s *Session) error {
			var err error
			row, err = s.CreateNewMessage(general, NewMessage{
				Text:            "look",
				ParentMessageID: strPtr("parent"),
				ExtraData:       json.RawMessage(`{"mood":"sunny"}`),
				Attachments: []models.AttachmentSeed{
					{LocalURL: "file:///tmp/cat.png", FileName: "cat.png", MimeType: "image/png", FileSize: 2048},
					{LocalURL: "file:///tmp/report.pdf", FileName: "report.pdf", MimeType: "application/pdf", FileSize: 1 << 20},
				},
			})
			return err
		})

		_, err := uuid.Parse(row.ID)
		require.NoError(t, err)
		require.NotNil(t, row.LocallyCreatedAt)
		assert.True(t, row.CreatedAt.Equal(*row.LocallyCreatedAt))
		assert.True(t, row.UpdatedAt.Equal(localT))
		assert.Equal(t, models.MessageTypeReply, row.Type)

		read(t, db, func(r *ReadSession) error {
			m, err := r.MessageModel(row.ID)
			require.NoError(t, err)
			require.NotNil(t, m.LocalState)
			assert.Equal(t, models.MessagePendingSend, *m.LocalState)
			assert.Equal(t, "me", m.Author.ID)
			assert.True(t, m.CreatedAt.Equal(*m.LocallyCreatedAt))

			require.Len(t, m.Attachments, 2)
			for i, a := range m.Attachments {
				assert.Equal(t, i, a.ID.Index)
				require.NotNil(t, a.LocalState)
				assert.Equal(t, models.AttachmentPendingUpload, *a.LocalState)
			}
			assert.Equal(t, models.AttachmentTypeImage, m.Attachments[0].Type)
			assert.Equal(t, "cat.png", m.Attachments[0].Title)
			assert.Equal(t, models.AttachmentTypeFile, m.Attachments[1].Type)
			require.NotNil(t, m.Attachments[1].File)
			assert.Equal(t, models.FileTypePDF, m.Attachments[1].File.Type)

			replies, err := r.Replies("parent")
			require.NoError(t, err)
			assert.Equal(t, []string{row.ID}, replies)
			return nil
		})
	})
}

func TestAttachmentLocalState(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)
	seedCurrentUser(t, db, "me")

	var id models.AttachmentID
	write(t, db, func(s *Session) error {
		row, err := s.CreateNewMessage(general, NewMessage{
			Attachments: []models.AttachmentSeed{{LocalURL: "file:///a.txt", FileName: "a.txt"}},
		})
		if err != nil {
			return err
		}
		id = models.AttachmentID{CID: general, MessageID: row.ID, Index: 0}
		uploading := models.AttachmentUploading
		return s.SetAttachmentLocalState(id, &uploading)
	})
	read(t, db, func(r *ReadSession) error {
		a, err := r.Attachment(id)
		require.NoError(t, err)
		assert.Equal(t, models.AttachmentUploading, *a.LocalState)
		return nil
	})

	err := db.Write(t.Context(), func(s *Session) error {
		_, err := s.CreateNewAttachment(models.AttachmentSeed{FileName: "x"}, models.AttachmentID{CID: general, MessageID: "missing"})
		return err
	})
	assert.ErrorIs(t, err, ErrMessageDoesNotExist)
}

func TestMessageRequestBody(t *testing.T) {
	db := newTestDB(t)
	seedChannel(t, db, general)
	seedCurrentUser(t, db, "me")

	var id string
	write(t, db, func(s *Session) error {
		row, err := s.CreateNewMessage(general, NewMessage{
			Text:      "hello",
			ExtraData: json.RawMessage(`{"priority":"high"}`),
		})
		if err != nil {
			return err
		}
		id = row.ID
		_, err = s.UpdateAttachment(models.AttachmentID{}, func(*AttachmentRow) {})
		assert.True(t, IsNotFound(err))
		return nil
	})

	read(t, db, func(r *ReadSession) error {
		body, err := r.MessageRequestBody(id)
		require.NoError(t, err)
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"id": "`+id+`",
			"user": {"id": "me", "name": "name-me"},
			"text": "hello",
			"attachments": [],
			"priority": "high"
		}`, string(raw))
		return nil
	})
}
