package payload

import "encoding/json"

// UserRequestBody identifies the author of an outbound message.
type UserRequestBody struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	ImageURL  string          `json:"image,omitempty"`
	ExtraData json.RawMessage `json:"-"`
}

func (u UserRequestBody) MarshalJSON() ([]byte, error) {
	type alias UserRequestBody
	return flatten(alias(u), u.ExtraData)
}

// MessageRequestBody is the body of the message create request. Extra data
// members are merged into the top-level object.
type MessageRequestBody struct {
	ID                 string              `json:"id"`
	User               UserRequestBody     `json:"user"`
	Text               string              `json:"text"`
	Command            *string             `json:"command,omitempty"`
	Args               *string             `json:"args,omitempty"`
	ParentID           *string             `json:"parent_id,omitempty"`
	ShowReplyInChannel bool                `json:"show_in_channel,omitempty"`
	Attachments        []AttachmentPayload `json:"attachments"`
	ExtraData          json.RawMessage     `json:"-"`
}

func (b MessageRequestBody) MarshalJSON() ([]byte, error) {
	type alias MessageRequestBody
	if b.Attachments == nil {
		b.Attachments = []AttachmentPayload{}
	}
	return flatten(alias(b), b.ExtraData)
}
