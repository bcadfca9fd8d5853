package payload

import (
	"encoding/json"
	"net/url"
	"strings"

	"chatsync/pkg/models"
)

var attachmentKeys = newKeySet(
	"type", "title", "fallback", "name", "image", "image_url", "thumb_url",
	"asset_url", "url", "title_link", "og_scrape_url", "author_name", "text",
	"mime_type", "file_size", "actions",
)

// AttachmentPayload is an attachment as received from the backend. Decoding
// resolves the alternate field names the backend has used over time.
type AttachmentPayload struct {
	Type     models.AttachmentType
	Title    string
	Author   string
	Text     string
	URL      string
	ImageURL string
	File     *models.AttachmentFile
	Actions  []models.AttachmentAction
	// ExtraData holds the unrecognized members of the attachment object.
	ExtraData json.RawMessage
}

type attachmentWire struct {
	Type        json.RawMessage `json:"type"`
	Title       *string         `json:"title"`
	Fallback    *string         `json:"fallback"`
	Name        *string         `json:"name"`
	Image       *string         `json:"image"`
	ImageURL    *string         `json:"image_url"`
	ThumbURL    *string         `json:"thumb_url"`
	AssetURL    *string         `json:"asset_url"`
	URL         *string         `json:"url"`
	TitleLink   *string         `json:"title_link"`
	OGScrapeURL *string         `json:"og_scrape_url"`
	Author      *string         `json:"author_name"`
	Text        *string         `json:"text"`
	MimeType    json.RawMessage `json:"mime_type"`
	FileSize    *int64          `json:"file_size"`
	Actions     json.RawMessage `json:"actions"`
}

func (a *AttachmentPayload) UnmarshalJSON(data []byte) error {
	var w attachmentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtraData(data, attachmentKeys)
	if err != nil {
		return err
	}

	out := AttachmentPayload{
		Title:     deref(firstPresent(w.Title, w.Fallback, w.Name)),
		Author:    deref(w.Author),
		Text:      deref(w.Text),
		ImageURL:  NormalizeURL(deref(firstPresent(w.Image, w.ImageURL, w.ThumbURL))),
		URL:       NormalizeURL(deref(firstPresent(w.AssetURL, w.URL, w.TitleLink, w.OGScrapeURL))),
		ExtraData: extra,
	}

	var typ string
	_ = json.Unmarshal(w.Type, &typ)
	if t, ok := models.ParseAttachmentType(typ); ok {
		if t == models.AttachmentTypeVideo && strings.Contains(out.URL, "youtube") {
			t = models.AttachmentTypeYoutube
		}
		out.Type = t
	} else if w.OGScrapeURL != nil {
		out.Type = models.AttachmentTypeLink
	} else {
		out.Type = models.AttachmentTypeUnknown
	}

	if out.Type == models.AttachmentTypeFile {
		file := &models.AttachmentFile{Type: models.FileTypeGeneric}
		var mime string
		if json.Unmarshal(w.MimeType, &mime) == nil && mime != "" {
			file.MimeType = mime
			file.Type = models.FileTypeForMime(mime)
		}
		if w.FileSize != nil {
			file.Size = *w.FileSize
		}
		out.File = file
	}

	if len(w.Actions) > 0 {
		var actions []models.AttachmentAction
		if json.Unmarshal(w.Actions, &actions) == nil {
			out.Actions = actions
		}
	}

	*a = out
	return nil
}

// MarshalJSON writes the upload request shape, not a mirror of the decoded
// object: image titles travel as "fallback".
func (a AttachmentPayload) MarshalJSON() ([]byte, error) {
	w := struct {
		Type     models.AttachmentType `json:"type"`
		Title    *string               `json:"title,omitempty"`
		Fallback *string               `json:"fallback,omitempty"`
		URL      string                `json:"url,omitempty"`
		ImageURL string                `json:"image_url,omitempty"`
	}{Type: a.Type, URL: a.URL, ImageURL: a.ImageURL}
	if w.Type == "" {
		w.Type = models.AttachmentTypeUnknown
	}
	title := a.Title
	if a.Type == models.AttachmentTypeImage {
		w.Fallback = &title
	} else {
		w.Title = &title
	}
	return json.Marshal(w)
}

// NormalizeURL turns protocol-relative and bare-host URLs into https URLs.
// It returns "" for empty or unparsable input.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	}
	if !strings.HasPrefix(strings.ToLower(s), "http") {
		s = "https://" + s
	}
	if _, err := url.Parse(s); err != nil {
		return ""
	}
	return s
}

func firstPresent(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
