package models

import (
	"encoding/json"
	"strings"

	"github.com/dustin/go-humanize"
)

// AttachmentType is the category of an attachment.
type AttachmentType string

const (
	AttachmentTypeUnknown AttachmentType = "unknown"
	AttachmentTypeImage   AttachmentType = "image"
	AttachmentTypeImgur   AttachmentType = "imgur"
	AttachmentTypeGiphy   AttachmentType = "giphy"
	AttachmentTypeVideo   AttachmentType = "video"
	AttachmentTypeYoutube AttachmentType = "youtube"
	AttachmentTypeProduct AttachmentType = "product"
	AttachmentTypeFile    AttachmentType = "file"
	AttachmentTypeLink    AttachmentType = "link"
)

// ParseAttachmentType maps a wire value to a known type. The second result is
// false when the value is not recognized.
func ParseAttachmentType(s string) (AttachmentType, bool) {
	switch t := AttachmentType(s); t {
	case AttachmentTypeImage, AttachmentTypeImgur, AttachmentTypeGiphy, AttachmentTypeVideo,
		AttachmentTypeYoutube, AttachmentTypeProduct, AttachmentTypeFile, AttachmentTypeLink:
		return t, true
	}
	return AttachmentTypeUnknown, false
}

// IsImage reports whether the attachment renders as an image.
func (t AttachmentType) IsImage() bool {
	return t == AttachmentTypeImage || t == AttachmentTypeImgur || t == AttachmentTypeGiphy
}

// AttachmentFileType is the kind of file derived from its mime type.
type AttachmentFileType string

const (
	FileTypeGeneric AttachmentFileType = "generic"
	FileTypeCSV     AttachmentFileType = "csv"
	FileTypeDOC     AttachmentFileType = "doc"
	FileTypePDF     AttachmentFileType = "pdf"
	FileTypePPT     AttachmentFileType = "ppt"
	FileTypeTAR     AttachmentFileType = "tar"
	FileTypeXLS     AttachmentFileType = "xls"
	FileTypeZIP     AttachmentFileType = "zip"
	FileTypeMP3     AttachmentFileType = "mp3"
	FileTypeMP4     AttachmentFileType = "mp4"
	FileTypeJPEG    AttachmentFileType = "jpeg"
	FileTypePNG     AttachmentFileType = "png"
	FileTypeGIF     AttachmentFileType = "gif"
)

var mimeFileTypes = map[string]AttachmentFileType{
	"text/csv":                      FileTypeCSV,
	"application/msword":            FileTypeDOC,
	"application/pdf":               FileTypePDF,
	"application/vnd.ms-powerpoint": FileTypePPT,
	"application/x-tar":             FileTypeTAR,
	"application/vnd.ms-excel":      FileTypeXLS,
	"application/zip":               FileTypeZIP,
	"audio/mp3":                     FileTypeMP3,
	"audio/mpeg":                    FileTypeMP3,
	"video/mp4":                     FileTypeMP4,
	"image/jpeg":                    FileTypeJPEG,
	"image/jpg":                     FileTypeJPEG,
	"image/png":                     FileTypePNG,
	"image/gif":                     FileTypeGIF,
}

// FileTypeForMime returns the file kind for a mime type, generic when unknown.
func FileTypeForMime(mime string) AttachmentFileType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if t, ok := mimeFileTypes[mime]; ok {
		return t
	}
	return FileTypeGeneric
}

// FileTypeForExtension maps a file extension (without the dot) to a file kind.
func FileTypeForExtension(ext string) AttachmentFileType {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "jpg" {
		return FileTypeJPEG
	}
	for _, t := range mimeFileTypes {
		if string(t) == ext {
			return t
		}
	}
	return FileTypeGeneric
}

// MimeType returns the canonical mime type of the file kind.
func (t AttachmentFileType) MimeType() string {
	switch t {
	case FileTypeCSV:
		return "text/csv"
	case FileTypeDOC:
		return "application/msword"
	case FileTypePDF:
		return "application/pdf"
	case FileTypePPT:
		return "application/vnd.ms-powerpoint"
	case FileTypeTAR:
		return "application/x-tar"
	case FileTypeXLS:
		return "application/vnd.ms-excel"
	case FileTypeZIP:
		return "application/zip"
	case FileTypeMP3:
		return "audio/mp3"
	case FileTypeMP4:
		return "video/mp4"
	case FileTypeJPEG:
		return "image/jpeg"
	case FileTypePNG:
		return "image/png"
	case FileTypeGIF:
		return "image/gif"
	}
	return "application/octet-stream"
}

// AttachmentFile is the file metadata of a file attachment.
type AttachmentFile struct {
	Type     AttachmentFileType `json:"type"`
	Size     int64              `json:"size"`
	MimeType string             `json:"mime_type,omitempty"`
}

// SizeString renders the size for display, e.g. "1.2 MB".
func (f AttachmentFile) SizeString() string {
	if f.Size <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(f.Size))
}

// AttachmentAction is an interactive action attached to a message (e.g. giphy shuffle).
type AttachmentAction struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Style string `json:"style,omitempty"`
	Type  string `json:"type"`
	Text  string `json:"text"`
}

func (a AttachmentAction) IsCancelled() bool { return a.Value == "cancel" }

func (a AttachmentAction) IsSend() bool { return a.Value == "send" }

// AttachmentLocalState tracks the upload lifecycle of a locally created attachment.
type AttachmentLocalState string

const (
	AttachmentPendingUpload   AttachmentLocalState = "pendingUpload"
	AttachmentUploading       AttachmentLocalState = "uploading"
	AttachmentUploadingFailed AttachmentLocalState = "uploadingFailed"
	AttachmentUploaded        AttachmentLocalState = "uploaded"
)

// AttachmentSeed describes a local file to attach to a new message.
type AttachmentSeed struct {
	LocalURL  string
	FileName  string
	Type      AttachmentType
	MimeType  string
	FileSize  int64
	ExtraData json.RawMessage
}

// ChatMessageAttachment is the read model of an attachment.
type ChatMessageAttachment struct {
	ID         AttachmentID
	Type       AttachmentType
	Title      string
	Author     string
	Text       string
	URL        string
	ImageURL   string
	LocalURL   string
	File       *AttachmentFile
	Actions    []AttachmentAction
	LocalState *AttachmentLocalState
	ExtraData  json.RawMessage
}
