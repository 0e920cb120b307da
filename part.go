package visualswe

import "encoding/base64"

// Part types
const (
	PartText  = "text"
	PartImage = "image"
	PartVideo = "video"
)

// Part represents one content block of a user turn (text, image, video).
type Part struct {
	Type     string
	Text     string
	Data     []byte  // inline bytes for images
	Path     string  // absolute local path for videos
	MimeType string  // for images and videos
	FPS      float64 // frame-rate hint for videos
}

// NewTextPart creates a new text part
func NewTextPart(text string) *Part {
	return &Part{Type: PartText, Text: text}
}

// NewImagePart creates a new image part with data and mime type
func NewImagePart(data []byte, mimeType string) *Part {
	return &Part{Type: PartImage, Data: data, MimeType: mimeType}
}

// NewVideoPart creates a video part that references a local file
func NewVideoPart(path, mimeType string, fps float64) *Part {
	return &Part{Type: PartVideo, Path: path, MimeType: mimeType, FPS: fps}
}

// DataURI encodes an image part as an inline data URI.
func (p *Part) DataURI() string {
	return "data:" + p.MimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// FileURI returns the file:// reference of a video part.
func (p *Part) FileURI() string {
	return "file://" + p.Path
}

func hasVideo(parts []*Part) bool {
	for _, p := range parts {
		if p.Type == PartVideo {
			return true
		}
	}
	return false
}
