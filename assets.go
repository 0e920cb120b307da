package visualswe

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MediaMetadata describes a local media file.
type MediaMetadata struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mimeType"`
	Checksum string `json:"checksum"`
}

// LoadMedia turns a local media path into a request part. Images are read
// into memory; videos are referenced by absolute path and never read here.
func LoadMedia(path string, kind MediaKind, fps float64) (*Part, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMediaUnreadable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w: is a directory", path, ErrMediaUnreadable)
	}

	mimeType := getMIMETypeFromPath(path, kind)
	if kind == MediaVideo {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", path, ErrMediaUnreadable, err)
		}
		return NewVideoPart(abs, mimeType, fps), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMediaUnreadable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w: file is empty", path, ErrMediaUnreadable)
	}
	return NewImagePart(data, mimeType), nil
}

// BuildParts converts scanned segments into interleaved request parts,
// loading each media file. The first unreadable file aborts the build.
func BuildParts(segs Segments, kind MediaKind, fps float64) ([]*Part, error) {
	parts := make([]*Part, 0, segs.Len())
	for i, item := range segs.Items {
		if segs.Kinds[i] == SegmentText {
			parts = append(parts, NewTextPart(item))
			continue
		}
		p, err := LoadMedia(item, kind, fps)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// StatMedia collects metadata for a media file, including a sha256 checksum.
func StatMedia(path string, kind MediaKind) (*MediaMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMediaUnreadable, err)
	}
	defer func() {
		_ = f.Close() // Best effort close, ignore error in defer
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMediaUnreadable, err)
	}
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}
	return &MediaMetadata{
		Path:     path,
		Size:     info.Size(),
		MIMEType: getMIMETypeFromPath(path, kind),
		Checksum: fmt.Sprintf("%x", hasher.Sum(nil)),
	}, nil
}

// getMIMETypeFromPath returns the MIME type for a file by detecting it from
// content, falling back to the extension when detection does not yield a
// type of the expected family.
func getMIMETypeFromPath(path string, kind MediaKind) string {
	family := string(kind) + "/"
	if mtype, err := mimetype.DetectFile(path); err == nil {
		if s := mtype.String(); strings.HasPrefix(s, family) {
			return s
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	}
	if kind == MediaVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}
