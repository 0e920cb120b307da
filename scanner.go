package visualswe

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SegmentKind tags a problem-statement segment.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentMedia
)

func (k SegmentKind) String() string {
	if k == SegmentMedia {
		return "media"
	}
	return "text"
}

// MediaLayout describes where the per-instance media files live:
// <Root>/<instance_id>/<Label><index>.<Ext>
type MediaLayout struct {
	Root  string `yaml:"root"`
	Label string `yaml:"label"`
	Ext   string `yaml:"ext"`
}

// DefaultLayout returns the layout the data-preparation step produces.
func DefaultLayout(kind MediaKind) MediaLayout {
	if kind == MediaVideo {
		return MediaLayout{Root: "Videos", Label: "Video", Ext: "mp4"}
	}
	return MediaLayout{Root: "images", Label: "图片", Ext: "png"}
}

// withDefaults fills empty fields from the kind's default layout.
func (l MediaLayout) withDefaults(kind MediaKind) MediaLayout {
	def := DefaultLayout(kind)
	if l.Root == "" {
		l.Root = def.Root
	}
	if l.Label == "" {
		l.Label = def.Label
	}
	if l.Ext == "" {
		l.Ext = def.Ext
	}
	l.Ext = strings.TrimPrefix(l.Ext, ".")
	return l
}

// Path builds the local file path of the index-th media item of an instance.
func (l MediaLayout) Path(instanceID string, index int) string {
	return filepath.Join(l.Root, instanceID, fmt.Sprintf("%s%d.%s", l.Label, index, l.Ext))
}

// Segments holds two parallel sequences: the payload of each segment (text or
// a local media path) and its kind.
type Segments struct {
	Items []string
	Kinds []SegmentKind
}

// IsMediaSegment reports whether a segment stands in for a media item.
func IsMediaSegment(s string) bool { return strings.HasPrefix(s, "http") }

// Scan classifies each statement segment and rewrites media URLs into local
// paths. The URL itself is discarded; the path is not checked for existence.
func Scan(instanceID string, statement []string, layout MediaLayout) Segments {
	out := Segments{
		Items: make([]string, 0, len(statement)),
		Kinds: make([]SegmentKind, 0, len(statement)),
	}
	index := 0
	for _, seg := range statement {
		if IsMediaSegment(seg) {
			out.Items = append(out.Items, layout.Path(instanceID, index))
			out.Kinds = append(out.Kinds, SegmentMedia)
			index++
			continue
		}
		out.Items = append(out.Items, seg)
		out.Kinds = append(out.Kinds, SegmentText)
	}
	return out
}

// Len returns the number of segments.
func (s Segments) Len() int { return len(s.Items) }

// MediaCount returns the number of media segments.
func (s Segments) MediaCount() int {
	n := 0
	for _, k := range s.Kinds {
		if k == SegmentMedia {
			n++
		}
	}
	return n
}

// MediaPaths returns the media paths in order.
func (s Segments) MediaPaths() []string {
	paths := make([]string, 0, s.MediaCount())
	for i, k := range s.Kinds {
		if k == SegmentMedia {
			paths = append(paths, s.Items[i])
		}
	}
	return paths
}

// CountMedia counts the media segments of a raw statement.
func CountMedia(statement []string) int {
	n := 0
	for _, seg := range statement {
		if IsMediaSegment(seg) {
			n++
		}
	}
	return n
}
