package visualswe

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScan(t *testing.T) {
	statement := []string{
		"Title: crash on resize",
		"https://user-images.example.com/1.png",
		"Steps to reproduce",
		"http://example.com/2.png",
	}

	segs := Scan("org__repo-1", statement, DefaultLayout(MediaImage))

	assert.Equal(t, 4, segs.Len())
	assert.Equal(t, []SegmentKind{SegmentText, SegmentMedia, SegmentText, SegmentMedia}, segs.Kinds)
	assert.Equal(t, "Title: crash on resize", segs.Items[0])
	assert.Equal(t, filepath.Join("images", "org__repo-1", "图片0.png"), segs.Items[1])
	assert.Equal(t, filepath.Join("images", "org__repo-1", "图片1.png"), segs.Items[3])
	assert.Equal(t, 2, segs.MediaCount())
	assert.Equal(t, []string{segs.Items[1], segs.Items[3]}, segs.MediaPaths())
}

func TestScan_VideoLayout(t *testing.T) {
	segs := Scan("i", []string{"https://x/v.mp4"}, DefaultLayout(MediaVideo))
	assert.Equal(t, filepath.Join("Videos", "i", "Video0.mp4"), segs.Items[0])
}

func TestScan_NoMedia(t *testing.T) {
	segs := Scan("i", []string{"only text", "more text"}, DefaultLayout(MediaImage))
	assert.Equal(t, 0, segs.MediaCount())
	assert.Empty(t, segs.MediaPaths())
	assert.Equal(t, []string{"only text", "more text"}, segs.Items)
}

func TestScan_Empty(t *testing.T) {
	segs := Scan("i", nil, DefaultLayout(MediaImage))
	assert.Equal(t, 0, segs.Len())
}

func TestIsMediaSegment(t *testing.T) {
	assert.True(t, IsMediaSegment("https://a/b.png"))
	assert.True(t, IsMediaSegment("http://a/b.png"))
	// the prefix check is literal: leading space or mid-text URLs are text
	assert.False(t, IsMediaSegment(" https://a/b.png"))
	assert.False(t, IsMediaSegment("see https://a/b.png"))
	assert.Equal(t, 2, CountMedia([]string{"http://a", "x", "https://b"}))
}

func TestMediaLayout_WithDefaults(t *testing.T) {
	l := MediaLayout{Root: "/data/img", Ext: ".jpg"}.withDefaults(MediaImage)
	assert.Equal(t, MediaLayout{Root: "/data/img", Label: "图片", Ext: "jpg"}, l)
	assert.Equal(t, filepath.Join("/data/img", "x", "图片3.jpg"), l.Path("x", 3))
}

func TestSegmentKindString(t *testing.T) {
	assert.Equal(t, "text", SegmentText.String())
	assert.Equal(t, "media", SegmentMedia.String())
}
