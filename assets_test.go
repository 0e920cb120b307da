package visualswe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestLoadMedia_Image(t *testing.T) {
	dir := t.TempDir()

	t.Run("content wins over extension", func(t *testing.T) {
		path := filepath.Join(dir, "shot.jpg")
		require.NoError(t, os.WriteFile(path, pngHeader, 0o644))

		part, err := LoadMedia(path, MediaImage, 1)
		require.NoError(t, err)
		assert.Equal(t, PartImage, part.Type)
		assert.Equal(t, "image/png", part.MimeType)
		assert.Equal(t, pngHeader, part.Data)
	})

	t.Run("extension fallback", func(t *testing.T) {
		path := filepath.Join(dir, "shot.webp")
		require.NoError(t, os.WriteFile(path, []byte("not really an image"), 0o644))

		part, err := LoadMedia(path, MediaImage, 1)
		require.NoError(t, err)
		assert.Equal(t, "image/webp", part.MimeType)
	})

	t.Run("kind default", func(t *testing.T) {
		path := filepath.Join(dir, "shot.unknown")
		require.NoError(t, os.WriteFile(path, []byte("plain"), 0o644))

		part, err := LoadMedia(path, MediaImage, 1)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", part.MimeType)
	})
}

func TestLoadMedia_Video(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Video0.mp4")
	require.NoError(t, os.WriteFile(path, []byte("frames"), 0o644))

	part, err := LoadMedia(path, MediaVideo, 2)
	require.NoError(t, err)
	assert.Equal(t, PartVideo, part.Type)
	assert.True(t, filepath.IsAbs(part.Path))
	assert.Equal(t, "video/mp4", part.MimeType)
	assert.Equal(t, 2.0, part.FPS)
	assert.Nil(t, part.Data, "videos are referenced, not read")
}

func TestLoadMedia_Unreadable(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	tests := map[string]string{
		"missing":   filepath.Join(dir, "nope.png"),
		"directory": dir,
		"empty":     empty,
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMedia(path, MediaImage, 1)
			assert.ErrorIs(t, err, ErrMediaUnreadable)
		})
	}

	_, err := LoadMedia(filepath.Join(dir, "nope.mp4"), MediaVideo, 1)
	assert.ErrorIs(t, err, ErrMediaUnreadable)
}

func TestBuildParts(t *testing.T) {
	root := t.TempDir()
	layout := MediaLayout{Root: root}.withDefaults(MediaImage)
	path := layout.Path("i", 0)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, pngHeader, 0o644))

	segs := Scan("i", []string{"before", "https://x/a.png", "after"}, layout)
	parts, err := BuildParts(segs, MediaImage, 1)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, NewTextPart("before"), parts[0])
	assert.Equal(t, PartImage, parts[1].Type)
	assert.Equal(t, NewTextPart("after"), parts[2])

	segs = Scan("i", []string{"https://x/a.png", "https://x/b.png"}, layout)
	_, err = BuildParts(segs, MediaImage, 1)
	assert.ErrorIs(t, err, ErrMediaUnreadable)
}

func TestStatMedia(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mp4")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	meta, err := StatMedia(path, MediaVideo)
	require.NoError(t, err)
	assert.Equal(t, int64(3), meta.Size)
	assert.Equal(t, "video/mp4", meta.MIMEType)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", meta.Checksum)

	_, err = StatMedia(filepath.Join(t.TempDir(), "missing.mp4"), MediaVideo)
	assert.ErrorIs(t, err, ErrMediaUnreadable)
}
