package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{1, "1 B"},
		{1023, "1023 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{5000, "4.88 KB"},
		{1024 * 1024, "1 MB"},
		{10 * 1024 * 1024, "10 MB"},
		{1024 * 1024 * 1024, "1 GB"},
		{5 * 1024 * 1024 * 1024 * 1024, "5120 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFileSize(tt.bytes), "%d bytes", tt.bytes)
	}
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved(".htaccess"))
	assert.True(t, IsReserved(".HTAccess"))
	assert.True(t, IsReserved("a/b/.htaccess"))
	assert.False(t, IsReserved("htaccess"))
	assert.False(t, IsReserved(".htaccess.png"))
}

func TestWriteMarker(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, WriteMarker(dir))

	env := &testEnv{root: dir}
	assert.Contains(t, env.read(t, MarkerFileName), "Options -ExecCGI")
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.jpg":     "image/jpeg",
		"a.JPEG":    "image/jpeg",
		"a.png":     "image/png",
		"a.gif":     "image/gif",
		"a.webp":    "image/webp",
		"a.svg":     "image/svg+xml",
		"notes.txt": "text/plain",
		"movie.srt": "text/srt",
		"movie.vtt": "text/vtt",
		"movie.mp4": "application/octet-stream",
		"noext":     "application/octet-stream",
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentTypeFor(name), name)
	}
}

func TestIsRenameable(t *testing.T) {
	assert.True(t, IsRenameable("x.PNG"))
	assert.True(t, IsRenameable(".webp"))
	assert.False(t, IsRenameable("x.txt"))
	assert.False(t, IsRenameable("x"))
}
