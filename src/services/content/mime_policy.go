package content

import (
	"path/filepath"
	"strings"
)

// =============================================================================
// MIME POLICY
// =============================================================================

// displayContentTypes is the fixed table used when serving stored files.
// Unknown extensions are served as application/octet-stream.
var displayContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".txt":  "text/plain",
	".srt":  "text/srt",
	".vtt":  "text/vtt",
}

// renameableExtensions are the only extensions a file rename accepts.
var renameableExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".svg":  true,
}

// ContentTypeFor returns the serving content type for a file name.
func ContentTypeFor(name string) string {
	if ct, ok := displayContentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsRenameable checks if a file may be renamed based on its extension.
func IsRenameable(name string) bool {
	return renameableExtensions[strings.ToLower(filepath.Ext(name))]
}
