package content

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxUploadBytes is the per-file ceiling for uploads (10 MiB).
const DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

// DefaultAllowedMimeTypes is the image allow-list used when nothing else is
// configured.
var DefaultAllowedMimeTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/svg+xml",
}

// sniffFamilies maps a declared raster type to the types that
// http.DetectContentType may report for genuine content of that type.
// SVG is text and cannot be sniffed reliably, so it is not listed.
var sniffFamilies = map[string][]string{
	"image/jpeg": {"image/jpeg"},
	"image/jpg":  {"image/jpeg"},
	"image/png":  {"image/png"},
	"image/gif":  {"image/gif"},
	"image/webp": {"image/webp"},
}

// FileValidator checks declared type, size and, optionally, sniffed content.
type FileValidator struct {
	allowed  map[string]bool
	maxBytes int64
	sniff    bool
}

func NewFileValidator(allowedTypes []string, maxBytes int64, sniff bool) *FileValidator {
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedMimeTypes
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &FileValidator{allowed: allowed, maxBytes: maxBytes, sniff: sniff}
}

// ValidateType checks the declared MIME type against the allow-list.
func (v *FileValidator) ValidateType(declared string) error {
	mt := normalizeMime(declared)
	if !v.allowed[mt] {
		return fmt.Errorf("%w: %s", ErrInvalidFileType, declared)
	}
	return nil
}

// ValidateSize enforces the per-file ceiling.
func (v *FileValidator) ValidateSize(size int64) error {
	if size > v.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, v.maxBytes)
	}
	return nil
}

// ValidateContent compares the first bytes of a file with its declared
// type. It only applies to raster formats.
func (v *FileValidator) ValidateContent(declared string, head []byte) error {
	if !v.sniff {
		return nil
	}
	family, ok := sniffFamilies[normalizeMime(declared)]
	if !ok {
		return nil
	}
	detected := normalizeMime(http.DetectContentType(head))
	for _, t := range family {
		if detected == t {
			return nil
		}
	}
	return fmt.Errorf("%w: content looks like %s, declared %s", ErrInvalidFileType, detected, declared)
}

func normalizeMime(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// UniqueFilename builds "<base>_<unixMillis>_<token><ext>" so that uploads
// never overwrite each other.
func UniqueFilename(original string, now time.Time) string {
	ext := filepath.Ext(original)
	base := SanitizeBaseName(strings.TrimSuffix(filepath.Base(original), ext))
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s%s", base, now.UnixMilli(), token, sanitizeExt(ext))
}

// SanitizeBaseName keeps letters, digits, dot, dash and underscore.
func SanitizeBaseName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

func sanitizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	clean := SanitizeBaseName(strings.TrimPrefix(ext, "."))
	return "." + strings.ToLower(clean)
}
