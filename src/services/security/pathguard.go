package security

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nas-ai/uploads-api/src/domain/files"
)

const (
	MaxFolderNameLength = 50
	MaxFolderPathLength = 200
)

var (
	ErrInvalidFolderName = fmt.Errorf("%w: invalid folder name", files.ErrValidation)
	ErrInvalidFolderPath = fmt.Errorf("%w: invalid folder path", files.ErrValidation)
	ErrPathTraversal     = fmt.Errorf("%w: path escapes base directory", files.ErrForbidden)
)

var (
	folderNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)
	folderPathPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(/[A-Za-z0-9_-]+)*$`)
)

// ValidateFolderName reports whether name is a valid single path segment.
func ValidateFolderName(name string) bool {
	return folderNamePattern.MatchString(name)
}

// ValidateFolderPath reports whether path is a valid slash separated
// folder path of at most MaxFolderPathLength characters.
func ValidateFolderPath(path string) bool {
	return len(path) <= MaxFolderPathLength && folderPathPattern.MatchString(path)
}

// ValidateFolderPathStrict additionally caps every segment at
// MaxFolderNameLength, which is what folder creation requires.
func ValidateFolderPathStrict(path string) bool {
	if !ValidateFolderPath(path) {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if len(seg) > MaxFolderNameLength {
			return false
		}
	}
	return true
}

// IsWithinRoot reports whether candidate is root itself or lies below it.
// Both arguments must be absolute and cleaned. The separator is appended
// before the prefix test so that "/srv/uploads-evil" is not inside
// "/srv/uploads".
func IsWithinRoot(candidate, root string) bool {
	if candidate == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	return strings.HasPrefix(candidate, prefix)
}

// ResolveUnder joins a user supplied relative path onto root and rejects
// anything that would land outside of it.
func ResolveUnder(root, rel string) (string, error) {
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg == ".." {
			return "", ErrPathTraversal
		}
	}

	cleaned := filepath.Clean("/" + filepath.ToSlash(rel))
	full := filepath.Join(root, strings.TrimPrefix(cleaned, "/"))

	abs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if !IsWithinRoot(abs, root) {
		return "", ErrPathTraversal
	}
	return abs, nil
}

// IsSameOrDescendant compares two logical slash paths. It is used to refuse
// moving or copying a folder into itself before touching the disk.
func IsSameOrDescendant(parent, child string) bool {
	parent = strings.Trim(parent, "/")
	child = strings.Trim(child, "/")
	return child == parent || strings.HasPrefix(child, parent+"/")
}
