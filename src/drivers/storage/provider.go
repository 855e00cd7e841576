package storage

import (
	"context"
	"io"
	"time"
)

// StorageEntry represents a file or directory item
type StorageEntry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"` // Relative path, slash separated
	Size    int64     `json:"size"`
	IsDir   bool      `json:"isDir"`
	ModTime time.Time `json:"modTime"`
}

// StorageProvider is the rooted filesystem the registries work against.
// Every relative path is resolved under Root and rejected if it escapes.
type StorageProvider interface {
	// Writers
	WriteFile(ctx context.Context, path string, data io.Reader) (int64, error)
	Remove(ctx context.Context, path string) error
	Rename(ctx context.Context, src, dst string) error
	Mkdir(ctx context.Context, path string) error

	// Readers
	ReadFile(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, path string) ([]StorageEntry, error)
	Stat(ctx context.Context, path string) (*StorageEntry, error)

	// Utils
	Root() string
	Resolve(path string) (string, error)
	Rel(abs string) (string, error)
}
