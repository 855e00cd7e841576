package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/nas-ai/uploads-api/src/services/security"
)

// ErrPathTraversal is re-exported for callers that only import the driver.
var ErrPathTraversal = security.ErrPathTraversal

type LocalStore struct {
	basePath string
}

func NewLocalStore(basePath string) (*LocalStore, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path: %w", err)
	}

	if err := os.MkdirAll(absBase, 0o755); err != nil {
		return nil, fmt.Errorf("ensure base path: %w", err)
	}

	return &LocalStore{
		basePath: absBase,
	}, nil
}

func (s *LocalStore) Root() string {
	return s.basePath
}

func (s *LocalStore) Resolve(rel string) (string, error) {
	return security.ResolveUnder(s.basePath, rel)
}

// Rel converts an absolute path under the root back to its slash form.
func (s *LocalStore) Rel(abs string) (string, error) {
	if !security.IsWithinRoot(abs, s.basePath) {
		return "", ErrPathTraversal
	}
	rel, err := filepath.Rel(s.basePath, abs)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// WriteFile streams data into a temp file next to the target and renames it
// into place once the copy succeeds. A failed write leaves any previous file
// at the target untouched.
func (s *LocalStore) WriteFile(ctx context.Context, relPath string, data io.Reader) (int64, error) {
	target, err := s.Resolve(relPath)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create dir: %w", err)
	}

	return writeAtomic(target, data)
}

func writeAtomic(target string, data io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".part-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0o644)
	}
	if err == nil {
		err = os.Rename(tmpName, target)
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, err
	}
	return n, nil
}

func (s *LocalStore) ReadFile(ctx context.Context, relPath string) (io.ReadCloser, error) {
	target, err := s.Resolve(relPath)
	if err != nil {
		return nil, err
	}

	return os.Open(target)
}

// Remove deletes a single file or an empty directory. Recursive removal
// goes through the tree operator so that every step is reported.
func (s *LocalStore) Remove(ctx context.Context, relPath string) error {
	target, err := s.Resolve(relPath)
	if err != nil {
		return err
	}
	if target == s.basePath {
		return ErrPathTraversal
	}
	return os.Remove(target)
}

func (s *LocalStore) Rename(ctx context.Context, srcRel, dstRel string) error {
	src, err := s.Resolve(srcRel)
	if err != nil {
		return err
	}
	dst, err := s.Resolve(dstRel)
	if err != nil {
		return err
	}
	if src == s.basePath || dst == s.basePath {
		return ErrPathTraversal
	}

	return os.Rename(src, dst)
}

func (s *LocalStore) Mkdir(ctx context.Context, relPath string) error {
	target, err := s.Resolve(relPath)
	if err != nil {
		return err
	}
	return os.MkdirAll(target, 0o755)
}

// List returns the direct children of a directory sorted by name.
func (s *LocalStore) List(ctx context.Context, relPath string) ([]StorageEntry, error) {
	target, err := s.Resolve(relPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}

	items := make([]StorageEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}

		items = append(items, StorageEntry{
			Name:    e.Name(),
			Path:    joinRel(relPath, e.Name()),
			Size:    info.Size(),
			IsDir:   info.IsDir(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *LocalStore) Stat(ctx context.Context, relPath string) (*StorageEntry, error) {
	target, err := s.Resolve(relPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}

	return &StorageEntry{
		Name:    info.Name(),
		Path:    filepath.ToSlash(relPath),
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}, nil
}

func joinRel(dir, name string) string {
	if dir == "" || dir == "." || dir == "/" {
		return name
	}
	return filepath.ToSlash(filepath.Join(dir, name))
}
