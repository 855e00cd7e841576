package content

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/drivers/storage"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
)

// FolderRegistry lists, creates, renames, moves, copies and deletes folders
// under the uploads root.
type FolderRegistry struct {
	store  storage.StorageProvider
	tree   *TreeOperator
	logger *logrus.Logger
}

func NewFolderRegistry(store storage.StorageProvider, tree *TreeOperator, logger *logrus.Logger) *FolderRegistry {
	return &FolderRegistry{store: store, tree: tree, logger: logger}
}

// ListFolders returns the sorted names of the top-level folders.
func (r *FolderRegistry) ListFolders(ctx context.Context) ([]string, error) {
	entries, err := r.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list root: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListFoldersRecursive returns every folder path below the root, parents
// before children: sorted by depth first, then lexicographically.
func (r *FolderRegistry) ListFoldersRecursive(ctx context.Context) ([]string, error) {
	var paths []string
	if err := r.walkFolders(ctx, "", &paths); err != nil {
		return nil, err
	}
	SortByDepth(paths)
	return paths, nil
}

func (r *FolderRegistry) walkFolders(ctx context.Context, rel string, out *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := r.store.List(ctx, rel)
	if err != nil {
		return fmt.Errorf("list %q: %w", rel, err)
	}
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		*out = append(*out, e.Path)
		if err := r.walkFolders(ctx, e.Path, out); err != nil {
			return err
		}
	}
	return nil
}

// SortByDepth orders slash paths by segment count, then lexicographically.
func SortByDepth(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		di, dj := strings.Count(paths[i], "/"), strings.Count(paths[j], "/")
		if di != dj {
			return di < dj
		}
		return paths[i] < paths[j]
	})
}

// BuildFolderTree turns a depth-sorted flat path list into a forest in a
// single pass. A path whose parent has not been seen yet is dropped, so
// callers must sort with SortByDepth first.
func BuildFolderTree(paths []string) []*files.FolderNode {
	nodes := make(map[string]*files.FolderNode, len(paths))
	roots := make([]*files.FolderNode, 0)

	for _, p := range paths {
		segments := strings.Split(p, "/")
		node := &files.FolderNode{
			Name:     segments[len(segments)-1],
			Path:     p,
			Level:    len(segments) - 1,
			Children: []*files.FolderNode{},
		}
		nodes[p] = node

		if node.Level == 0 {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[strings.Join(segments[:len(segments)-1], "/")]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	return roots
}

// CreateFolder validates relPath, creates missing ancestors and writes a
// fresh marker into the leaf only.
func (r *FolderRegistry) CreateFolder(ctx context.Context, relPath string) (string, error) {
	if !security.ValidateFolderPathStrict(relPath) {
		return "", security.ErrInvalidFolderPath
	}

	if entry, err := r.store.Stat(ctx, relPath); err == nil {
		if entry.IsDir {
			return "", ErrFolderExists
		}
		return "", ErrExistsAsFile
	} else if !os.IsNotExist(err) {
		return "", err
	}

	if _, err := r.EnsureFolder(ctx, relPath); err != nil {
		return "", err
	}

	r.logger.WithField("folder", relPath).Info("Folder created")
	return relPath, nil
}

// EnsureFolder creates relPath when missing and reports whether it did.
// A newly created leaf receives a marker.
func (r *FolderRegistry) EnsureFolder(ctx context.Context, relPath string) (bool, error) {
	if relPath == "" {
		return false, nil
	}

	entry, err := r.store.Stat(ctx, relPath)
	if err == nil {
		if !entry.IsDir {
			return false, ErrExistsAsFile
		}
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, err
	}

	if err := r.store.Mkdir(ctx, relPath); err != nil {
		return false, fmt.Errorf("create folder %s: %w", relPath, err)
	}
	abs, err := r.store.Resolve(relPath)
	if err != nil {
		return true, err
	}
	if err := WriteMarker(abs); err != nil {
		return true, fmt.Errorf("write marker in %s: %w", relPath, err)
	}
	return true, nil
}

// RenameFolder gives the folder at oldPath a new last segment.
func (r *FolderRegistry) RenameFolder(ctx context.Context, oldPath, newName string) (string, error) {
	if !security.ValidateFolderPath(oldPath) {
		return "", security.ErrInvalidFolderPath
	}
	if !security.ValidateFolderName(newName) {
		return "", security.ErrInvalidFolderName
	}

	if err := r.requireFolder(ctx, oldPath); err != nil {
		return "", err
	}

	newPath := newName
	if parent := path.Dir(oldPath); parent != "." {
		newPath = parent + "/" + newName
	}
	if newPath == oldPath {
		return "", ErrSameLocation
	}

	if entry, err := r.store.Stat(ctx, newPath); err == nil {
		if entry.IsDir {
			return "", ErrFolderExists
		}
		return "", ErrExistsAsFile
	}

	if err := r.store.Rename(ctx, oldPath, newPath); err != nil {
		return "", fmt.Errorf("rename folder: %w", err)
	}

	r.logger.WithFields(logrus.Fields{"from": oldPath, "to": newPath}).Info("Folder renamed")
	return newPath, nil
}

// DeleteFolder removes a folder and everything inside it.
func (r *FolderRegistry) DeleteFolder(ctx context.Context, relPath string) (*files.TreeResult, error) {
	if !security.ValidateFolderPath(relPath) {
		return nil, security.ErrInvalidFolderPath
	}
	if err := r.requireFolder(ctx, relPath); err != nil {
		return nil, err
	}

	abs, err := r.store.Resolve(relPath)
	if err != nil {
		return nil, err
	}
	return r.tree.Delete(ctx, abs)
}

// MoveFolder moves src to dst, merging when dst already exists. Moving a
// folder into itself or below itself is refused before anything changes.
func (r *FolderRegistry) MoveFolder(ctx context.Context, src, dst string) (*files.TreeResult, error) {
	srcAbs, dstAbs, err := r.prepareTransfer(ctx, src, dst)
	if err != nil {
		return nil, err
	}
	return r.tree.Move(ctx, srcAbs, dstAbs)
}

// CopyFolder copies src to dst, merging when dst already exists.
func (r *FolderRegistry) CopyFolder(ctx context.Context, src, dst string) (*files.TreeResult, error) {
	srcAbs, dstAbs, err := r.prepareTransfer(ctx, src, dst)
	if err != nil {
		return nil, err
	}
	return r.tree.Copy(ctx, srcAbs, dstAbs)
}

func (r *FolderRegistry) prepareTransfer(ctx context.Context, src, dst string) (string, string, error) {
	if !security.ValidateFolderPath(src) || !security.ValidateFolderPath(dst) {
		return "", "", security.ErrInvalidFolderPath
	}
	if src == dst {
		return "", "", ErrSameLocation
	}
	if security.IsSameOrDescendant(src, dst) {
		return "", "", ErrMoveIntoSelf
	}

	if err := r.requireFolder(ctx, src); err != nil {
		return "", "", err
	}
	if entry, err := r.store.Stat(ctx, dst); err == nil && !entry.IsDir {
		return "", "", ErrExistsAsFile
	}

	if parent := path.Dir(dst); parent != "." {
		if _, err := r.EnsureFolder(ctx, parent); err != nil {
			return "", "", err
		}
	}

	srcAbs, err := r.store.Resolve(src)
	if err != nil {
		return "", "", err
	}
	dstAbs, err := r.store.Resolve(dst)
	if err != nil {
		return "", "", err
	}
	return srcAbs, dstAbs, nil
}

func (r *FolderRegistry) requireFolder(ctx context.Context, relPath string) error {
	entry, err := r.store.Stat(ctx, relPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrFolderNotFound
		}
		return err
	}
	if !entry.IsDir {
		return ErrNotADirectory
	}
	return nil
}
