package content

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/drivers/storage"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
)

// PublicPrefix is the URL prefix stored files are served under.
const PublicPrefix = "/uploads/"

// FileRegistry lists and manipulates single files under the uploads root.
type FileRegistry struct {
	store   storage.StorageProvider
	tree    *TreeOperator
	folders *FolderRegistry
	logger  *logrus.Logger
}

func NewFileRegistry(store storage.StorageProvider, tree *TreeOperator, folders *FolderRegistry, logger *logrus.Logger) *FileRegistry {
	return &FileRegistry{store: store, tree: tree, folders: folders, logger: logger}
}

// ListFiles scans folder (or the whole root when folder is empty) and
// returns every file except the marker, sorted by name.
func (r *FileRegistry) ListFiles(ctx context.Context, folder string) (*files.FileListing, error) {
	folder = strings.Trim(folder, "/")
	if folder != "" && !security.ValidateFolderPath(folder) {
		return nil, security.ErrInvalidFolderPath
	}

	dir, err := r.store.Resolve(folder)
	if err != nil {
		return nil, err
	}

	result, err := r.tree.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		r.logger.WithFields(logrus.Fields{
			"folder": folder,
			"errors": result.Errors,
		}).Warn("File listing incomplete")
	}

	listing := &files.FileListing{Entries: make([]files.FileEntry, 0, len(result.Entries))}
	for _, e := range result.Entries {
		e.URL = PublicURL(e.Path)
		listing.Entries = append(listing.Entries, e)
		listing.TotalBytes += e.Size
	}
	sort.SliceStable(listing.Entries, func(i, j int) bool {
		return listing.Entries[i].Name < listing.Entries[j].Name
	})
	listing.TotalCount = len(listing.Entries)
	return listing, nil
}

// PublicURL returns the URL a stored file is served at.
func PublicURL(relPath string) string {
	return PublicPrefix + strings.TrimPrefix(relPath, "/")
}

// NormalizeFilePath accepts a root-relative path or a public URL path and
// returns the cleaned root-relative form. Only the leading "/uploads/" of a
// public URL is stripped; "uploads/..." names a folder called uploads.
func NormalizeFilePath(p string) (string, error) {
	p = filepath.ToSlash(strings.TrimSpace(p))
	if strings.HasPrefix(p, PublicPrefix) {
		p = p[len(PublicPrefix):]
	}
	return cleanRelative(p)
}

func cleanRelative(p string) (string, error) {
	p = strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(p)), "/")
	if p == "" {
		return "", fmt.Errorf("%w: file path is required", files.ErrValidation)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", security.ErrPathTraversal
		}
	}
	return path.Clean(p), nil
}

// ResolveForDisplay maps the path below a display route to an absolute file
// path. The route prefix is already gone, so nothing else is stripped.
// Reserved names and directories are reported as not found.
func (r *FileRegistry) ResolveForDisplay(ctx context.Context, requested string) (string, *storage.StorageEntry, error) {
	rel, err := cleanRelative(requested)
	if err != nil {
		return "", nil, err
	}
	if IsReserved(rel) {
		return "", nil, ErrFileNotFound
	}

	entry, err := r.store.Stat(ctx, rel)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, ErrFileNotFound
		}
		return "", nil, err
	}
	if entry.IsDir {
		return "", nil, ErrFileNotFound
	}

	abs, err := r.store.Resolve(rel)
	if err != nil {
		return "", nil, err
	}
	return abs, entry, nil
}

// DeleteFile removes one regular file. The marker cannot be deleted here.
func (r *FileRegistry) DeleteFile(ctx context.Context, filePath string) error {
	rel, err := NormalizeFilePath(filePath)
	if err != nil {
		return err
	}
	if IsReserved(rel) {
		return ErrReservedName
	}
	if err := r.requireFile(ctx, rel); err != nil {
		return err
	}

	if err := r.store.Remove(ctx, rel); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}

	r.logger.WithField("file", rel).Info("File deleted")
	return nil
}

// RenameFile renames a file in place or into another existing folder. Only
// image files can be renamed and the extension must stay the same.
func (r *FileRegistry) RenameFile(ctx context.Context, oldPath, newPath string) (string, error) {
	oldRel, err := NormalizeFilePath(oldPath)
	if err != nil {
		return "", err
	}
	newRel, err := NormalizeFilePath(newPath)
	if err != nil {
		return "", err
	}
	if IsReserved(oldRel) || IsReserved(newRel) {
		return "", ErrReservedName
	}
	if oldRel == newRel {
		return "", ErrSameLocation
	}

	oldExt := strings.ToLower(path.Ext(oldRel))
	if !IsRenameable(oldExt) {
		return "", fmt.Errorf("%w: %s", ErrInvalidFileType, oldExt)
	}
	if strings.ToLower(path.Ext(newRel)) != oldExt {
		return "", ErrExtensionChanged
	}

	if err := r.requireFile(ctx, oldRel); err != nil {
		return "", err
	}
	if _, err := r.store.Stat(ctx, newRel); err == nil {
		return "", ErrFileExists
	}
	if parent := path.Dir(newRel); parent != "." {
		if err := r.folders.requireFolder(ctx, parent); err != nil {
			return "", err
		}
	}

	if err := r.store.Rename(ctx, oldRel, newRel); err != nil {
		return "", fmt.Errorf("rename file: %w", err)
	}

	r.logger.WithFields(logrus.Fields{"from": oldRel, "to": newRel}).Info("File renamed")
	return newRel, nil
}

// MoveFile moves a file to a full destination path. A missing destination
// folder is created with a marker; an existing destination file is a
// conflict.
func (r *FileRegistry) MoveFile(ctx context.Context, src, dst string) (string, error) {
	srcRel, err := NormalizeFilePath(src)
	if err != nil {
		return "", err
	}
	dstRel, err := NormalizeFilePath(dst)
	if err != nil {
		return "", err
	}
	if IsReserved(srcRel) || IsReserved(dstRel) {
		return "", ErrReservedName
	}
	if srcRel == dstRel {
		return "", ErrSameLocation
	}

	if err := r.requireFile(ctx, srcRel); err != nil {
		return "", err
	}
	if _, err := r.store.Stat(ctx, dstRel); err == nil {
		return "", ErrFileExists
	}

	if parent := path.Dir(dstRel); parent != "." {
		if !security.ValidateFolderPath(parent) {
			return "", security.ErrInvalidFolderPath
		}
		if _, err := r.folders.EnsureFolder(ctx, parent); err != nil {
			return "", err
		}
	}

	srcAbs, err := r.store.Resolve(srcRel)
	if err != nil {
		return "", err
	}
	dstAbs, err := r.store.Resolve(dstRel)
	if err != nil {
		return "", err
	}
	if err := moveFile(srcAbs, dstAbs); err != nil {
		return "", fmt.Errorf("move file: %w", err)
	}

	r.logger.WithFields(logrus.Fields{"from": srcRel, "to": dstRel}).Info("File moved")
	return dstRel, nil
}

func (r *FileRegistry) requireFile(ctx context.Context, rel string) error {
	entry, err := r.store.Stat(ctx, rel)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return err
	}
	if entry.IsDir {
		return ErrNotAFile
	}
	return nil
}
