package content

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/drivers/storage"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
)

// Operation names for server path transfers.
const (
	OpImport = "import"
	OpExport = "export"
)

// ExportResult extends a copy result with the totals of the pre-flight scan.
type ExportResult struct {
	Copied             int      `json:"copied"`
	TotalSize          int64    `json:"totalSize"`
	TotalSizeFormatted string   `json:"totalSizeFormatted"`
	Errors             []string `json:"errors"`
	Success            bool     `json:"success"`
}

// TransferService copies trees between the uploads root and server paths.
// Server paths must lie inside one of the configured transfer roots; with
// no roots configured both directions are disabled.
type TransferService struct {
	roots   []string
	store   storage.StorageProvider
	tree    *TreeOperator
	folders *FolderRegistry
	logger  *logrus.Logger
}

func NewTransferService(roots []string, store storage.StorageProvider, tree *TreeOperator, folders *FolderRegistry, logger *logrus.Logger) *TransferService {
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		if r = strings.TrimSpace(r); r == "" {
			continue
		}
		if abs, err := filepath.Abs(r); err == nil {
			cleaned = append(cleaned, abs)
		}
	}
	return &TransferService{roots: cleaned, store: store, tree: tree, folders: folders, logger: logger}
}

// Enabled reports whether any transfer root is configured.
func (s *TransferService) Enabled() bool {
	return len(s.roots) > 0
}

// serverPath checks a user supplied server path against the transfer roots.
func (s *TransferService) serverPath(p string) (string, error) {
	if !s.Enabled() {
		return "", ErrTransferDisabled
	}
	if p == "" || !filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: server path must be absolute", files.ErrValidation)
	}
	clean := filepath.Clean(p)
	for _, root := range s.roots {
		if security.IsWithinRoot(clean, root) {
			return clean, nil
		}
	}
	return "", ErrTransferDisabled
}

// Import copies a server directory (recursively) or a single server file
// into targetFolder.
func (s *TransferService) Import(ctx context.Context, sourcePath, targetFolder string) (*files.TreeResult, error) {
	src, err := s.serverPath(sourcePath)
	if err != nil {
		return nil, err
	}
	targetFolder = strings.Trim(targetFolder, "/")
	if targetFolder != "" && !security.ValidateFolderPath(targetFolder) {
		return nil, security.ErrInvalidFolderPath
	}

	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: source path does not exist", files.ErrNotFound)
		}
		return nil, err
	}

	if parent := path.Dir(targetFolder); targetFolder != "" && parent != "." {
		if _, err := s.folders.EnsureFolder(ctx, parent); err != nil {
			return nil, err
		}
	}
	dst, err := s.store.Resolve(targetFolder)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		result, err := s.tree.Copy(ctx, src, dst)
		if err != nil {
			return nil, err
		}
		result.Operation = OpImport
		return result, nil
	}

	return s.importFile(ctx, src, targetFolder)
}

func (s *TransferService) importFile(ctx context.Context, src, targetFolder string) (*files.TreeResult, error) {
	result := files.NewTreeResult(OpImport)
	if IsReserved(src) {
		return nil, ErrReservedName
	}
	if _, err := s.folders.EnsureFolder(ctx, targetFolder); err != nil {
		return nil, err
	}

	dst, err := s.store.Resolve(path.Join(targetFolder, filepath.Base(src)))
	if err != nil {
		return nil, err
	}
	dst, err = s.tree.ResolveTarget(dst)
	if err != nil {
		result.AddError(fmt.Sprintf("skip %s: %v", filepath.Base(src), err))
		return result, nil
	}

	if err := copyFile(src, dst); err != nil {
		result.AddError(fmt.Sprintf("copy %s: %v", filepath.Base(src), unwrapPathError(err)))
		return result, nil
	}
	result.ItemsProcessed = 1
	return result, nil
}

// Export copies sourceFolder to a server path. The source is scanned first
// and an empty source is refused.
func (s *TransferService) Export(ctx context.Context, sourceFolder, targetPath string) (*ExportResult, error) {
	sourceFolder = strings.Trim(sourceFolder, "/")
	if !security.ValidateFolderPath(sourceFolder) {
		return nil, security.ErrInvalidFolderPath
	}
	dst, err := s.serverPath(targetPath)
	if err != nil {
		return nil, err
	}
	src, err := s.store.Resolve(sourceFolder)
	if err != nil {
		return nil, err
	}

	scan, err := s.tree.Scan(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(scan.Entries) == 0 {
		return nil, ErrEmptySource
	}
	var total int64
	for _, e := range scan.Entries {
		total += e.Size
	}

	result, err := s.tree.Copy(ctx, src, dst)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"source": sourceFolder,
		"target": dst,
		"copied": result.ItemsProcessed,
		"bytes":  total,
	}).Info("Folder exported")

	return &ExportResult{
		Copied:             result.ItemsProcessed,
		TotalSize:          total,
		TotalSizeFormatted: FormatFileSize(total),
		Errors:             result.Errors,
		Success:            result.Success(),
	}, nil
}
