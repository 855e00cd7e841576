package content

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nas-ai/uploads-api/src/drivers/storage"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
)

// Security constants for ZIP extraction
const (
	// ZipMagicBytes - First 4 bytes of a valid ZIP file
	ZipMagicBytes = "PK\x03\x04"

	// MaxDecompressedSize - Maximum total decompressed size (1 GB)
	MaxDecompressedSize int64 = 1024 * 1024 * 1024

	// MaxFileCount - Maximum number of files allowed in a ZIP
	MaxFileCount = 10000

	// MaxSingleFileSize - Maximum size for a single extracted file (500MB)
	MaxSingleFileSize int64 = 500 * 1024 * 1024

	// MaxCompressionRatio - Maximum allowed ratio of uncompressed/compressed size
	MaxCompressionRatio = 100
)

// UnzipResult contains information about the extraction result
type UnzipResult struct {
	Folder         string   `json:"folder"`
	ExtractedFiles []string `json:"extractedFiles"`
	Skipped        []string `json:"skipped"`
	TotalBytes     int64    `json:"totalSize"`
	FileCount      int      `json:"fileCount"`
}

// ArchiveService imports zip archives into folders and streams folders out
// as zip archives.
type ArchiveService struct {
	store   storage.StorageProvider
	folders *FolderRegistry
	tree    *TreeOperator
	logger  *logrus.Logger
}

func NewArchiveService(store storage.StorageProvider, folders *FolderRegistry, tree *TreeOperator, logger *logrus.Logger) *ArchiveService {
	return &ArchiveService{
		store:   store,
		folders: folders,
		tree:    tree,
		logger:  logger,
	}
}

// ImportArchive extracts a zip into folder. Every directory that ends up
// holding extracted content gets a fresh marker.
func (s *ArchiveService) ImportArchive(ctx context.Context, src io.Reader, size int64, folder string) (*UnzipResult, error) {
	folder = strings.Trim(folder, "/")
	if folder != "" && !security.ValidateFolderPath(folder) {
		return nil, security.ErrInvalidFolderPath
	}
	if _, err := s.folders.EnsureFolder(ctx, folder); err != nil {
		return nil, err
	}
	dest, err := s.store.Resolve(folder)
	if err != nil {
		return nil, err
	}

	result, err := s.UnzipSecure(ctx, src, size, dest)
	if err != nil {
		return nil, err
	}
	result.Folder = folder

	for i, abs := range result.ExtractedFiles {
		if rel, err := s.store.Rel(abs); err == nil {
			result.ExtractedFiles[i] = rel
		}
	}

	s.logger.WithFields(logrus.Fields{
		"folder":  folder,
		"files":   result.FileCount,
		"bytes":   result.TotalBytes,
		"skipped": len(result.Skipped),
	}).Info("Archive imported")
	return result, nil
}

// UnzipSecure extracts a ZIP archive securely with multiple protection layers
func (s *ArchiveService) UnzipSecure(ctx context.Context, src io.Reader, size int64, destPath string) (*UnzipResult, error) {
	if size < 0 {
		size = 0
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(buf, src); err != nil {
		return nil, fmt.Errorf("failed to read zip content: %w", err)
	}
	zipData := buf.Bytes()

	// 1. Check Magic Bytes strictly
	if len(zipData) < 4 || string(zipData[:4]) != ZipMagicBytes {
		return nil, fmt.Errorf("%w: not a zip file", ErrInvalidArchive)
	}

	reader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	// 2. Pre-Check Limits (DoS Prevention)
	if len(reader.File) > MaxFileCount {
		return nil, fmt.Errorf("%w: too many files in archive (max %d)", ErrInvalidArchive, MaxFileCount)
	}

	result := &UnzipResult{
		ExtractedFiles: make([]string, 0),
		Skipped:        make([]string, 0),
	}

	destination := filepath.Clean(destPath)
	dirs := map[string]bool{destination: true}
	var totalSize int64

	for _, f := range reader.File {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// 3. Path Traversal Prevention (Zip Slip)
		fpath := filepath.Join(destination, f.Name)
		if fpath == destination || !security.IsWithinRoot(fpath, destination) {
			s.logger.Warnf("Zip Slip attempt detected: %s tries to write outside %s", f.Name, destination)
			return nil, fmt.Errorf("%w: illegal file path %s", ErrInvalidArchive, f.Name)
		}

		// 4. Block Symlinks
		if f.Mode()&os.ModeSymlink != 0 {
			s.logger.Warnf("Symlink detected and blocked: %s", f.Name)
			result.Skipped = append(result.Skipped, f.Name)
			continue
		}

		// Folders must satisfy the same naming rule as everything else in
		// the tree, otherwise nothing could list or move them afterwards.
		if !validArchiveDirs(destination, fpath, f.FileInfo().IsDir()) {
			s.logger.WithField("entry", f.Name).Warn("Archive entry skipped: invalid folder name")
			result.Skipped = append(result.Skipped, f.Name)
			continue
		}

		// 5. Individual File Size Limit
		if f.UncompressedSize64 > uint64(MaxSingleFileSize) {
			return nil, fmt.Errorf("%w: %s exceeds max size limit", ErrInvalidArchive, f.Name)
		}

		// 6. Check for Zip Bomb (Compression Ratio)
		if f.UncompressedSize64 > 0 && f.CompressedSize64 > 0 {
			ratio := float64(f.UncompressedSize64) / float64(f.CompressedSize64)
			if ratio > float64(MaxCompressionRatio) {
				return nil, fmt.Errorf("%w: compression ratio too high in %s", ErrInvalidArchive, f.Name)
			}
		}

		totalSize += int64(f.UncompressedSize64)
		if totalSize > MaxDecompressedSize {
			return nil, fmt.Errorf("%w: total decompressed size exceeds limit", ErrInvalidArchive)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0o755); err != nil {
				return nil, err
			}
			dirs[fpath] = true
			continue
		}

		// The marker is regenerated, never taken from the archive.
		if IsReserved(f.Name) {
			result.Skipped = append(result.Skipped, f.Name)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
			return nil, err
		}
		for d := filepath.Dir(fpath); security.IsWithinRoot(d, destination) && !dirs[d]; d = filepath.Dir(d) {
			dirs[d] = true
		}

		// 7. Sanitize Permissions: never trust file modes from the zip.
		if err := extractFile(f, fpath); err != nil {
			return nil, err
		}

		result.ExtractedFiles = append(result.ExtractedFiles, fpath)
		result.FileCount++
	}

	for d := range dirs {
		if err := WriteMarker(d); err != nil {
			s.logger.WithError(err).WithField("dir", d).Warn("Failed to write marker after extraction")
		}
	}

	result.TotalBytes = totalSize
	return result, nil
}

func extractFile(f *zip.File, fpath string) error {
	outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		outFile.Close()
		return err
	}

	// Cap the copy in case the header lies about the size.
	_, err = io.Copy(outFile, io.LimitReader(rc, MaxSingleFileSize+1))

	outFile.Close()
	rc.Close()
	return err
}

// ExportZip writes every file below folder (marker excluded) into w as a
// zip archive. Entry names are relative to folder.
func (s *ArchiveService) ExportZip(ctx context.Context, folder string, w io.Writer) (int, error) {
	folder = strings.Trim(folder, "/")
	if folder != "" && !security.ValidateFolderPath(folder) {
		return 0, security.ErrInvalidFolderPath
	}
	dir, err := s.store.Resolve(folder)
	if err != nil {
		return 0, err
	}

	scan, err := s.tree.Scan(ctx, dir)
	if err != nil {
		return 0, err
	}

	zw := zip.NewWriter(w)
	written := 0
	for _, e := range scan.Entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return written, err
		}

		name := e.Path
		if folder != "" {
			name = strings.TrimPrefix(e.Path, folder+"/")
		}
		if err := s.addToZip(zw, e.Path, name, e.ModTime); err != nil {
			zw.Close()
			return written, fmt.Errorf("add %s: %w", e.Path, err)
		}
		written++
	}

	if err := zw.Close(); err != nil {
		return written, err
	}
	return written, nil
}

func (s *ArchiveService) addToZip(zw *zip.Writer, rel, name string, modTime time.Time) error {
	in, err := s.store.ReadFile(context.Background(), rel)
	if err != nil {
		return err
	}
	defer in.Close()

	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	hdr.Modified = modTime
	out, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	return err
}

// validArchiveDirs reports whether every folder segment of fpath below
// destination is a valid folder name. For files the last segment is the file
// name and is not checked here.
func validArchiveDirs(destination, fpath string, isDir bool) bool {
	rel, err := filepath.Rel(destination, fpath)
	if err != nil {
		return false
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	if !isDir {
		segments = segments[:len(segments)-1]
	}
	for _, seg := range segments {
		if !security.ValidateFolderName(seg) {
			return false
		}
	}
	return true
}
