package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/drivers/blob"
	"github.com/nas-ai/uploads-api/src/drivers/storage"
	"github.com/nas-ai/uploads-api/src/metrics"
	"github.com/nas-ai/uploads-api/src/services/content"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
)

// Operation names
const (
	OpBlobImport = "blob_import"
	OpBlobExport = "blob_export"
)

var (
	ErrBlobTooLarge   = fmt.Errorf("%w: blob exceeds the import size limit", files.ErrValidation)
	ErrInvalidBlobRef = fmt.Errorf("%w: blob url has no usable file name", files.ErrValidation)
	ErrMissingURL     = fmt.Errorf("%w: blobUrl is required", files.ErrValidation)
	ErrMissingPrefix  = fmt.Errorf("%w: folderName is required for batch import", files.ErrValidation)
	ErrInvalidFolder  = fmt.Errorf("%w: invalid target folder", files.ErrValidation)
	ErrNoBlobs        = fmt.Errorf("%w: no blobs found under prefix", files.ErrNotFound)
)

// BlobFile is a listed remote object.
type BlobFile struct {
	files.BlobObject
	SizeFormatted string `json:"sizeFormatted"`
}

// BlobListing is the result of List.
type BlobListing struct {
	Files              []BlobFile `json:"files"`
	TotalFiles         int        `json:"totalFiles"`
	TotalSize          int64      `json:"totalSize"`
	TotalSizeFormatted string     `json:"totalSizeFormatted"`
}

// ImportedBlob describes one blob written to local storage.
type ImportedBlob struct {
	Name            string `json:"name"`
	Path            string `json:"path"`
	URL             string `json:"url"`
	Size            int64  `json:"size"`
	DeletedFromBlob bool   `json:"deletedFromBlob"`
	Warning         string `json:"warning,omitempty"`
}

// BatchImportResult aggregates a prefix import.
type BatchImportResult struct {
	*files.TreeResult
	Imported        []ImportedBlob `json:"imported"`
	DeletedFromBlob int            `json:"deletedFromBlob"`
}

// BlobBridge moves files between the remote blob store and the uploads root.
// Downloads and uploads run sequentially.
type BlobBridge struct {
	remote   blob.Store
	disk     storage.StorageProvider
	folders  *content.FolderRegistry
	tree     *content.TreeOperator
	maxBytes int64
	logger   *logrus.Logger
}

func NewBlobBridge(remote blob.Store, disk storage.StorageProvider, folders *content.FolderRegistry, tree *content.TreeOperator, maxBytes int64, logger *logrus.Logger) *BlobBridge {
	return &BlobBridge{
		remote:   remote,
		disk:     disk,
		folders:  folders,
		tree:     tree,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Provider names the configured backend.
func (b *BlobBridge) Provider() string {
	return b.remote.Provider()
}

// List returns remote objects under prefix, hiding markers.
func (b *BlobBridge) List(ctx context.Context, prefix string) (*BlobListing, error) {
	objects, err := b.remote.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	listing := &BlobListing{Files: make([]BlobFile, 0, len(objects))}
	for _, obj := range objects {
		if isMarkerPath(obj.Pathname) {
			continue
		}
		listing.Files = append(listing.Files, BlobFile{
			BlobObject:    obj,
			SizeFormatted: content.FormatFileSize(obj.Size),
		})
		listing.TotalSize += obj.Size
	}
	sort.SliceStable(listing.Files, func(i, j int) bool {
		return listing.Files[i].UploadedAt.After(listing.Files[j].UploadedAt)
	})

	listing.TotalFiles = len(listing.Files)
	listing.TotalSizeFormatted = content.FormatFileSize(listing.TotalSize)
	return listing, nil
}

// Delete removes one remote object.
func (b *BlobBridge) Delete(ctx context.Context, blobURL string) error {
	if strings.TrimSpace(blobURL) == "" {
		return ErrMissingURL
	}
	if err := b.remote.Delete(ctx, blobURL); err != nil {
		return err
	}
	b.logger.WithFields(logrus.Fields{
		"provider": b.remote.Provider(),
		"url":      blobURL,
	}).Info("Blob deleted")
	return nil
}

// ImportOne downloads the blob at blobURL into targetFolder, keeping the
// last URL segment as file name. The remote copy is deleted afterwards when
// deleteAfter is set; a failed delete only produces a warning.
func (b *BlobBridge) ImportOne(ctx context.Context, blobURL, targetFolder string, deleteAfter bool) (*ImportedBlob, error) {
	if strings.TrimSpace(blobURL) == "" {
		return nil, ErrMissingURL
	}
	if !security.ValidateFolderPath(targetFolder) {
		return nil, ErrInvalidFolder
	}
	name, err := nameFromURL(blobURL)
	if err != nil {
		return nil, err
	}

	if _, err := b.folders.EnsureFolder(ctx, targetFolder); err != nil {
		return nil, err
	}

	imported, err := b.download(ctx, blobURL, targetFolder, name)
	if err != nil {
		return nil, err
	}

	if deleteAfter {
		b.deleteAfterImport(ctx, blobURL, imported)
	}

	b.logger.WithFields(logrus.Fields{
		"provider": b.remote.Provider(),
		"url":      blobURL,
		"path":     imported.Path,
		"size":     imported.Size,
	}).Info("Blob imported")
	return imported, nil
}

// ImportBatch imports every blob whose pathname starts with folderName+"/"
// into targetFolder. Files land flat in targetFolder under their base name.
func (b *BlobBridge) ImportBatch(ctx context.Context, folderName, targetFolder string, deleteAfter bool) (*BatchImportResult, error) {
	start := time.Now()
	prefix := strings.Trim(folderName, "/")
	if prefix == "" {
		return nil, ErrMissingPrefix
	}
	if !security.ValidateFolderPath(prefix) {
		return nil, fmt.Errorf("%w: invalid folderName", files.ErrValidation)
	}
	if !security.ValidateFolderPath(targetFolder) {
		return nil, ErrInvalidFolder
	}
	prefix += "/"

	objects, err := b.remote.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var matching []files.BlobObject
	for _, obj := range objects {
		if strings.HasPrefix(obj.Pathname, prefix) && !isMarkerPath(obj.Pathname) && !strings.HasSuffix(obj.Pathname, "/") {
			matching = append(matching, obj)
		}
	}

	if len(matching) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoBlobs, folderName)
	}
	result := &BatchImportResult{TreeResult: files.NewTreeResult(OpBlobImport), Imported: []ImportedBlob{}}

	if _, err := b.folders.EnsureFolder(ctx, targetFolder); err != nil {
		return nil, err
	}

	for _, obj := range matching {
		if ctx.Err() != nil {
			result.AddError(fmt.Sprintf("aborted: %v", ctx.Err()))
			break
		}

		name := path.Base(obj.Pathname)
		imported, err := b.download(ctx, obj.URL, targetFolder, name)
		if err != nil {
			result.AddError(fmt.Sprintf("import %s: %v", obj.Pathname, err))
			continue
		}
		if deleteAfter {
			b.deleteAfterImport(ctx, obj.URL, imported)
			if imported.DeletedFromBlob {
				result.DeletedFromBlob++
			}
		}
		result.Imported = append(result.Imported, *imported)
		result.ItemsProcessed++
	}

	metrics.RecordTreeOperation(OpBlobImport, result.ItemsProcessed, len(result.Errors), result.Success(), time.Since(start))
	b.logger.WithFields(logrus.Fields{
		"provider":       b.remote.Provider(),
		"prefix":         prefix,
		"target":         targetFolder,
		"imported":       result.ItemsProcessed,
		"errors":         len(result.Errors),
		"deleted_remote": result.DeletedFromBlob,
		"duration_ms":    time.Since(start).Milliseconds(),
	}).Info("Blob batch import finished")
	return result, nil
}

// ExportFolder uploads every file of a local folder subtree to the blob
// store under prefix, keeping relative paths.
func (b *BlobBridge) ExportFolder(ctx context.Context, folder, prefix string) (*files.TreeResult, error) {
	start := time.Now()
	if folder != "" && !security.ValidateFolderPath(folder) {
		return nil, ErrInvalidFolder
	}
	abs, err := b.disk.Resolve(folder)
	if err != nil {
		return nil, err
	}

	scan, err := b.tree.Scan(ctx, abs)
	if err != nil {
		return nil, err
	}
	if len(scan.Entries) == 0 {
		return nil, content.ErrEmptySource
	}

	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = strings.Trim(folder, "/")
	}

	result := files.NewTreeResult(OpBlobExport)
	for _, entry := range scan.Entries {
		if ctx.Err() != nil {
			result.AddError(fmt.Sprintf("aborted: %v", ctx.Err()))
			break
		}

		inFolder := strings.TrimPrefix(strings.TrimPrefix(entry.Path, strings.Trim(folder, "/")), "/")
		pathname := path.Join(prefix, inFolder)
		if err := b.push(ctx, entry.Path, pathname, entry.Size); err != nil {
			result.AddError(fmt.Sprintf("export %s: %v", entry.Path, err))
			continue
		}
		result.ItemsProcessed++
	}

	metrics.RecordTreeOperation(OpBlobExport, result.ItemsProcessed, len(result.Errors), result.Success(), time.Since(start))
	b.logger.WithFields(logrus.Fields{
		"provider":    b.remote.Provider(),
		"folder":      folder,
		"prefix":      prefix,
		"exported":    result.ItemsProcessed,
		"errors":      len(result.Errors),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Blob export finished")
	return result, nil
}

func (b *BlobBridge) push(ctx context.Context, rel, pathname string, size int64) error {
	rc, err := b.disk.ReadFile(ctx, rel)
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = b.remote.Put(ctx, pathname, rc, size, content.ContentTypeFor(rel))
	return err
}

// download streams one blob into folder/name honouring the collision policy
// and the size limit.
func (b *BlobBridge) download(ctx context.Context, blobURL, folder, name string) (*ImportedBlob, error) {
	if content.IsReserved(name) {
		return nil, content.ErrReservedName
	}

	dst, err := b.disk.Resolve(path.Join(folder, name))
	if err != nil {
		return nil, err
	}
	dst, err = b.tree.ResolveTarget(dst)
	if err != nil {
		return nil, err
	}
	rel, err := b.disk.Rel(dst)
	if err != nil {
		return nil, err
	}

	body, err := b.remote.Fetch(ctx, blobURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var src io.Reader = body
	if b.maxBytes > 0 {
		src = &cappedReader{r: io.LimitReader(body, b.maxBytes+1), max: b.maxBytes}
	}

	// WriteFile only replaces the target once the whole body has arrived,
	// so an oversized or interrupted download leaves an existing file alone.
	n, err := b.disk.WriteFile(ctx, rel, src)
	if errors.Is(err, ErrBlobTooLarge) {
		return nil, ErrBlobTooLarge
	}
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", rel, err)
	}

	return &ImportedBlob{
		Name: path.Base(rel),
		Path: rel,
		URL:  content.PublicURL(rel),
		Size: n,
	}, nil
}

func (b *BlobBridge) deleteAfterImport(ctx context.Context, blobURL string, imported *ImportedBlob) {
	if err := b.remote.Delete(ctx, blobURL); err != nil {
		imported.Warning = fmt.Sprintf("imported but remote delete failed: %v", err)
		b.logger.WithError(err).WithField("url", blobURL).Warn("Failed to delete blob after import")
		return
	}
	imported.DeletedFromBlob = true
}

func nameFromURL(blobURL string) (string, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid blob url", files.ErrValidation)
	}
	name, err := url.PathUnescape(path.Base(u.EscapedPath()))
	if err != nil {
		return "", ErrInvalidBlobRef
	}
	if name == "" || name == "." || name == "/" || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidBlobRef
	}
	return name, nil
}

func isMarkerPath(pathname string) bool {
	return content.IsReserved(path.Base(pathname))
}

// cappedReader fails once more than max bytes have been read.
type cappedReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read > c.max {
		return n, ErrBlobTooLarge
	}
	return n, err
}
