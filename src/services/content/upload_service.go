package content

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"github.com/nas-ai/uploads-api/src/drivers/storage"
	"github.com/nas-ai/uploads-api/src/metrics"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
)

// sniffLen is what http.DetectContentType looks at.
const sniffLen = 512

// UploadedFile describes one stored file of a batch.
type UploadedFile struct {
	OriginalName string `json:"originalName"`
	Filename     string `json:"filename"`
	Path         string `json:"path"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
}

// UploadResult is returned for a fully stored batch.
type UploadResult struct {
	Folder     string         `json:"folder"`
	Files      []UploadedFile `json:"files"`
	TotalBytes int64          `json:"totalSize"`
}

// UploadService stores multipart batches under a folder. A batch is
// validated as a whole before the first byte is written.
type UploadService struct {
	store     storage.StorageProvider
	folders   *FolderRegistry
	validator *FileValidator
	logger    *logrus.Logger
	now       func() time.Time
}

func NewUploadService(store storage.StorageProvider, folders *FolderRegistry, validator *FileValidator, logger *logrus.Logger) *UploadService {
	return &UploadService{
		store:     store,
		folders:   folders,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// Upload validates every file of the batch, creates the folder when needed
// and writes the files one after another. When a write fails, the files
// already written by this call are removed again.
func (s *UploadService) Upload(ctx context.Context, folder string, headers []*multipart.FileHeader) (*UploadResult, error) {
	folder = strings.Trim(folder, "/")
	if folder != "" && !security.ValidateFolderPath(folder) {
		return nil, security.ErrInvalidFolderPath
	}
	if len(headers) == 0 {
		return nil, ErrNoFiles
	}

	if err := s.validateBatch(headers); err != nil {
		metrics.RecordUploadBatch(0, false)
		return nil, err
	}

	created, err := s.folders.EnsureFolder(ctx, folder)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.WithField("folder", folder).Info("Folder created for upload")
	}

	result := &UploadResult{Folder: folder, Files: make([]UploadedFile, 0, len(headers))}
	for _, fh := range headers {
		if err := ctx.Err(); err != nil {
			s.rollback(ctx, result.Files)
			return nil, err
		}

		stored, err := s.store1(ctx, folder, fh)
		if err != nil {
			s.rollback(ctx, result.Files)
			metrics.RecordUploadBatch(0, false)
			return nil, fmt.Errorf("store %s: %w", fh.Filename, err)
		}
		result.Files = append(result.Files, *stored)
		result.TotalBytes += stored.Size
	}

	metrics.RecordUploadBatch(result.TotalBytes, true)
	s.logger.WithFields(logrus.Fields{
		"folder": folder,
		"files":  len(result.Files),
		"bytes":  result.TotalBytes,
	}).Info("Upload batch stored")
	return result, nil
}

func (s *UploadService) validateBatch(headers []*multipart.FileHeader) error {
	var rejections []FileRejection
	reject := func(name string, err error) {
		rejections = append(rejections, FileRejection{Name: name, Reason: err.Error(), err: err})
	}

	for _, fh := range headers {
		declared := fh.Header.Get("Content-Type")
		if err := s.validator.ValidateType(declared); err != nil {
			reject(fh.Filename, err)
			continue
		}
		if err := s.validator.ValidateSize(fh.Size); err != nil {
			reject(fh.Filename, err)
			continue
		}

		head, err := readHead(fh)
		if err != nil {
			reject(fh.Filename, err)
			continue
		}
		if err := s.validator.ValidateContent(declared, head); err != nil {
			reject(fh.Filename, err)
		}
	}

	if len(rejections) > 0 {
		return &BatchValidationError{Rejections: rejections}
	}
	return nil
}

func readHead(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func (s *UploadService) store1(ctx context.Context, folder string, fh *multipart.FileHeader) (*UploadedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := UniqueFilename(fh.Filename, s.now())
	rel := name
	if folder != "" {
		rel = path.Join(folder, name)
	}

	n, err := s.store.WriteFile(ctx, rel, f)
	if err != nil {
		return nil, err
	}

	return &UploadedFile{
		OriginalName: fh.Filename,
		Filename:     name,
		Path:         rel,
		URL:          PublicURL(rel),
		Size:         n,
		Type:         strings.ToLower(path.Ext(name)),
	}, nil
}

func (s *UploadService) rollback(ctx context.Context, written []UploadedFile) {
	for _, f := range written {
		if err := s.store.Remove(ctx, f.Path); err != nil {
			s.logger.WithError(err).WithField("file", f.Path).Warn("Failed to remove file of aborted upload")
		}
	}
}
