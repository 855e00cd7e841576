package content

import (
	"fmt"

	"github.com/nas-ai/uploads-api/src/domain/files"
)

var (
	ErrFolderNotFound   = fmt.Errorf("%w: folder does not exist", files.ErrNotFound)
	ErrFileNotFound     = fmt.Errorf("%w: file does not exist", files.ErrNotFound)
	ErrFolderExists     = fmt.Errorf("%w: folder already exists", files.ErrConflict)
	ErrExistsAsFile     = fmt.Errorf("%w: a file with this name already exists", files.ErrConflict)
	ErrFileExists       = fmt.Errorf("%w: destination file already exists", files.ErrConflict)
	ErrTargetIsFolder   = fmt.Errorf("%w: destination is a folder", files.ErrConflict)
	ErrNotADirectory    = fmt.Errorf("%w: source is not a folder", files.ErrValidation)
	ErrNotAFile         = fmt.Errorf("%w: source is not a file", files.ErrValidation)
	ErrSameLocation     = fmt.Errorf("%w: source and destination are identical", files.ErrValidation)
	ErrMoveIntoSelf     = fmt.Errorf("%w: cannot move or copy a folder into itself or one of its subfolders", files.ErrValidation)
	ErrReservedName     = fmt.Errorf("%w: reserved file", files.ErrForbidden)
	ErrInvalidFileType  = fmt.Errorf("%w: file type not allowed", files.ErrValidation)
	ErrFileTooLarge     = fmt.Errorf("%w: file too large", files.ErrValidation)
	ErrExtensionChanged = fmt.Errorf("%w: file extension cannot be changed", files.ErrValidation)
	ErrNoFiles          = fmt.Errorf("%w: no files provided", files.ErrValidation)
	ErrEmptySource      = fmt.Errorf("%w: source folder contains no files", files.ErrValidation)
	ErrTransferDisabled = fmt.Errorf("%w: path is outside the configured transfer roots", files.ErrForbidden)
	ErrInvalidArchive   = fmt.Errorf("%w: invalid archive", files.ErrValidation)
)

// FileRejection describes why one file of a batch was refused.
type FileRejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	err    error
}

// BatchValidationError is returned when any file of an upload batch fails
// validation. Nothing of the batch has been written at that point.
type BatchValidationError struct {
	Rejections []FileRejection
}

func (e *BatchValidationError) Error() string {
	if len(e.Rejections) == 1 {
		r := e.Rejections[0]
		return fmt.Sprintf("%s: %s", r.Name, r.Reason)
	}
	return fmt.Sprintf("%d files rejected, first: %s: %s", len(e.Rejections), e.Rejections[0].Name, e.Rejections[0].Reason)
}

func (e *BatchValidationError) Unwrap() error {
	return files.ErrValidation
}
