package files

import "time"

// FileEntry is a regular file somewhere under the uploads root.
type FileEntry struct {
	Name          string    `json:"name"`
	Path          string    `json:"path"`   // slash separated, relative to the root
	Folder        string    `json:"folder"` // "" for files at the root
	URL           string    `json:"url"`
	Size          int64     `json:"size"`
	SizeFormatted string    `json:"sizeFormatted"`
	Type          string    `json:"type"` // lowercase extension including the dot
	ModTime       time.Time `json:"uploadedAt"`
}

// FileListing is the response shape of a recursive file listing.
type FileListing struct {
	Entries    []FileEntry `json:"files"`
	TotalCount int         `json:"totalCount"`
	TotalBytes int64       `json:"totalSize"`
}

// FolderNode is one node of the folder forest built from a flat path list.
type FolderNode struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Level    int           `json:"level"`
	Children []*FolderNode `json:"children"`
}

// ActionKind names a single filesystem step of a tree operation.
type ActionKind string

const (
	ActionMkdir      ActionKind = "mkdir"
	ActionMarker     ActionKind = "marker"
	ActionCopy       ActionKind = "copy"
	ActionRemoveFile ActionKind = "remove_file"
	ActionRemoveDir  ActionKind = "remove_dir"
	ActionSkip       ActionKind = "skip"
)

// Action is one planned step and, after execution, its outcome.
type Action struct {
	Kind      ActionKind `json:"kind"`
	Source    string     `json:"source,omitempty"`
	Target    string     `json:"target"`
	Overwrite bool       `json:"overwrite,omitempty"`
	Reserved  bool       `json:"reserved,omitempty"`
	Done      bool       `json:"done"`
	Error     string     `json:"error,omitempty"`
}

// TreeResult aggregates a best-effort batch operation.
type TreeResult struct {
	Operation      string      `json:"operation"`
	ItemsProcessed int         `json:"itemsProcessed"`
	Errors         []string    `json:"errors"`
	Actions        []Action    `json:"-"`
	Entries        []FileEntry `json:"-"`
}

// NewTreeResult returns an empty result for the named operation.
func NewTreeResult(operation string) *TreeResult {
	return &TreeResult{Operation: operation, Errors: []string{}}
}

// Success reports whether at least one item went through. A tree with
// nothing to process and no errors also counts as success.
func (r *TreeResult) Success() bool {
	return r.ItemsProcessed > 0 || len(r.Errors) == 0
}

// AddError records a per-entry failure.
func (r *TreeResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// BlobObject is a reference to an object in the external blob store.
type BlobObject struct {
	URL        string    `json:"url"`
	Pathname   string    `json:"pathname"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}
