package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nas-ai/uploads-api/src/config"
	"github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/metrics"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
)

// Operation names used in results, logs, metrics and the journal.
const (
	OpDelete = "delete"
	OpCopy   = "copy"
	OpMove   = "move"
	OpScan   = "scan"
)

// TreeOperator runs recursive delete, copy, move and scan over directory
// subtrees. Every mutating operation is planned first into an ordered
// action list and then executed step by step; a failing step is recorded
// and the remaining steps still run.
type TreeOperator struct {
	base   string
	policy string
	logger *logrus.Logger
}

// NewTreeOperator creates an operator. base is only used to shorten paths
// in error messages; the operator itself accepts any absolute path.
func NewTreeOperator(base, collisionPolicy string, logger *logrus.Logger) *TreeOperator {
	if collisionPolicy == "" {
		collisionPolicy = config.CollisionOverwrite
	}
	return &TreeOperator{base: base, policy: collisionPolicy, logger: logger}
}

// CollisionPolicy returns the configured merge collision policy.
func (o *TreeOperator) CollisionPolicy() string {
	return o.policy
}

type treePlan struct {
	op      string
	move    bool
	actions []files.Action
	errors  []string
	planned map[string]bool
}

func newPlan(op string) *treePlan {
	return &treePlan{op: op, move: op == OpMove, planned: make(map[string]bool)}
}

func (p *treePlan) add(a files.Action) {
	p.actions = append(p.actions, a)
	if a.Kind == files.ActionCopy {
		p.planned[a.Target] = true
	}
}

// =============================================================================
// SCAN
// =============================================================================

// Scan walks dir depth-first and collects every regular file except the
// marker. Paths in the entries are relative to the operator base when dir
// lies under it, otherwise relative to dir.
func (o *TreeOperator) Scan(ctx context.Context, dir string) (*files.TreeResult, error) {
	start := time.Now()
	result := files.NewTreeResult(OpScan)

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotADirectory
	}

	relBase := o.base
	if relBase == "" || !security.IsWithinRoot(dir, relBase) {
		relBase = dir
	}

	o.scanDir(ctx, dir, relBase, result)
	result.ItemsProcessed = len(result.Entries)
	o.finish(result, dir, "", start)
	return result, nil
}

func (o *TreeOperator) scanDir(ctx context.Context, dir, relBase string, result *files.TreeResult) {
	if ctx.Err() != nil {
		result.AddError(fmt.Sprintf("scan aborted: %v", ctx.Err()))
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		result.AddError(fmt.Sprintf("scan %s: %v", o.display(dir), err))
		return
	}

	for _, e := range entries {
		abs := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			o.scanDir(ctx, abs, relBase, result)
		case e.Type().IsRegular():
			if IsReserved(e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				result.AddError(fmt.Sprintf("scan %s: %v", o.display(abs), err))
				continue
			}
			rel, _ := filepath.Rel(relBase, abs)
			rel = filepath.ToSlash(rel)
			folder := filepath.ToSlash(filepath.Dir(rel))
			if folder == "." {
				folder = ""
			}
			result.Entries = append(result.Entries, files.FileEntry{
				Name:          e.Name(),
				Path:          rel,
				Folder:        folder,
				Size:          info.Size(),
				SizeFormatted: FormatFileSize(info.Size()),
				Type:          strings.ToLower(filepath.Ext(e.Name())),
				ModTime:       info.ModTime(),
			})
		}
	}
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes dir and everything below it, children first. Reserved
// markers are removed too but are not counted. Already removed entries are
// not restored when a later step fails.
func (o *TreeOperator) Delete(ctx context.Context, dir string) (*files.TreeResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotADirectory
	}
	if o.base != "" && dir == o.base {
		return nil, security.ErrPathTraversal
	}

	p := newPlan(OpDelete)
	o.planDelete(dir, p)
	return o.run(ctx, p, dir, ""), nil
}

// PlanDelete returns the ordered actions Delete would perform.
func (o *TreeOperator) PlanDelete(dir string) []files.Action {
	p := newPlan(OpDelete)
	o.planDelete(dir, p)
	return p.actions
}

func (o *TreeOperator) planDelete(dir string, p *treePlan) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("read %s: %v", o.display(dir), err))
	}

	for _, e := range entries {
		abs := filepath.Join(dir, e.Name())
		if e.IsDir() {
			o.planDelete(abs, p)
			continue
		}
		p.add(files.Action{Kind: files.ActionRemoveFile, Target: abs, Reserved: IsReserved(e.Name())})
	}

	p.add(files.Action{Kind: files.ActionRemoveDir, Target: dir})
}

// =============================================================================
// COPY / MOVE
// =============================================================================

// Copy recreates src below dst. Missing directories are created, the marker
// is written fresh into every destination directory and never copied.
func (o *TreeOperator) Copy(ctx context.Context, src, dst string) (*files.TreeResult, error) {
	if err := o.checkTransfer(src, dst); err != nil {
		return nil, err
	}

	p := newPlan(OpCopy)
	o.planCopy(src, dst, p)
	return o.run(ctx, p, src, dst), nil
}

// Move relocates src to dst. When dst already is a directory the contents
// are merged into it according to the collision policy. Files are renamed
// natively when possible and copied otherwise; the source tree is removed
// afterwards except for files that could not be transferred.
func (o *TreeOperator) Move(ctx context.Context, src, dst string) (*files.TreeResult, error) {
	if err := o.checkTransfer(src, dst); err != nil {
		return nil, err
	}

	p := newPlan(OpMove)
	o.planCopy(src, dst, p)
	o.planDelete(src, p)
	return o.run(ctx, p, src, dst), nil
}

// PlanMove returns the ordered actions Move would perform.
func (o *TreeOperator) PlanMove(src, dst string) []files.Action {
	p := newPlan(OpMove)
	o.planCopy(src, dst, p)
	o.planDelete(src, p)
	return p.actions
}

func (o *TreeOperator) checkTransfer(src, dst string) error {
	if src == dst {
		return ErrSameLocation
	}
	if security.IsWithinRoot(dst, src) {
		return ErrMoveIntoSelf
	}

	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrFolderNotFound
		}
		return err
	}
	if !info.IsDir() {
		return ErrNotADirectory
	}

	if dstInfo, err := os.Stat(dst); err == nil && !dstInfo.IsDir() {
		return ErrExistsAsFile
	}
	return nil
}

func (o *TreeOperator) planCopy(src, dst string, p *treePlan) {
	p.add(files.Action{Kind: files.ActionMkdir, Target: dst})
	p.add(files.Action{Kind: files.ActionMarker, Target: dst})

	entries, err := os.ReadDir(src)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("read %s: %v", o.display(src), err))
		return
	}

	for _, e := range entries {
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())

		switch {
		case e.IsDir():
			o.planCopy(s, d, p)
		case e.Type().IsRegular():
			if IsReserved(e.Name()) {
				continue
			}
			o.planFile(s, d, p)
		default:
			p.add(files.Action{Kind: files.ActionSkip, Source: s, Target: d, Error: "not a regular file"})
		}
	}
}

func (o *TreeOperator) planFile(src, dst string, p *treePlan) {
	info, err := os.Lstat(dst)
	exists := err == nil || p.planned[dst]
	if !exists {
		p.add(files.Action{Kind: files.ActionCopy, Source: src, Target: dst})
		return
	}
	if err == nil && info.IsDir() {
		p.add(files.Action{Kind: files.ActionSkip, Source: src, Target: dst, Error: "destination is a folder"})
		return
	}

	switch o.policy {
	case config.CollisionSkip:
		p.add(files.Action{Kind: files.ActionSkip, Source: src, Target: dst, Error: "destination exists"})
	case config.CollisionRename:
		p.add(files.Action{Kind: files.ActionCopy, Source: src, Target: o.freeName(dst, p)})
	default:
		p.add(files.Action{Kind: files.ActionCopy, Source: src, Target: dst, Overwrite: true})
	}
}

// ResolveTarget applies the collision policy to one incoming file bound
// for the absolute path dst. Under the skip policy an existing file yields
// ErrFileExists.
func (o *TreeOperator) ResolveTarget(dst string) (string, error) {
	info, err := os.Lstat(dst)
	if err != nil {
		return dst, nil
	}
	if info.IsDir() {
		return "", ErrTargetIsFolder
	}

	switch o.policy {
	case config.CollisionSkip:
		return "", ErrFileExists
	case config.CollisionRename:
		return o.freeName(dst, newPlan(OpCopy)), nil
	default:
		return dst, nil
	}
}

// freeName finds "<name>_<n><ext>" that neither exists nor is planned.
func (o *TreeOperator) freeName(dst string, p *treePlan) string {
	dir := filepath.Dir(dst)
	ext := filepath.Ext(dst)
	stem := strings.TrimSuffix(filepath.Base(dst), ext)

	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
		if p.planned[candidate] {
			continue
		}
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// =============================================================================
// EXECUTION
// =============================================================================

func (o *TreeOperator) run(ctx context.Context, p *treePlan, src, dst string) *files.TreeResult {
	start := time.Now()
	result := files.NewTreeResult(p.op)
	result.Errors = append(result.Errors, p.errors...)

	// Sources that must survive the delete phase of a move.
	var retained []string

	for i := range p.actions {
		a := &p.actions[i]

		if err := ctx.Err(); err != nil {
			result.AddError(fmt.Sprintf("%s aborted after %d of %d steps: %v", p.op, i, len(p.actions), err))
			break
		}

		var err error
		switch a.Kind {
		case files.ActionMkdir:
			err = os.MkdirAll(a.Target, 0o755)
		case files.ActionMarker:
			err = WriteMarker(a.Target)
		case files.ActionCopy:
			if p.move {
				err = moveFile(a.Source, a.Target)
			} else {
				err = copyFile(a.Source, a.Target)
			}
			if err != nil {
				retained = append(retained, a.Source)
			}
		case files.ActionSkip:
			retained = append(retained, a.Source)
			result.AddError(fmt.Sprintf("skip %s: %s", o.display(a.Source), a.Error))
			continue
		case files.ActionRemoveFile:
			if containsPath(retained, a.Target) {
				continue
			}
			err = os.Remove(a.Target)
			if p.move && os.IsNotExist(err) {
				// renamed away during the copy phase
				err = nil
			}
		case files.ActionRemoveDir:
			if anyWithin(retained, a.Target) {
				continue
			}
			err = os.Remove(a.Target)
		}

		if err != nil {
			a.Error = err.Error()
			result.AddError(fmt.Sprintf("%s %s: %v", a.Kind, o.display(a.Target), unwrapPathError(err)))
			continue
		}

		a.Done = true
		if counts(p.op, a) {
			result.ItemsProcessed++
		}
	}

	result.Actions = p.actions
	o.finish(result, src, dst, start)
	return result
}

// counts decides which completed actions are reported as processed items:
// removed user files for delete, transferred files for copy and move.
func counts(op string, a *files.Action) bool {
	switch op {
	case OpDelete:
		return a.Kind == files.ActionRemoveFile && !a.Reserved
	case OpCopy, OpMove:
		return a.Kind == files.ActionCopy
	}
	return false
}

func (o *TreeOperator) finish(result *files.TreeResult, src, dst string, start time.Time) {
	duration := time.Since(start)
	metrics.RecordTreeOperation(result.Operation, result.ItemsProcessed, len(result.Errors), result.Success(), duration)

	entry := o.logger.WithFields(logrus.Fields{
		"operation": result.Operation,
		"source":    o.display(src),
		"processed": result.ItemsProcessed,
		"errors":    len(result.Errors),
		"duration":  duration.String(),
	})
	if dst != "" {
		entry = entry.WithField("destination", o.display(dst))
	}
	if len(result.Errors) > 0 {
		entry.Warn("Tree operation finished with errors")
		return
	}
	entry.Debug("Tree operation finished")
}

func (o *TreeOperator) display(path string) string {
	if o.base == "" || !security.IsWithinRoot(path, o.base) {
		return path
	}
	rel, err := filepath.Rel(o.base, path)
	if err != nil || rel == "." {
		return "/"
	}
	return filepath.ToSlash(rel)
}

// copyFile copies through a temp file in dst's directory and renames it over
// dst only when the copy completed.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".part-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = io.Copy(tmp, in)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0o644)
	}
	if err == nil {
		err = os.Rename(tmpName, dst)
	}
	if err != nil {
		os.Remove(tmpName)
	}
	return err
}

// moveFile renames when source and target share a device and falls back to
// copy plus remove otherwise.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func containsPath(list []string, path string) bool {
	for _, p := range list {
		if p == path {
			return true
		}
	}
	return false
}

func anyWithin(list []string, dir string) bool {
	for _, p := range list {
		if security.IsWithinRoot(p, dir) {
			return true
		}
	}
	return false
}

func unwrapPathError(err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
