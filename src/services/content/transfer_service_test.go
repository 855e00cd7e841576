package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransferEnv(t *testing.T) (*testEnv, *TransferService, string) {
	t.Helper()
	env := newTestEnv(t)
	outside := t.TempDir()
	svc := NewTransferService([]string{outside}, env.store, env.tree, env.folders, env.logger)
	return env, svc, outside
}

func TestTransferService_DisabledWithoutRoots(t *testing.T) {
	env := newTestEnv(t)
	svc := NewTransferService(nil, env.store, env.tree, env.folders, env.logger)

	assert.False(t, svc.Enabled())
	_, err := svc.Import(context.Background(), "/tmp", "a")
	assert.ErrorIs(t, err, ErrTransferDisabled)
	_, err = svc.Export(context.Background(), "a", "/tmp/out")
	assert.ErrorIs(t, err, ErrTransferDisabled)
}

func TestTransferService_ImportDirectory(t *testing.T) {
	env, svc, outside := newTransferEnv(t)
	src := filepath.Join(outside, "camera")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "raw"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.png"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "raw", "b.png"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, MarkerFileName), []byte("foreign"), 0o644))

	result, err := svc.Import(context.Background(), src, "imports/camera")
	require.NoError(t, err)

	assert.Equal(t, OpImport, result.Operation)
	assert.Equal(t, 2, result.ItemsProcessed)
	assert.Equal(t, "b", env.read(t, "imports/camera/raw/b.png"))
	assert.Equal(t, MarkerContent(), env.read(t, "imports/camera/"+MarkerFileName))
	assert.True(t, env.exists("imports/"+MarkerFileName))

	// source untouched
	_, err = os.Stat(filepath.Join(src, "a.png"))
	assert.NoError(t, err)
}

func TestTransferService_ImportSingleFile(t *testing.T) {
	env, svc, outside := newTransferEnv(t)
	src := filepath.Join(outside, "one.png")
	require.NoError(t, os.WriteFile(src, []byte("1"), 0o644))

	result, err := svc.Import(context.Background(), src, "single")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsProcessed)
	assert.Equal(t, "1", env.read(t, "single/one.png"))
}

func TestTransferService_RejectsPathsOutsideRoots(t *testing.T) {
	_, svc, outside := newTransferEnv(t)

	_, err := svc.Import(context.Background(), filepath.Dir(outside), "a")
	assert.ErrorIs(t, err, ErrTransferDisabled)

	_, err = svc.Import(context.Background(), filepath.Join(outside, "..", "etc"), "a")
	assert.ErrorIs(t, err, ErrTransferDisabled)

	_, err = svc.Import(context.Background(), "relative/path", "a")
	assert.ErrorIs(t, err, files.ErrValidation)

	_, err = svc.Import(context.Background(), filepath.Join(outside, "missing"), "a")
	assert.ErrorIs(t, err, files.ErrNotFound)
}

func TestTransferService_Export(t *testing.T) {
	env, svc, outside := newTransferEnv(t)
	env.folder(t, "album")
	env.put(t, "album/a.png", "1234")
	env.put(t, "album/sub/b.png", "12")

	target := filepath.Join(outside, "backup")
	result, err := svc.Export(context.Background(), "album", target)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Copied)
	assert.Equal(t, int64(6), result.TotalSize)
	assert.Equal(t, "6 B", result.TotalSizeFormatted)
	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)

	data, err := os.ReadFile(filepath.Join(target, "sub", "b.png"))
	require.NoError(t, err)
	assert.Equal(t, "12", string(data))
}

func TestTransferService_ExportEmptySource(t *testing.T) {
	env, svc, outside := newTransferEnv(t)
	env.folder(t, "empty")

	_, err := svc.Export(context.Background(), "empty", filepath.Join(outside, "out"))
	assert.ErrorIs(t, err, ErrEmptySource)

	_, err = os.Stat(filepath.Join(outside, "out"))
	assert.True(t, os.IsNotExist(err))
}
