package content

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nas-ai/uploads-api/src/config"
	"github.com/nas-ai/uploads-api/src/drivers/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	root    string
	store   *storage.LocalStore
	tree    *TreeOperator
	folders *FolderRegistry
	files   *FileRegistry
	logger  *logrus.Logger
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithPolicy(t, config.CollisionOverwrite)
}

func newTestEnvWithPolicy(t *testing.T, policy string) *testEnv {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	logger := newTestLogger()
	tree := NewTreeOperator(store.Root(), policy, logger)
	folders := NewFolderRegistry(store, tree, logger)

	return &testEnv{
		root:    store.Root(),
		store:   store,
		tree:    tree,
		folders: folders,
		files:   NewFileRegistry(store, tree, folders, logger),
		logger:  logger,
	}
}

func (e *testEnv) abs(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

// put writes a file (and its parent directories) below the root.
func (e *testEnv) put(t *testing.T, rel, content string) {
	t.Helper()
	p := e.abs(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// folder creates a directory with a marker.
func (e *testEnv) folder(t *testing.T, rel string) {
	t.Helper()
	p := e.abs(rel)
	require.NoError(t, os.MkdirAll(p, 0o755))
	require.NoError(t, WriteMarker(p))
}

func (e *testEnv) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(e.abs(rel))
	require.NoError(t, err)
	return string(data)
}

func (e *testEnv) exists(rel string) bool {
	_, err := os.Lstat(e.abs(rel))
	return err == nil
}
