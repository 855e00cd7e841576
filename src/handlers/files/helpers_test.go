package files

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/config"
	domain "github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/drivers/blob"
	"github.com/nas-ai/uploads-api/src/drivers/storage"
	"github.com/nas-ai/uploads-api/src/middleware/core"
	"github.com/nas-ai/uploads-api/src/services/bridge"
	"github.com/nas-ai/uploads-api/src/services/content"
	"github.com/nas-ai/uploads-api/src/services/operations"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	writeToken = "write-token-for-tests"
	readToken  = "read-token-for-tests"
	memBase    = "https://blob.test/"
)

// pngBytes starts with the PNG signature so content sniffing accepts it.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

type testEnv struct {
	root   string
	router *gin.Engine
	remote *memStore
}

type envOption func(*envOptions)

type envOptions struct {
	blob    bool
	journal *operations.JournalService
}

func withBlob() envOption {
	return func(o *envOptions) { o.blob = true }
}

func withJournal(j *operations.JournalService) envOption {
	return func(o *envOptions) { o.journal = j }
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var o envOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := quietLogger()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Environment:     "test",
		UploadsRoot:     store.Root(),
		CollisionPolicy: config.CollisionOverwrite,
	}

	tree := content.NewTreeOperator(store.Root(), cfg.CollisionPolicy, logger)
	folders := content.NewFolderRegistry(store, tree, logger)
	registry := content.NewFileRegistry(store, tree, folders, logger)
	validator := content.NewFileValidator(nil, 0, true)
	uploads := content.NewUploadService(store, folders, validator, logger)
	transfer := content.NewTransferService(nil, store, tree, folders, logger)
	archive := content.NewArchiveService(store, folders, tree, logger)

	env := &testEnv{root: store.Root()}

	var blobBridge *bridge.BlobBridge
	if o.blob {
		env.remote = newMemStore()
		blobBridge = bridge.NewBlobBridge(env.remote, store, folders, tree, 0, logger)
	}

	authn, err := security.NewSharedTokenAuthenticator(writeToken, readToken)
	require.NoError(t, err)

	h := NewHandler(folders, registry, uploads, transfer, archive, blobBridge, o.journal, content.NewMemoryLocker(), authn, cfg, logger)

	r := gin.New()
	r.Use(core.RequestID())
	h.RegisterRoutes(r)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type uploadPart struct {
	name        string
	contentType string
	data        []byte
}

func (e *testEnv) upload(t *testing.T, folder string, parts ...uploadPart) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("folder", folder))
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+p.name+`"`)
		h.Set("Content-Type", p.contentType)
		pw, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+writeToken)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) abs(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

func (e *testEnv) put(t *testing.T, rel string, data []byte) {
	t.Helper()
	p := e.abs(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func (e *testEnv) exists(rel string) bool {
	_, err := os.Stat(e.abs(rel))
	return err == nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	envelope, ok := body["error"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	code, _ := envelope["code"].(string)
	return code
}

// memStore is an in-memory blob.Store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ blob.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) add(pathname, body string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[pathname] = []byte(body)
	return memBase + pathname
}

func (m *memStore) has(pathname string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[pathname]
	return ok
}

func (m *memStore) Provider() string { return "memory" }

func (m *memStore) List(ctx context.Context, prefix string) ([]domain.BlobObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BlobObject
	for p, data := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobObject{URL: memBase + p, Pathname: p, Size: int64(len(data)), UploadedAt: time.Now()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pathname < out[j].Pathname })
	return out, nil
}

func (m *memStore) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[strings.TrimPrefix(url, memBase)]
	if !ok {
		return nil, blob.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, strings.TrimPrefix(url, memBase))
	return nil
}

func (m *memStore) Put(ctx context.Context, pathname string, body io.Reader, size int64, contentType string) (*domain.BlobObject, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	url := m.add(pathname, string(data))
	return &domain.BlobObject{URL: url, Pathname: pathname, Size: int64(len(data))}, nil
}
