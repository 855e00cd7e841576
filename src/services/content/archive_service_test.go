package content

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArchiveService(t *testing.T) (*testEnv, *ArchiveService) {
	env := newTestEnv(t)
	return env, NewArchiveService(env.store, env.folders, env.tree, env.logger)
}

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create zip entry: %v", err)
		}
		_, _ = w.Write([]byte(entries[name]))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

// TestArchiveService_UnzipSecure_ValidZip tests successful extraction of a valid ZIP file
func TestArchiveService_UnzipSecure_ValidZip(t *testing.T) {
	_, service := newArchiveService(t)
	destDir := t.TempDir()

	data := buildZip(t, map[string]string{
		"test1.txt":        "Hello from test1",
		"subdir/test2.txt": "Hello from test2",
	})

	result, err := service.UnzipSecure(context.Background(), bytes.NewReader(data), int64(len(data)), destDir)
	if err != nil {
		t.Fatalf("UnzipSecure failed: %v", err)
	}

	if result.FileCount != 2 {
		t.Errorf("Expected 2 files, got %d", result.FileCount)
	}

	content2, err := os.ReadFile(filepath.Join(destDir, "subdir", "test2.txt"))
	if err != nil {
		t.Errorf("subdir/test2.txt not found: %v", err)
	} else if string(content2) != "Hello from test2" {
		t.Errorf("subdir/test2.txt content mismatch: %q", content2)
	}

	// Every directory holding extracted content gets a marker
	for _, dir := range []string{destDir, filepath.Join(destDir, "subdir")} {
		if _, err := os.Stat(filepath.Join(dir, MarkerFileName)); err != nil {
			t.Errorf("marker missing in %s: %v", dir, err)
		}
	}
}

// TestArchiveService_UnzipSecure_ZipSlipBlocked tests that Zip Slip attacks are blocked
func TestArchiveService_UnzipSecure_ZipSlipBlocked(t *testing.T) {
	_, service := newArchiveService(t)
	parent := t.TempDir()
	destDir := filepath.Join(parent, "dest")
	require.NoError(t, os.Mkdir(destDir, 0o755))

	maliciousPaths := []string{
		"../../../etc/passwd",
		"../escape.txt",
		"subdir/../../escape.txt",
	}

	for _, malPath := range maliciousPaths {
		t.Run(malPath, func(t *testing.T) {
			data := buildZip(t, map[string]string{malPath: "malicious content"})

			_, err := service.UnzipSecure(context.Background(), bytes.NewReader(data), int64(len(data)), destDir)
			assert.ErrorIs(t, err, ErrInvalidArchive)
			assert.ErrorIs(t, err, files.ErrValidation)

			_, statErr := os.Stat(filepath.Join(parent, "escape.txt"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

// TestArchiveService_UnzipSecure_InvalidMagicBytes tests rejection of non-ZIP files
func TestArchiveService_UnzipSecure_InvalidMagicBytes(t *testing.T) {
	_, service := newArchiveService(t)

	fakeZip := []byte("This is not a real ZIP file, just regular text pretending to be a ZIP")

	_, err := service.UnzipSecure(context.Background(), bytes.NewReader(fakeZip), int64(len(fakeZip)), t.TempDir())
	if err == nil {
		t.Fatal("Expected error for invalid magic bytes, got nil")
	}
	if !strings.Contains(err.Error(), "not a zip") {
		t.Errorf("Expected 'not a zip' error, got: %v", err)
	}
}

// TestArchiveService_UnzipSecure_TooManyFiles tests DoS prevention for file count
func TestArchiveService_UnzipSecure_TooManyFiles(t *testing.T) {
	_, service := newArchiveService(t)

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for i := 0; i < MaxFileCount+1; i++ {
		w, err := zw.Create(fmt.Sprintf("files/file_%d.txt", i))
		if err != nil {
			t.Fatalf("Failed to create zip entry: %v", err)
		}
		_, _ = w.Write([]byte("x"))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}

	_, err := service.UnzipSecure(context.Background(), bytes.NewReader(buf.Bytes()), int64(buf.Len()), t.TempDir())
	if err == nil {
		t.Fatal("Expected error for too many files, got nil")
	}
	if !strings.Contains(err.Error(), "too many files") {
		t.Errorf("Expected 'too many files' error, got: %v", err)
	}
}

// TestArchiveService_UnzipSecure_CompressionBombDetection tests Zip Bomb detection
func TestArchiveService_UnzipSecure_CompressionBombDetection(t *testing.T) {
	_, service := newArchiveService(t)

	// 10MB of zeros deflates far beyond the allowed ratio
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.Create("bomb.bin")
	require.NoError(t, err)
	_, _ = w.Write(make([]byte, 10*1024*1024))
	require.NoError(t, zw.Close())

	_, err = service.UnzipSecure(context.Background(), bytes.NewReader(buf.Bytes()), int64(buf.Len()), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compression ratio")
}

// TestArchiveService_UnzipSecure_ContextCancellation tests proper cancellation handling
func TestArchiveService_UnzipSecure_ContextCancellation(t *testing.T) {
	_, service := newArchiveService(t)
	data := buildZip(t, map[string]string{"test.txt": "test"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.UnzipSecure(ctx, bytes.NewReader(data), int64(len(data)), t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchiveService_ImportArchiveSkipsMarker(t *testing.T) {
	env, service := newArchiveService(t)
	data := buildZip(t, map[string]string{
		"a.png":            "a",
		"nested/b.png":     "b",
		"nested/.HTACCESS": "Options +ExecCGI",
	})

	result, err := service.ImportArchive(context.Background(), bytes.NewReader(data), int64(len(data)), "albums/zip")
	require.NoError(t, err)

	assert.Equal(t, "albums/zip", result.Folder)
	assert.Equal(t, 2, result.FileCount)
	assert.Equal(t, []string{"nested/.HTACCESS"}, result.Skipped)
	assert.Contains(t, result.ExtractedFiles, "albums/zip/nested/b.png")

	assert.Equal(t, MarkerContent(), env.read(t, "albums/zip/nested/"+MarkerFileName))
	assert.Equal(t, MarkerContent(), env.read(t, "albums/zip/"+MarkerFileName))
}

func TestArchiveService_ImportArchiveSkipsInvalidFolderNames(t *testing.T) {
	env, service := newArchiveService(t)
	data := buildZip(t, map[string]string{
		"my photos/a.png":  "a",
		"ok/sub.dir/b.png": "b",
		"ok/c.png":         "c",
		"spaced name.png":  "d",
	})

	result, err := service.ImportArchive(context.Background(), bytes.NewReader(data), int64(len(data)), "imported")
	require.NoError(t, err)

	assert.Equal(t, 2, result.FileCount)
	assert.ElementsMatch(t, []string{"my photos/a.png", "ok/sub.dir/b.png"}, result.Skipped)
	assert.True(t, env.exists("imported/ok/c.png"))
	assert.True(t, env.exists("imported/spaced name.png"))
	assert.False(t, env.exists("imported/my photos"))
	assert.False(t, env.exists("imported/ok/sub.dir"))
}

func TestArchiveService_ExportZip(t *testing.T) {
	env, service := newArchiveService(t)
	env.folder(t, "album")
	env.folder(t, "album/sub")
	env.put(t, "album/a.png", "aa")
	env.put(t, "album/sub/b.png", "bbb")

	buf := new(bytes.Buffer)
	n, err := service.ExportZip(context.Background(), "album", buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	got := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		got[f.Name] = string(data)
	}
	assert.Equal(t, map[string]string{"a.png": "aa", "sub/b.png": "bbb"}, got)
}
