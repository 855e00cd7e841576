package content

import (
	"context"
	"strings"
	"testing"

	"github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRegistry_ListFilesSortedWithTotals(t *testing.T) {
	env := newTestEnv(t)
	env.folder(t, "a")
	env.folder(t, "a/b")
	env.put(t, "a/zeta.png", "12345")
	env.put(t, "a/b/alpha.PNG", "123")
	env.put(t, "root.gif", "1")

	listing, err := env.files.ListFiles(context.Background(), "a")
	require.NoError(t, err)

	require.Equal(t, 2, listing.TotalCount)
	assert.Equal(t, int64(8), listing.TotalBytes)
	assert.Equal(t, "alpha.PNG", listing.Entries[0].Name)
	assert.Equal(t, "a/b", listing.Entries[0].Folder)
	assert.Equal(t, ".png", listing.Entries[0].Type)
	assert.Equal(t, "/uploads/a/b/alpha.PNG", listing.Entries[0].URL)
	assert.Equal(t, "3 B", listing.Entries[0].SizeFormatted)
	assert.Equal(t, "zeta.png", listing.Entries[1].Name)

	all, err := env.files.ListFiles(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalCount)
	for _, e := range all.Entries {
		assert.False(t, IsReserved(e.Name))
	}
}

func TestFileRegistry_ListFilesErrors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.files.ListFiles(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrFolderNotFound)

	_, err = env.files.ListFiles(context.Background(), "../etc")
	assert.ErrorIs(t, err, security.ErrInvalidFolderPath)
}

func TestFileRegistry_ExampleScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.folders.CreateFolder(ctx, "a")
	require.NoError(t, err)
	_, err = env.folders.CreateFolder(ctx, "a/b")
	require.NoError(t, err)

	uploads := NewUploadService(env.store, env.folders, NewFileValidator(nil, 0, true), env.logger)
	payload := append(append([]byte{}, pngHeader...), make([]byte, 5000-len(pngHeader))...)
	result, err := uploads.Upload(ctx, "a/b", multipartFiles(t, testUpload{"x.png", "image/png", payload}))
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	paths, err := env.folders.ListFoldersRecursive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a/b"}, paths)

	listing, err := env.files.ListFiles(ctx, "a")
	require.NoError(t, err)
	require.Len(t, listing.Entries, 1)
	assert.Equal(t, int64(5000), listing.Entries[0].Size)
	assert.Equal(t, "a/b", listing.Entries[0].Folder)
	assert.NotEqual(t, "x.png", listing.Entries[0].Name)
	assert.Equal(t, string(payload), env.read(t, listing.Entries[0].Path))

	_, err = env.folders.DeleteFolder(ctx, "a")
	require.NoError(t, err)

	names, err := env.folders.ListFolders(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestNormalizeFilePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"a/b/x.png", "a/b/x.png", nil},
		{"/uploads/a/x.png", "a/x.png", nil},
		{"uploads/a/x.png", "uploads/a/x.png", nil},
		{"/uploads/uploads/x.png", "uploads/x.png", nil},
		{"/a/./x.png", "a/x.png", nil},
		{"", "", files.ErrValidation},
		{"../x.png", "", files.ErrForbidden},
		{"/uploads/a/../../x.png", "", files.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeFilePath(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileRegistry_DeleteFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.folder(t, "a")
	env.put(t, "a/x.png", "x")

	require.NoError(t, env.files.DeleteFile(ctx, "/uploads/a/x.png"))
	assert.False(t, env.exists("a/x.png"))

	assert.ErrorIs(t, env.files.DeleteFile(ctx, "a/x.png"), ErrFileNotFound)
	assert.ErrorIs(t, env.files.DeleteFile(ctx, "a"), ErrNotAFile)

	err := env.files.DeleteFile(ctx, "a/"+strings.ToUpper(MarkerFileName))
	assert.ErrorIs(t, err, ErrReservedName)
	assert.ErrorIs(t, err, files.ErrForbidden)
	assert.True(t, env.exists("a/"+MarkerFileName))
}

func TestFileRegistry_RenameFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.folder(t, "a")
	env.put(t, "a/x.png", "x")
	env.put(t, "a/taken.png", "t")
	env.put(t, "a/notes.txt", "n")

	newPath, err := env.files.RenameFile(ctx, "a/x.png", "a/y.PNG")
	require.NoError(t, err)
	assert.Equal(t, "a/y.PNG", newPath)
	assert.Equal(t, "x", env.read(t, "a/y.PNG"))

	_, err = env.files.RenameFile(ctx, "a/y.PNG", "a/y.jpg")
	assert.ErrorIs(t, err, ErrExtensionChanged)

	_, err = env.files.RenameFile(ctx, "a/y.PNG", "a/taken.png")
	assert.ErrorIs(t, err, ErrFileExists)

	_, err = env.files.RenameFile(ctx, "a/notes.txt", "a/other.txt")
	assert.ErrorIs(t, err, ErrInvalidFileType)

	_, err = env.files.RenameFile(ctx, "a/y.PNG", "missing/y.png")
	assert.ErrorIs(t, err, ErrFolderNotFound)

	_, err = env.files.RenameFile(ctx, "a/y.PNG", "../y.png")
	assert.ErrorIs(t, err, files.ErrForbidden)
}

func TestFileRegistry_MoveFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.folder(t, "a")
	env.put(t, "a/x.png", "x")
	env.put(t, "a/y.png", "y")

	dst, err := env.files.MoveFile(ctx, "a/x.png", "b/c/x.png")
	require.NoError(t, err)
	assert.Equal(t, "b/c/x.png", dst)
	assert.Equal(t, "x", env.read(t, "b/c/x.png"))
	assert.False(t, env.exists("a/x.png"))
	assert.True(t, env.exists("b/c/"+MarkerFileName))

	_, err = env.files.MoveFile(ctx, "a/y.png", "b/c/x.png")
	assert.ErrorIs(t, err, ErrFileExists)
	assert.True(t, env.exists("a/y.png"))

	_, err = env.files.MoveFile(ctx, "a/missing.png", "b/missing.png")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestFileRegistry_ResolveForDisplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.folder(t, "a")
	env.put(t, "a/x.png", "x")

	abs, entry, err := env.files.ResolveForDisplay(ctx, "a/x.png")
	require.NoError(t, err)
	assert.Equal(t, env.abs("a/x.png"), abs)
	assert.Equal(t, int64(1), entry.Size)

	_, _, err = env.files.ResolveForDisplay(ctx, "a/"+MarkerFileName)
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, _, err = env.files.ResolveForDisplay(ctx, "a")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
