package content

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderRegistry_CreateThenListOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"films", "photos_2024", "a-b", strings.Repeat("x", 50)} {
		_, err := env.folders.CreateFolder(ctx, name)
		require.NoError(t, err, name)

		names, err := env.folders.ListFolders(ctx)
		require.NoError(t, err)

		count := 0
		for _, n := range names {
			if n == name {
				count++
			}
		}
		assert.Equal(t, 1, count, name)
	}
}

func TestFolderRegistry_CreateRejectsInvalidNames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	invalid := []string{
		"../etc",
		"has space",
		"a//b",
		"/abs",
		"a/../b",
		".",
		"",
		strings.Repeat("x", 51),
		"dot.name",
	}
	for _, name := range invalid {
		_, err := env.folders.CreateFolder(ctx, name)
		assert.ErrorIs(t, err, files.ErrValidation, name)
	}

	entries, err := os.ReadDir(env.root)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing may be created for invalid names")

	_, err = os.Stat(filepath.Join(filepath.Dir(env.root), "etc"))
	assert.True(t, os.IsNotExist(err))
}

func TestFolderRegistry_CreateNestedWritesLeafMarkerOnly(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.folders.CreateFolder(context.Background(), "films/action/2024")
	require.NoError(t, err)
	assert.Equal(t, "films/action/2024", created)

	assert.True(t, env.exists("films/action/2024/"+MarkerFileName))
	assert.False(t, env.exists("films/"+MarkerFileName))
	assert.False(t, env.exists("films/action/"+MarkerFileName))
}

func TestFolderRegistry_CreateConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.folders.CreateFolder(ctx, "a")
	require.NoError(t, err)

	_, err = env.folders.CreateFolder(ctx, "a")
	assert.ErrorIs(t, err, ErrFolderExists)

	env.put(t, "plain", "data")
	_, err = env.folders.CreateFolder(ctx, "plain")
	assert.ErrorIs(t, err, ErrExistsAsFile)
	assert.NotErrorIs(t, err, ErrFolderExists)
	assert.ErrorIs(t, err, files.ErrConflict)
}

func TestFolderRegistry_ListFoldersRecursiveDepthOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, p := range []string{"b/z", "a", "a/b", "b", "a/b/c", "a/a"} {
		require.NoError(t, os.MkdirAll(env.abs(p), 0o755))
	}
	env.put(t, "a/file.png", "x")

	paths, err := env.folders.ListFoldersRecursive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a/a", "a/b", "b/z", "a/b/c"}, paths)
}

func TestBuildFolderTree(t *testing.T) {
	paths := []string{"a", "b", "a/a", "a/b", "b/z", "a/b/c"}

	forest := BuildFolderTree(paths)
	require.Len(t, forest, 2)

	a := forest[0]
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, 0, a.Level)
	require.Len(t, a.Children, 2)
	assert.Equal(t, "a/b", a.Children[1].Path)
	assert.Equal(t, 1, a.Children[1].Level)
	require.Len(t, a.Children[1].Children, 1)
	assert.Equal(t, "c", a.Children[1].Children[0].Name)
	assert.Equal(t, 2, a.Children[1].Children[0].Level)

	assert.Equal(t, "b", forest[1].Name)
	require.Len(t, forest[1].Children, 1)
}

func TestBuildFolderTree_OutOfOrderDropsOrphans(t *testing.T) {
	// child listed before its parent cannot be attached
	forest := BuildFolderTree([]string{"a/b", "a"})

	require.Len(t, forest, 1)
	assert.Equal(t, "a", forest[0].Path)
	assert.Empty(t, forest[0].Children)

	sorted := []string{"a/b", "a"}
	SortByDepth(sorted)
	forest = BuildFolderTree(sorted)
	require.Len(t, forest[0].Children, 1)
}

func TestFolderRegistry_RenameFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.folder(t, "a/old")
	env.put(t, "a/old/x.png", "x")
	env.folder(t, "a/taken")

	newPath, err := env.folders.RenameFolder(ctx, "a/old", "new")
	require.NoError(t, err)
	assert.Equal(t, "a/new", newPath)
	assert.Equal(t, "x", env.read(t, "a/new/x.png"))
	assert.False(t, env.exists("a/old"))

	_, err = env.folders.RenameFolder(ctx, "a/new", "taken")
	assert.ErrorIs(t, err, ErrFolderExists)

	_, err = env.folders.RenameFolder(ctx, "a/new", "bad/name")
	assert.ErrorIs(t, err, security.ErrInvalidFolderName)

	_, err = env.folders.RenameFolder(ctx, "a/missing", "other")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestFolderRegistry_MoveFolderCreatesParentWithMarker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.folder(t, "src")
	env.put(t, "src/x.png", "x")

	result, err := env.folders.MoveFolder(ctx, "src", "archive/2024/src")
	require.NoError(t, err)

	assert.Equal(t, 1, result.ItemsProcessed)
	assert.Equal(t, "x", env.read(t, "archive/2024/src/x.png"))
	assert.True(t, env.exists("archive/2024/"+MarkerFileName))
	assert.False(t, env.exists("src"))
}

func TestFolderRegistry_MoveIntoDescendantRejectedBeforeMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.folder(t, "a")
	env.folder(t, "a/b")
	env.put(t, "a/b/x.png", "x")

	_, err := env.folders.MoveFolder(ctx, "a", "a/b")
	assert.ErrorIs(t, err, ErrMoveIntoSelf)

	_, err = env.folders.MoveFolder(ctx, "a", "a/b/new/deeper")
	assert.ErrorIs(t, err, ErrMoveIntoSelf)
	assert.False(t, env.exists("a/b/new"), "destination parent must not be created")

	assert.Equal(t, "x", env.read(t, "a/b/x.png"))
}

func TestFolderRegistry_CopyAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.folder(t, "a")
	env.put(t, "a/x.png", "x")

	result, err := env.folders.CopyFolder(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsProcessed)
	assert.Equal(t, "x", env.read(t, "a/x.png"))
	assert.Equal(t, "x", env.read(t, "b/x.png"))

	result, err = env.folders.DeleteFolder(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsProcessed)
	assert.False(t, env.exists("b"))

	_, err = env.folders.DeleteFolder(ctx, "b")
	assert.ErrorIs(t, err, ErrFolderNotFound)

	_, err = env.folders.DeleteFolder(ctx, "../a")
	assert.ErrorIs(t, err, files.ErrValidation)
}
