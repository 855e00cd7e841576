package files

import (
	"archive/zip"
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMove_Folder(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "a/x.png", pngBytes)
	env.put(t, "a/sub/y.png", pngBytes)

	w := env.do(t, http.MethodPost, "/api/move", writeToken, map[string]string{"source": "a", "destination": "b"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "b", body["destination"])
	assert.True(t, env.exists("b/x.png"))
	assert.True(t, env.exists("b/sub/y.png"))
	assert.False(t, env.exists("a"))
}

func TestMove_IntoItself(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "a/x.png", pngBytes)

	w := env.do(t, http.MethodPost, "/api/move", writeToken, map[string]string{"source": "a", "destination": "a/inner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, env.exists("a/x.png"))
	assert.False(t, env.exists("a/inner"))
}

func TestMove_File(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "a/x.png", pngBytes)

	w := env.do(t, http.MethodPost, "/api/move", writeToken, map[string]string{"source": "a/x.png", "destination": "c/x.png", "type": "file"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "/uploads/c/x.png", decode(t, w)["url"])
	assert.True(t, env.exists("c/x.png"))
	assert.True(t, env.exists("c/.htaccess"))
	assert.False(t, env.exists("a/x.png"))
}

func TestCopy_Folder(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "a/x.png", pngBytes)

	w := env.do(t, http.MethodPost, "/api/copy", writeToken, map[string]string{"source": "a", "destination": "copy"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.exists("a/x.png"))
	assert.True(t, env.exists("copy/x.png"))

	w = env.do(t, http.MethodPost, "/api/copy", writeToken, map[string]string{"source": "missing", "destination": "copy2"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRename(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "a/x.png", pngBytes)

	w := env.do(t, http.MethodPost, "/api/rename", writeToken, map[string]string{"type": "file", "oldPath": "a/x.png", "newName": "y.png"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "a/y.png", decode(t, w)["path"])
	assert.True(t, env.exists("a/y.png"))

	w = env.do(t, http.MethodPost, "/api/rename", writeToken, map[string]string{"type": "file", "oldPath": "a/y.png", "newName": "y.gif"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/rename", writeToken, map[string]string{"oldPath": "a", "newName": "renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "renamed", decode(t, w)["path"])
	assert.True(t, env.exists("renamed/y.png"))
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "a/x.png", pngBytes)
	env.put(t, "a/y.png", pngBytes)
	env.put(t, "a/.htaccess", []byte("deny"))

	w := env.do(t, http.MethodDelete, "/api/delete?filePath=/uploads/a/x.png", writeToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, env.exists("a/x.png"))

	w = env.do(t, http.MethodDelete, "/api/delete?filePath=a/.htaccess", writeToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, env.exists("a/.htaccess"))

	w = env.do(t, http.MethodDelete, "/api/delete", writeToken, map[string]string{"type": "folder", "target": "a"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["success"])
	assert.False(t, env.exists("a"))

	w = env.do(t, http.MethodDelete, "/api/delete", writeToken, map[string]string{"type": "folder", "target": "a"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFolderNamedUploads(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, "uploads/pic.png", []byte("inside-folder"))
	env.put(t, "pic.png", []byte("at-root"))

	w := env.do(t, http.MethodGet, "/uploads/uploads/pic.png", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inside-folder", w.Body.String())

	w = env.do(t, http.MethodGet, "/api/display/uploads/pic.png", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inside-folder", w.Body.String())

	w = env.do(t, http.MethodDelete, "/api/delete", writeToken, map[string]string{"type": "file", "filePath": "uploads/pic.png"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, env.exists("uploads/pic.png"))
	assert.True(t, env.exists("pic.png"))

	w = env.do(t, http.MethodDelete, "/api/delete", writeToken, map[string]string{"type": "file", "filePath": "/uploads/pic.png"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, env.exists("pic.png"))
}

func TestImport_DisabledWithoutRoots(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/import", writeToken, map[string]string{"sourcePath": "/etc", "targetFolder": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.exists("x"))
}

func TestArchive_RoundTrip(t *testing.T) {
	env := newTestEnv(t)

	var zbuf bytes.Buffer
	zw := zip.NewWriter(&zbuf)
	for _, name := range []string{"one.png", "nested/two.png"} {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(pngBytes)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("folder", "unzipped"))
	fw, err := mw.CreateFormFile("archive", "photos.zip")
	require.NoError(t, err)
	_, err = fw.Write(zbuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/archive/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+writeToken)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.exists("unzipped/one.png"))
	assert.True(t, env.exists("unzipped/nested/two.png"))

	w = env.do(t, http.MethodGet, "/api/archive/export?folder=unzipped", readToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "unzipped.zip")

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"one.png", "nested/two.png"}, names)
}
