package files

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/services/content"
	"github.com/sirupsen/logrus"
)

// DisplayHandler godoc
// @Summary Serve a stored file
// @Description Public file serving with a fixed extension to Content-Type table. Reserved files are reported as missing.
// @Tags Display
// @Produce octet-stream
// @Param path path string true "File path below the uploads root"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]interface{}
// @Router /uploads/{path} [get]
func DisplayHandler(registry *content.FileRegistry, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")

		abs, entry, err := registry.ResolveForDisplay(c.Request.Context(), c.Param("path"))
		if err != nil {
			handleStorageError(c, err, logger, requestID)
			return
		}

		f, err := os.Open(abs)
		if err != nil {
			if os.IsNotExist(err) {
				err = content.ErrFileNotFound
			}
			handleStorageError(c, err, logger, requestID)
			return
		}
		defer f.Close()

		name := filepath.Base(abs)
		ctype := content.ContentTypeFor(name)
		c.Header("Content-Type", ctype)
		c.Header("Cache-Control", "public, max-age=3600")
		if ctype == "image/svg+xml" {
			c.Header("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
		}

		http.ServeContent(c.Writer, c.Request, name, entry.ModTime, f)
	}
}
