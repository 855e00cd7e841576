package files

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Upload godoc
// @Summary Upload files
// @Description Multipart batch upload into a folder. The whole batch is validated before anything is written.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param folder formData string false "Target folder"
// @Param files formData file true "Files"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/upload [post]
func (h *Handler) Upload(c *gin.Context) {
	requestID := c.GetString("request_id")
	started := time.Now()

	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "multipart form is required")
		return
	}
	folder := strings.Trim(firstValue(form, "folder"), "/")
	headers := uploadedFiles(form)

	release, ok := h.withLock(c, folder)
	if !ok {
		return
	}
	defer release()

	result, err := h.uploads.Upload(c.Request.Context(), folder, headers)
	if err != nil {
		h.journalOp(c, opUpload, "", folder, 0, []string{err.Error()}, false, started)
		handleStorageError(c, err, h.logger, requestID)
		return
	}
	h.journalOp(c, opUpload, "", folder, len(result.Files), nil, true, started)

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"folder":     folder,
		"files":      len(result.Files),
		"bytes":      result.TotalBytes,
	}).Info("Upload completed")

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   fmt.Sprintf("%d file(s) uploaded", len(result.Files)),
		"folder":    result.Folder,
		"files":     result.Files,
		"totalSize": result.TotalBytes,
	})
}

func firstValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// uploadedFiles accepts the "files", "files[]" and "file" field names.
func uploadedFiles(form *multipart.Form) []*multipart.FileHeader {
	var out []*multipart.FileHeader
	for _, key := range []string{"files", "files[]", "file"} {
		out = append(out, form.File[key]...)
	}
	return out
}
