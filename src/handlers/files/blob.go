package files

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/drivers/blob"
	"github.com/nas-ai/uploads-api/src/services/bridge"
	"github.com/sirupsen/logrus"
)

// BlobTokenHeader carries a per-request vendor token that overrides the
// configured one.
const BlobTokenHeader = "X-Blob-Token"

type blobImportRequest struct {
	BlobURL           string `json:"blobUrl"`
	TargetFolder      string `json:"targetFolder"`
	DeleteAfterImport bool   `json:"deleteAfterImport"`
	BatchImport       bool   `json:"batchImport"`
	FolderName        string `json:"folderName"`
}

type blobExportRequest struct {
	Folder string `json:"folder"`
	Prefix string `json:"prefix"`
}

func blobContext(c *gin.Context) context.Context {
	return blob.WithToken(c.Request.Context(), strings.TrimSpace(c.GetHeader(BlobTokenHeader)))
}

// ListBlobs godoc
// @Summary List remote blobs
// @Description Lists objects of the configured blob store, newest first; markers are hidden
// @Tags Blob
// @Produce json
// @Param prefix query string false "Pathname prefix"
// @Success 200 {object} bridge.BlobListing
// @Failure 502 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/blob [get]
func (h *Handler) ListBlobs(c *gin.Context) {
	requestID := c.GetString("request_id")

	listing, err := h.bridge.List(blobContext(c), c.Query("prefix"))
	if err != nil {
		handleStorageError(c, err, h.logger, requestID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"provider":           h.bridge.Provider(),
		"files":              listing.Files,
		"totalFiles":         listing.TotalFiles,
		"totalSize":          listing.TotalSize,
		"totalSizeFormatted": listing.TotalSizeFormatted,
	})
}

// DeleteBlob godoc
// @Summary Delete a remote blob
// @Tags Blob
// @Produce json
// @Param url query string true "Blob URL"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/blob [delete]
func (h *Handler) DeleteBlob(c *gin.Context) {
	requestID := c.GetString("request_id")
	blobURL := c.Query("url")
	if blobURL == "" {
		blobURL = c.Query("blobUrl")
	}

	if err := h.bridge.Delete(blobContext(c), blobURL); err != nil {
		handleStorageError(c, err, h.logger, requestID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "blob deleted",
	})
}

// ImportBlob godoc
// @Summary Import blobs into a folder
// @Description Imports one blob by URL, or with batchImport every blob under folderName/ (flattened into targetFolder)
// @Tags Blob
// @Accept json
// @Produce json
// @Param request body blobImportRequest true "Import request"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/blob/import [post]
func (h *Handler) ImportBlob(c *gin.Context) {
	requestID := c.GetString("request_id")
	started := time.Now()

	var req blobImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	target := strings.Trim(req.TargetFolder, "/")
	if target == "" {
		badRequest(c, "targetFolder is required")
		return
	}

	release, ok := h.withLock(c, target)
	if !ok {
		return
	}
	defer release()

	ctx := blobContext(c)

	if req.BatchImport {
		result, err := h.bridge.ImportBatch(ctx, req.FolderName, target, req.DeleteAfterImport)
		if err != nil {
			handleStorageError(c, err, h.logger, requestID)
			return
		}
		h.journalTree(c, result.TreeResult, h.bridge.Provider()+":"+req.FolderName, target, started)
		writeTreeResult(c, result.TreeResult, fmt.Sprintf("%d blob(s) imported into %q", result.ItemsProcessed, target), gin.H{
			"imported":        result.Imported,
			"deletedFromBlob": result.DeletedFromBlob,
		})
		return
	}

	imported, err := h.bridge.ImportOne(ctx, req.BlobURL, target, req.DeleteAfterImport)
	if err != nil {
		h.journalOp(c, bridge.OpBlobImport, req.BlobURL, target, 0, []string{err.Error()}, false, started)
		handleStorageError(c, err, h.logger, requestID)
		return
	}
	var warnings []string
	if imported.Warning != "" {
		warnings = append(warnings, imported.Warning)
	}
	h.journalOp(c, bridge.OpBlobImport, req.BlobURL, imported.Path, 1, warnings, true, started)

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"url":        req.BlobURL,
		"path":       imported.Path,
		"deleted":    imported.DeletedFromBlob,
	}).Info("Blob import completed")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%q imported", imported.Name),
		"file":    imported,
	})
}

// ExportBlob godoc
// @Summary Export a folder to the blob store
// @Description Pushes every file of a local folder subtree under prefix (default: the folder path)
// @Tags Blob
// @Accept json
// @Produce json
// @Param request body blobExportRequest true "Export request"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/blob/export [post]
func (h *Handler) ExportBlob(c *gin.Context) {
	requestID := c.GetString("request_id")
	started := time.Now()

	var req blobExportRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.Trim(req.Folder, "/") == "" {
		badRequest(c, "folder is required")
		return
	}
	folder := strings.Trim(req.Folder, "/")

	release, ok := h.withLock(c, folder)
	if !ok {
		return
	}
	defer release()

	result, err := h.bridge.ExportFolder(blobContext(c), folder, req.Prefix)
	if err != nil {
		handleStorageError(c, err, h.logger, requestID)
		return
	}
	h.journalTree(c, result, folder, h.bridge.Provider()+":"+req.Prefix, started)
	writeTreeResult(c, result, fmt.Sprintf("%d file(s) exported", result.ItemsProcessed), gin.H{
		"exported": result.ItemsProcessed,
	})
}
