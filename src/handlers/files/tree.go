package files

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/services/content"
	"github.com/sirupsen/logrus"
)

const (
	typeFolder = "folder"
	typeFile   = "file"
)

type moveRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Type        string `json:"type"`
}

type copyRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type renameRequest struct {
	Type    string `json:"type" form:"type"`
	OldPath string `json:"oldPath" form:"oldPath"`
	OldName string `json:"oldName" form:"oldName"`
	NewName string `json:"newName" form:"newName"`
	NewPath string `json:"newPath" form:"newPath"`
}

type deleteRequest struct {
	Type     string `json:"type" form:"type"`
	Target   string `json:"target" form:"target"`
	FilePath string `json:"filePath" form:"filePath"`
}

func normalizeType(t string) string {
	if t = strings.ToLower(strings.TrimSpace(t)); t == "" {
		return typeFolder
	}
	return t
}

// Move godoc
// @Summary Move a folder or file
// @Description Folders merge into an existing destination; moving into itself or a descendant is rejected
// @Tags Files
// @Accept json
// @Produce json
// @Param request body moveRequest true "Move request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/move [post]
func (h *Handler) Move(c *gin.Context) {
	requestID := c.GetString("request_id")
	started := time.Now()

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Source == "" || req.Destination == "" {
		badRequest(c, "source and destination are required")
		return
	}
	src := strings.Trim(req.Source, "/")
	dst := strings.Trim(req.Destination, "/")

	release, ok := h.withLock(c, src, dst)
	if !ok {
		return
	}
	defer release()

	switch normalizeType(req.Type) {
	case typeFolder:
		result, err := h.folders.MoveFolder(c.Request.Context(), src, dst)
		if err != nil {
			handleStorageError(c, err, h.logger, requestID)
			return
		}
		h.journalTree(c, result, src, dst, started)
		writeTreeResult(c, result, fmt.Sprintf("folder %q moved to %q", src, dst), gin.H{"destination": dst})

	case typeFile:
		moved, err := h.registry.MoveFile(c.Request.Context(), src, dst)
		if err != nil {
			handleStorageError(c, err, h.logger, requestID)
			return
		}
		h.journalOp(c, opMoveFile, src, moved, 1, nil, true, started)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "file moved",
			"path":    moved,
			"url":     content.PublicURL(moved),
		})

	default:
		badRequest(c, "type must be folder or file")
	}
}

// Copy godoc
// @Summary Copy a folder
// @Description Recursively copies a folder, merging into an existing destination
// @Tags Files
// @Accept json
// @Produce json
// @Param request body copyRequest true "Copy request"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/copy [post]
func (h *Handler) Copy(c *gin.Context) {
	requestID := c.GetString("request_id")
	started := time.Now()

	var req copyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Source == "" || req.Destination == "" {
		badRequest(c, "source and destination are required")
		return
	}
	src := strings.Trim(req.Source, "/")
	dst := strings.Trim(req.Destination, "/")

	release, ok := h.withLock(c, src, dst)
	if !ok {
		return
	}
	defer release()

	result, err := h.folders.CopyFolder(c.Request.Context(), src, dst)
	if err != nil {
		handleStorageError(c, err, h.logger, requestID)
		return
	}
	h.journalTree(c, result, src, dst, started)
	writeTreeResult(c, result, fmt.Sprintf("folder %q copied to %q", src, dst), gin.H{"destination": dst})
}

// Rename godoc
// @Summary Rename a folder or file
// @Description Folders get a new last segment; files keep their extension and may move into another existing folder
// @Tags Files
// @Accept json
// @Produce json
// @Param request body renameRequest true "Rename request"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/rename [post]
func (h *Handler) Rename(c *gin.Context) {
	requestID := c.GetString("request_id")
	started := time.Now()

	var req renameRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	oldPath := strings.Trim(req.OldPath, "/")
	if oldPath == "" {
		oldPath = strings.Trim(req.OldName, "/")
	}
	if oldPath == "" {
		badRequest(c, "oldPath is required")
		return
	}

	switch normalizeType(req.Type) {
	case typeFolder:
		if req.NewName == "" {
			badRequest(c, "newName is required")
			return
		}
		release, ok := h.withLock(c, oldPath)
		if !ok {
			return
		}
		defer release()

		renamed, err := h.folders.RenameFolder(c.Request.Context(), oldPath, req.NewName)
		if err != nil {
			handleStorageError(c, err, h.logger, requestID)
			return
		}
		h.journalOp(c, opRenameFolder, oldPath, renamed, 1, nil, true, started)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": fmt.Sprintf("folder %q renamed to %q", oldPath, req.NewName),
			"path":    renamed,
		})

	case typeFile:
		newPath := req.NewPath
		if newPath == "" && req.NewName != "" {
			// a bare new name stays in the same folder
			newPath = path.Join(path.Dir(strings.TrimPrefix(oldPath, "uploads/")), req.NewName)
		}
		if newPath == "" {
			badRequest(c, "newPath is required")
			return
		}
		release, ok := h.withLock(c, oldPath, newPath)
		if !ok {
			return
		}
		defer release()

		renamed, err := h.registry.RenameFile(c.Request.Context(), oldPath, newPath)
		if err != nil {
			handleStorageError(c, err, h.logger, requestID)
			return
		}
		h.journalOp(c, opRenameFile, oldPath, renamed, 1, nil, true, started)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "file renamed",
			"path":    renamed,
			"url":     content.PublicURL(renamed),
		})

	default:
		badRequest(c, "type must be folder or file")
	}
}

// Delete godoc
// @Summary Delete a folder or file
// @Description Folders are removed recursively (best effort); the protective marker cannot be deleted as a file
// @Tags Files
// @Accept json
// @Produce json
// @Param request body deleteRequest true "Delete request"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/delete [delete]
func (h *Handler) Delete(c *gin.Context) {
	requestID := c.GetString("request_id")
	started := time.Now()

	var req deleteRequest
	_ = c.ShouldBindQuery(&req)
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid payload")
			return
		}
	}
	if req.FilePath != "" && req.Type == "" {
		req.Type = typeFile
	}

	switch normalizeType(req.Type) {
	case typeFolder:
		target := strings.Trim(req.Target, "/")
		if target == "" {
			badRequest(c, "target is required")
			return
		}
		release, ok := h.withLock(c, target)
		if !ok {
			return
		}
		defer release()

		result, err := h.folders.DeleteFolder(c.Request.Context(), target)
		if err != nil {
			handleStorageError(c, err, h.logger, requestID)
			return
		}
		h.journalTree(c, result, target, "", started)

		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"folder":     target,
			"processed":  result.ItemsProcessed,
			"errors":     len(result.Errors),
		}).Info("Folder deleted")
		writeTreeResult(c, result, fmt.Sprintf("folder %q deleted", target), nil)

	case typeFile:
		filePath := req.FilePath
		if filePath == "" {
			filePath = req.Target
		}
		if filePath == "" {
			badRequest(c, "filePath is required")
			return
		}
		release, ok := h.withLock(c, filePath)
		if !ok {
			return
		}
		defer release()

		if err := h.registry.DeleteFile(c.Request.Context(), filePath); err != nil {
			handleStorageError(c, err, h.logger, requestID)
			return
		}
		h.journalOp(c, opDeleteFile, filePath, "", 1, nil, true, started)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "file deleted",
		})

	default:
		badRequest(c, "type must be folder or file")
	}
}
