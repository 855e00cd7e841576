package files

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/services/content"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
)

const (
	opCreateFolder = "create_folder"
	opRenameFolder = "rename_folder"
	opRenameFile   = "rename_file"
	opMoveFile     = "move_file"
	opDeleteFile   = "delete_file"
	opUpload       = "upload"
	opArchive      = "archive_import"
)

type createFolderRequest struct {
	Path       string `json:"path" form:"path"`
	FolderName string `json:"folderName" form:"folderName"`
}

// ListFoldersHandler godoc
// @Summary List folders
// @Description Top-level folder names, or every folder path plus the nested tree with ?recursive=true
// @Tags Folders
// @Produce json
// @Param recursive query bool false "Include nested folders"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/folders [get]
func ListFoldersHandler(folders *content.FolderRegistry, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")

		if c.Query("recursive") == "true" {
			paths, err := folders.ListFoldersRecursive(c.Request.Context())
			if err != nil {
				handleStorageError(c, err, logger, requestID)
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"folders": paths,
				"tree":    content.BuildFolderTree(paths),
			})
			return
		}

		names, err := folders.ListFolders(c.Request.Context())
		if err != nil {
			handleStorageError(c, err, logger, requestID)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"folders": names,
		})
	}
}

// CreateFolder godoc
// @Summary Create a folder
// @Description Creates a folder (and missing ancestors) with a protective marker in the leaf
// @Tags Folders
// @Accept json
// @Produce json
// @Param request body createFolderRequest true "Folder path"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/folders [post]
func (h *Handler) CreateFolder(c *gin.Context) {
	requestID := c.GetString("request_id")
	started := time.Now()

	var req createFolderRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	target := strings.Trim(req.Path, "/")
	if target == "" && req.FolderName != "" {
		// folderName is the single-segment form
		if !security.ValidateFolderName(req.FolderName) {
			handleStorageError(c, security.ErrInvalidFolderName, h.logger, requestID)
			return
		}
		target = req.FolderName
	}
	if target == "" {
		badRequest(c, "path is required")
		return
	}

	release, ok := h.withLock(c, target)
	if !ok {
		return
	}
	defer release()

	created, err := h.folders.CreateFolder(c.Request.Context(), target)
	if err != nil {
		handleStorageError(c, err, h.logger, requestID)
		return
	}
	h.journalOp(c, opCreateFolder, "", created, 1, nil, true, started)

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"folder":     created,
	}).Info("Folder created")

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "folder \"" + created + "\" created",
		"path":    created,
	})
}

// ListFilesHandler godoc
// @Summary List files
// @Description Recursively lists files below a folder, or the whole uploads root
// @Tags Files
// @Produce json
// @Param folder query string false "Folder path"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/files [get]
func ListFilesHandler(registry *content.FileRegistry, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")
		folder := c.Query("folder")

		listing, err := registry.ListFiles(c.Request.Context(), folder)
		if err != nil {
			handleStorageError(c, err, logger, requestID)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":            true,
			"folder":             strings.Trim(folder, "/"),
			"files":              listing.Entries,
			"totalCount":         listing.TotalCount,
			"totalSize":          listing.TotalBytes,
			"totalSizeFormatted": content.FormatFileSize(listing.TotalBytes),
		})
	}
}
