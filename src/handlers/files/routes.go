package files

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/config"
	domain "github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/middleware/core"
	"github.com/nas-ai/uploads-api/src/middleware/logic"
	"github.com/nas-ai/uploads-api/src/services/bridge"
	"github.com/nas-ai/uploads-api/src/services/content"
	"github.com/nas-ai/uploads-api/src/services/operations"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
)

// Handler holds dependencies for files handlers
type Handler struct {
	folders  *content.FolderRegistry
	registry *content.FileRegistry
	uploads  *content.UploadService
	transfer *content.TransferService
	archive  *content.ArchiveService
	bridge   *bridge.BlobBridge
	journal  *operations.JournalService
	locker   content.PathLocker
	authn    security.Authenticator
	cfg      *config.Config
	logger   *logrus.Logger
}

// NewHandler creates a new Files Handler. blobBridge and journal may be nil
// when the corresponding feature is not configured.
func NewHandler(
	folders *content.FolderRegistry,
	registry *content.FileRegistry,
	uploads *content.UploadService,
	transfer *content.TransferService,
	archive *content.ArchiveService,
	blobBridge *bridge.BlobBridge,
	journal *operations.JournalService,
	locker content.PathLocker,
	authn security.Authenticator,
	cfg *config.Config,
	logger *logrus.Logger,
) *Handler {
	if locker == nil {
		locker = content.NoopLocker{}
	}
	return &Handler{
		folders:  folders,
		registry: registry,
		uploads:  uploads,
		transfer: transfer,
		archive:  archive,
		bridge:   blobBridge,
		journal:  journal,
		locker:   locker,
		authn:    authn,
		cfg:      cfg,
		logger:   logger,
	}
}

// RegisterRoutes registers the public display routes and the /api group.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// Public file serving
	display := DisplayHandler(h.registry, h.logger)
	public := r.Group("/", core.PublicCORS(h.cfg.DisplayOrigins))
	{
		public.GET("/uploads/*path", display)
		public.HEAD("/uploads/*path", display)
		public.GET("/api/display/*path", display)
		public.HEAD("/api/display/*path", display)
	}

	read := logic.RequireScope(h.authn, security.ScopeRead, h.logger)
	write := logic.RequireScope(h.authn, security.ScopeWrite, h.logger)

	api := r.Group("/api")
	{
		api.GET("/folders", read, ListFoldersHandler(h.folders, h.logger))
		api.POST("/folders", write, h.CreateFolder)

		api.GET("/files", read, ListFilesHandler(h.registry, h.logger))
		api.POST("/upload", write, h.Upload)

		api.POST("/move", write, h.Move)
		api.POST("/copy", write, h.Copy)
		api.POST("/rename", write, h.Rename)
		api.DELETE("/delete", write, h.Delete)

		api.POST("/import", write, h.Import)
		api.POST("/export", write, h.Export)

		api.POST("/archive/import", write, h.ImportArchive)
		api.GET("/archive/export", read, ExportArchiveHandler(h.archive, h.registry, h.logger))

		api.GET("/operations", read, OperationsHandler(h.journal, h.logger))
	}

	blobEnabled := func() bool { return h.bridge != nil }
	blobGroup := api.Group("/blob", logic.FeatureGuard(blobEnabled, "blob_not_configured", "no blob store is configured"))
	{
		blobGroup.GET("", read, h.ListBlobs)
		blobGroup.DELETE("", write, h.DeleteBlob)
		blobGroup.POST("/import", write, h.ImportBlob)
		blobGroup.POST("/export", write, h.ExportBlob)
	}
}

// withLock takes the folder locks for paths. On failure the error response
// has already been written and ok is false.
func (h *Handler) withLock(c *gin.Context, paths ...string) (release func(), ok bool) {
	release, err := h.locker.Lock(c.Request.Context(), paths...)
	if err != nil {
		handleStorageError(c, err, h.logger, c.GetString("request_id"))
		return nil, false
	}
	return release, true
}

// journalTree records a finished tree operation. The journal write is
// detached from the request context so a disconnecting client does not
// drop the entry.
func (h *Handler) journalTree(c *gin.Context, result *domain.TreeResult, source, target string, started time.Time) {
	if !h.journal.Enabled() || result == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.journal.RecordTree(ctx, result, source, target, c.GetString("request_id"), started)
}

func (h *Handler) journalOp(c *gin.Context, operation, source, target string, processed int, errs []string, success bool, started time.Time) {
	if !h.journal.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.journal.Record(ctx, operation, source, target, processed, errs, success, c.GetString("request_id"), started)
}

// writeTreeResult answers a recursive operation. Partial failures are
// still a 200 with the per-entry errors; a run where every entry failed is
// a 500 with the same body.
func writeTreeResult(c *gin.Context, result *domain.TreeResult, message string, extra gin.H) {
	status := http.StatusOK
	if !result.Success() {
		status = http.StatusInternalServerError
	}
	body := gin.H{
		"success":        result.Success(),
		"message":        message,
		"itemsProcessed": result.ItemsProcessed,
		"errors":         result.Errors,
		"request_id":     c.GetString("request_id"),
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}
