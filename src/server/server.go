package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/config"
	"github.com/nas-ai/uploads-api/src/database"
	"github.com/nas-ai/uploads-api/src/drivers/blob"
	"github.com/nas-ai/uploads-api/src/drivers/storage"
	"github.com/nas-ai/uploads-api/src/handlers/files"
	"github.com/nas-ai/uploads-api/src/metrics"
	"github.com/nas-ai/uploads-api/src/middleware/core"
	"github.com/nas-ai/uploads-api/src/middleware/logic"
	journal_repo "github.com/nas-ai/uploads-api/src/repository/journal"
	"github.com/nas-ai/uploads-api/src/scheduler"
	"github.com/nas-ai/uploads-api/src/services/bridge"
	"github.com/nas-ai/uploads-api/src/services/content"
	"github.com/nas-ai/uploads-api/src/services/operations"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
)

// Server holds all dependencies of the uploads API.
type Server struct {
	cfg         *config.Config
	logger      *logrus.Logger
	router      *gin.Engine
	rateLimiter *logic.RateLimiter

	// optional infrastructure
	journalDB *database.DB
	redis     *database.RedisClient

	// Repositories
	journalRepo *journal_repo.JournalRepository

	// Services
	store          *storage.LocalStore
	treeOperator   *content.TreeOperator
	folderRegistry *content.FolderRegistry
	fileRegistry   *content.FileRegistry
	uploadService  *content.UploadService
	transfer       *content.TransferService
	archiveService *content.ArchiveService
	blobBridge     *bridge.BlobBridge
	journal        *operations.JournalService
	markerRepair   *operations.MarkerRepairService
	locker         content.PathLocker
	authenticator  security.Authenticator

	// Route Handlers
	filesHandler *files.Handler
}

// NewServer creates and initializes all server dependencies
func NewServer(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	if err := s.initDatabase(); err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	if err := s.initRepositories(); err != nil {
		s.Close()
		return nil, fmt.Errorf("repository init failed: %w", err)
	}

	if err := s.initServices(); err != nil {
		s.Close()
		return nil, fmt.Errorf("service init failed: %w", err)
	}

	s.initHandlers()
	s.initRouter()
	s.SetupRoutes()

	return s, nil
}

// initDatabase opens the optional journal database and Redis connection.
// Both are fail-fast once configured.
func (s *Server) initDatabase() error {
	var err error

	if s.cfg.JournalDriver != "" {
		s.journalDB, err = database.NewJournalConnection(s.cfg, s.logger)
		if err != nil {
			return fmt.Errorf("journal connection failed: %w", err)
		}
	} else {
		s.logger.Info("Operation journal disabled")
	}

	if s.cfg.LockBackend == "redis" {
		s.redis, err = database.NewRedisConnection(s.cfg, s.logger)
		if err != nil {
			if s.journalDB != nil {
				s.journalDB.Close()
			}
			return fmt.Errorf("redis connection failed: %w", err)
		}
	}

	return nil
}

// initRepositories initializes all data access layers
func (s *Server) initRepositories() error {
	if s.journalDB == nil {
		return nil
	}

	s.journalRepo = journal_repo.NewJournalRepository(s.journalDB.X(), s.logger)
	return nil
}

// initServices initializes all business logic services
func (s *Server) initServices() error {
	var err error

	s.store, err = storage.NewLocalStore(s.cfg.UploadsRoot)
	if err != nil {
		return fmt.Errorf("uploads root init failed: %w", err)
	}
	s.logger.WithField("root", s.store.Root()).Info("Uploads root ready")

	s.treeOperator = content.NewTreeOperator(s.store.Root(), s.cfg.CollisionPolicy, s.logger)
	s.folderRegistry = content.NewFolderRegistry(s.store, s.treeOperator, s.logger)
	s.fileRegistry = content.NewFileRegistry(s.store, s.treeOperator, s.folderRegistry, s.logger)

	validator := content.NewFileValidator(s.cfg.AllowedMimeTypes, s.cfg.MaxUploadBytes, s.cfg.SniffUploads)
	s.uploadService = content.NewUploadService(s.store, s.folderRegistry, validator, s.logger)
	s.transfer = content.NewTransferService(s.cfg.TransferRoots, s.store, s.treeOperator, s.folderRegistry, s.logger)
	s.archiveService = content.NewArchiveService(s.store, s.folderRegistry, s.treeOperator, s.logger)
	s.logger.WithField("transfer_enabled", s.transfer.Enabled()).Info("Content services initialized")

	remote, err := blob.NewFromConfig(context.Background(), s.cfg, s.logger)
	if err != nil {
		s.logger.WithError(err).Warn("Blob store unavailable, blob routes disabled (non-fatal)")
	} else {
		s.blobBridge = bridge.NewBlobBridge(remote, s.store, s.folderRegistry, s.treeOperator, s.cfg.BlobMaxBytes, s.logger)
		s.logger.WithField("provider", remote.Provider()).Info("BlobBridge initialized")
	}

	if s.journalRepo != nil {
		s.journal = operations.NewJournalService(s.journalRepo, s.logger)
		if err := s.journal.Init(context.Background()); err != nil {
			return fmt.Errorf("journal table init failed: %w", err)
		}
		s.logger.Info("JournalService initialized")
	}

	s.markerRepair = operations.NewMarkerRepairService(s.store.Root(), s.logger)

	switch s.cfg.LockBackend {
	case "redis":
		s.locker = content.NewRedisLocker(s.redis.Client, time.Duration(s.cfg.LockTTLSec)*time.Second, s.logger)
	case "none":
		s.locker = content.NoopLocker{}
	default:
		s.locker = content.NewMemoryLocker()
	}
	s.logger.WithField("backend", s.cfg.LockBackend).Info("Folder locks initialized")

	s.authenticator, err = security.NewAuthenticator(s.cfg)
	if err != nil {
		return fmt.Errorf("authenticator init failed: %w", err)
	}
	s.logger.WithField("mode", s.authenticator.Mode()).Info("Authenticator initialized")

	return nil
}

// initHandlers initializes HTTP handlers
func (s *Server) initHandlers() {
	s.filesHandler = files.NewHandler(
		s.folderRegistry,
		s.fileRegistry,
		s.uploadService,
		s.transfer,
		s.archiveService,
		s.blobBridge,
		s.journal,
		s.locker,
		s.authenticator,
		s.cfg,
		s.logger,
	)
}

// initRouter creates and configures the Gin router
func (s *Server) initRouter() {
	if s.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.router.MaxMultipartMemory = 32 << 20

	// Middleware chain (Onion Principle)
	s.rateLimiter = logic.NewRateLimiter(s.cfg)
	s.router.Use(
		core.PanicRecovery(s.logger),
		core.RequestID(),
		core.GinSecureHeaders(),
		core.CORS(s.cfg, s.logger),
		s.rateLimiter.Middleware(),
		core.AuditLogger(s.logger),
		metrics.GinMiddleware(),
	)

	// OPTIONS preflight
	s.router.OPTIONS("/*path", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// Environment context
	s.router.Use(func(c *gin.Context) {
		c.Set("environment", s.cfg.Environment)
		c.Next()
	})
}

// Router exposes the configured engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// startBackgroundWorkers starts the maintenance scheduler and runs one
// marker repair sweep.
func (s *Server) startBackgroundWorkers() {
	if err := scheduler.StartMaintenanceScheduler(s.markerRepair, s.journal, s.cfg, s.logger); err != nil {
		s.logger.WithError(err).Error("Failed to start maintenance scheduler")
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.markerRepair.Run(ctx); err != nil {
			s.logger.WithError(err).Warn("Startup marker repair failed (non-fatal)")
		}
	}()
}

// Run starts the HTTP server and waits for shutdown signal
func (s *Server) Run() error {
	s.startBackgroundWorkers()

	secureHandler := core.SecureHeaders(s.router)

	srv := &http.Server{
		Addr:           "0.0.0.0:" + s.cfg.Port,
		Handler:        secureHandler,
		ReadTimeout:    600 * time.Second,
		WriteTimeout:   600 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server
	go func() {
		s.logger.WithField("port", s.cfg.Port).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.logger.Info("Shutting down server...")
	scheduler.Stop()
	s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Server forced to shutdown")
		return err
	}

	s.logger.Info("Server exited")
	return nil
}

// Close cleans up all resources
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.journalDB != nil {
		s.journalDB.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
}
