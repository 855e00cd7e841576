package server

import (
	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/handlers"
	"github.com/nas-ai/uploads-api/src/metrics"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRoutes configures all HTTP routes (SRP: Routing Only)
func (s *Server) SetupRoutes() {
	// === PUBLIC ROUTES (no auth, but rate-limited) ===
	s.router.GET("/health", handlers.Health(s.cfg.UploadsRoot, s.healthJournal(), s.healthRedis(), s.logger))
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Swagger documentation (only in development)
	if s.cfg.Environment != "production" {
		s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// /uploads, /api/display and the /api group
	s.filesHandler.RegisterRoutes(s.router)
}

// healthJournal and healthRedis keep a nil pointer from becoming a
// non-nil interface.
func (s *Server) healthJournal() handlers.HealthChecker {
	if s.journalDB == nil {
		return nil
	}
	return s.journalDB
}

func (s *Server) healthRedis() handlers.HealthChecker {
	if s.redis == nil {
		return nil
	}
	return s.redis
}
