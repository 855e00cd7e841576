package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/sirupsen/logrus"
)

// HealthChecker is implemented by dependencies that can be probed.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Version is reported by the health endpoint.
var Version = "dev"

// probe reports "disabled" for a dependency that is not configured.
func probe(ctx context.Context, name string, dep HealthChecker, logger *logrus.Logger) (string, bool) {
	if dep == nil {
		return "disabled", true
	}
	if err := dep.HealthCheck(ctx); err != nil {
		logger.WithError(err).WithField("dependency", name).Error("Health check failed")
		return "unhealthy", false
	}
	return "ok", true
}

// Health godoc
// @Summary Health check endpoint
// @Description Returns API health status, dependency state and disk usage of the uploads root
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{} "Health status information"
// @Failure 503 {object} map[string]interface{} "Dependency unavailable"
// @Router /health [get]
func Health(uploadsRoot string, journal HealthChecker, redis HealthChecker, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		healthy := true
		dependencies := gin.H{}

		if info, err := os.Stat(uploadsRoot); err != nil || !info.IsDir() {
			logger.WithField("uploads_root", uploadsRoot).Error("Uploads root is not accessible")
			dependencies["uploads_root"] = "unhealthy"
			healthy = false
		} else {
			dependencies["uploads_root"] = "ok"
		}

		var ok bool
		if dependencies["journal"], ok = probe(ctx, "journal", journal, logger); !ok {
			healthy = false
		}
		if dependencies["redis"], ok = probe(ctx, "redis", redis, logger); !ok {
			healthy = false
		}

		status := gin.H{
			"status":       "ok",
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
			"service":      "uploads-api",
			"version":      Version,
			"dependencies": dependencies,
		}

		if usage, err := disk.UsageWithContext(ctx, uploadsRoot); err == nil {
			status["disk_total"] = usage.Total
			status["disk_used"] = usage.Used
			status["disk_free"] = usage.Free
			status["disk_used_percent"] = usage.UsedPercent
		} else {
			logger.WithError(err).Debug("Disk usage unavailable")
		}

		if !healthy {
			status["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}

		c.JSON(http.StatusOK, status)
	}
}
