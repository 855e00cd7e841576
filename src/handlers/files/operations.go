package files

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/services/operations"
	"github.com/sirupsen/logrus"
)

// OperationsHandler godoc
// @Summary Recent operations
// @Description Newest journal entries first. Returns an empty list when the journal is disabled.
// @Tags Operations
// @Produce json
// @Param limit query int false "Maximum entries (default 50, max 500)"
// @Param operation query string false "Filter by operation"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/operations [get]
func OperationsHandler(journal *operations.JournalService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")

		limit := operations.DefaultJournalLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				badRequest(c, "limit must be a positive integer")
				return
			}
			limit = n
		}

		entries, err := journal.Recent(c.Request.Context(), limit, c.Query("operation"))
		if err != nil {
			handleStorageError(c, err, logger, requestID)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"enabled":    journal.Enabled(),
			"operations": entries,
		})
	}
}
