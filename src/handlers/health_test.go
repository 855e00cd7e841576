package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(ctx context.Context) error { return s.err }

func serveHealth(t *testing.T, root string, journal, redis HealthChecker) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	r := gin.New()
	r.GET("/health", Health(root, journal, redis, logger))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealth_OptionalDependenciesDisabled(t *testing.T) {
	code, body := serveHealth(t, t.TempDir(), nil, nil)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Equal(t, "ok", deps["uploads_root"])
	assert.Equal(t, "disabled", deps["journal"])
	assert.Equal(t, "disabled", deps["redis"])
	assert.Contains(t, body, "disk_total")
}

func TestHealth_Degraded(t *testing.T) {
	code, body := serveHealth(t, t.TempDir(), stubChecker{}, stubChecker{err: errors.New("connection refused")})

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Equal(t, "ok", deps["journal"])
	assert.Equal(t, "unhealthy", deps["redis"])
}

func TestHealth_MissingRoot(t *testing.T) {
	code, body := serveHealth(t, filepath.Join(t.TempDir(), "gone"), nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["dependencies"].(map[string]interface{})["uploads_root"])
}
