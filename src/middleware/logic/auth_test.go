package logic

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/services/security"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	writeToken = "write-token-0123456789"
	readToken  = "read-token-0123456789"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func scopedRouter(t *testing.T, authn security.Authenticator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/read", RequireScope(authn, security.ScopeRead, quietLogger()), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("auth_scope"))
	})
	r.POST("/write", RequireScope(authn, security.ScopeWrite, quietLogger()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireScope_SharedToken(t *testing.T) {
	authn, err := security.NewSharedTokenAuthenticator(writeToken, readToken)
	require.NoError(t, err)
	r := scopedRouter(t, authn)

	// missing credentials
	w := do(r, httptest.NewRequest(http.MethodGet, "/read", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")

	// read token reads
	req := httptest.NewRequest(http.MethodGet, "/read", nil)
	req.Header.Set("Authorization", "Bearer "+readToken)
	w = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "read", w.Body.String())

	// read token cannot write
	req = httptest.NewRequest(http.MethodPost, "/write", nil)
	req.Header.Set("Authorization", "Bearer "+readToken)
	w = do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient_scope")

	// write token writes
	req = httptest.NewRequest(http.MethodPost, "/write", nil)
	req.Header.Set("Authorization", "Bearer "+writeToken)
	w = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireScope_QueryTokenOnlyForGET(t *testing.T) {
	authn, err := security.NewSharedTokenAuthenticator(writeToken, "")
	require.NoError(t, err)
	r := scopedRouter(t, authn)

	w := do(r, httptest.NewRequest(http.MethodGet, "/read?token="+writeToken, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, httptest.NewRequest(http.MethodPost, "/write?token="+writeToken, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireScope_BasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	authn, err := security.NewUsernamePasswordAuthenticator("admin", "", string(hash))
	require.NoError(t, err)
	r := scopedRouter(t, authn)

	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.SetBasicAuth("admin", "s3cret-pass")
	assert.Equal(t, http.StatusOK, do(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/write", nil)
	req.SetBasicAuth("admin", "wrong")
	w := do(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
}

func TestFeatureGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	enabled := false
	r := gin.New()
	r.GET("/blob", FeatureGuard(func() bool { return enabled }, "blob_not_configured", "off"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/blob", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "blob_not_configured")

	enabled = true
	w = do(r, httptest.NewRequest(http.MethodGet, "/blob", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
