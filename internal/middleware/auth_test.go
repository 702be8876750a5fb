package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(token string) *gin.Engine {
	router := gin.New()
	router.GET("/x", LocalToken(token), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func get(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLocalTokenChecksBearer(t *testing.T) {
	router := protectedRouter("secret")

	require.Equal(t, http.StatusUnauthorized, get(router, "").Code)
	require.Equal(t, http.StatusUnauthorized, get(router, "Bearer wrong").Code)
	require.Equal(t, http.StatusUnauthorized, get(router, "secret").Code)
	require.Equal(t, http.StatusOK, get(router, "Bearer secret").Code)
	require.Equal(t, http.StatusOK, get(router, "bearer secret").Code, "scheme match is case-insensitive")
}

func TestEmptyTokenDisablesCheck(t *testing.T) {
	router := protectedRouter("")
	require.Equal(t, http.StatusOK, get(router, "").Code)
}
