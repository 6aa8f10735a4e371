package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newIdentityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TrustedIdentity())
	router.GET("/whoami", func(c *gin.Context) {
		userCtx, ok := GetUserContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "contexto ausente"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": userCtx.UserID, "companyId": userCtx.CompanyID})
	})
	return router
}

func TestTrustedIdentity(t *testing.T) {
	router := newIdentityRouter()

	t.Run("缺失身份头返回401", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("非法UUID返回400", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(HeaderUserID, "not-a-uuid")
		req.Header.Set(HeaderCompanyID, uuid.New().String())
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("合法身份注入上下文", func(t *testing.T) {
		userID := uuid.New().String()
		companyID := uuid.New().String()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(HeaderUserID, userID)
		req.Header.Set(HeaderCompanyID, companyID)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), userID)
		require.Contains(t, w.Body.String(), companyID)
	})
}
