package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 认证由外部网关完成，服务只信任网关注入的身份头
const (
	HeaderUserID    = "X-User-ID"
	HeaderCompanyID = "X-Company-ID"

	userContextKey = "user_context"
)

// UserContext 已认证的调用方身份
type UserContext struct {
	UserID    string
	CompanyID string
}

// TrustedIdentity 身份中间件
// 从请求头提取调用方身份；缺失或非法的 UUID 直接拒绝
func TrustedIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		companyID := c.GetHeader(HeaderCompanyID)

		if userID == "" || companyID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identidade do chamador ausente"})
			return
		}
		if _, err := uuid.Parse(userID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user id inválido"})
			return
		}
		if _, err := uuid.Parse(companyID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "company id inválido"})
			return
		}

		c.Set(userContextKey, &UserContext{UserID: userID, CompanyID: companyID})
		c.Next()
	}
}

// GetUserContext 获取当前调用方身份
func GetUserContext(c *gin.Context) (*UserContext, bool) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}
	userCtx, ok := value.(*UserContext)
	return userCtx, ok
}
