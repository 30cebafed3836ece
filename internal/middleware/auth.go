package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/response"
	"github.com/weiwangfds/booknotes/internal/service/auth"
)

// TokenVerifier 令牌校验接口，由 auth.Service 实现
type TokenVerifier interface {
	VerifyToken(tokenString string) (*auth.Claims, error)
}

// Auth JWT认证中间件
// 校验 Authorization: Bearer <token>，成功后将用户ID和用户名写入上下文
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			response.Error(c, errors.ErrUnauthorizedAccess.WithDetails("missing bearer token"))
			return
		}

		claims, err := verifier.VerifyToken(token)
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Next()
	}
}

// CurrentUserID 获取当前登录用户ID
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
