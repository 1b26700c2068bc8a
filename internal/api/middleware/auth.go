package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"trainhub/console/internal/service"
	"trainhub/console/internal/upstream"
	"trainhub/console/pkg/response"
)

// SessionAuth 登录态中间件
// 从 Authorization: Bearer <token> 中提取后端签发的 Token，解析出当前操作员；
// Token 同时写入请求 context，后续对后端的调用以该操作员身份进行
func SessionAuth(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}
		token := parts[1]

		sess, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrSessionExpired):
				response.Unauthorized(c, 10002, service.ErrSessionExpired.Error())
			case errors.Is(err, service.ErrUnauthenticated):
				response.Unauthorized(c, 10002, service.ErrUnauthenticated.Error())
			default:
				_ = c.Error(err)
				response.BadGateway(c, 10006, "暂时无法验证登录状态，请稍后重试")
			}
			c.Abort()
			return
		}

		c.Set("session", sess)
		c.Request = c.Request.WithContext(upstream.WithToken(c.Request.Context(), token))

		c.Next()
	}
}
