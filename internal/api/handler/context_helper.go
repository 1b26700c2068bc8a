package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"trainhub/console/internal/service"
	"trainhub/console/pkg/response"
)

// MustGetSession 从 Gin 上下文中安全提取登录态。
// 如果 SessionAuth 中间件未正确注入，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetSession(c *gin.Context) (*service.Session, bool) {
	v, exists := c.Get("session")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	sess, ok := v.(*service.Session)
	if !ok || sess == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return sess, true
}

// requestContext 请求上下文，附带 request_id 供操作日志关联
func requestContext(c *gin.Context) context.Context {
	return service.WithRequestID(c.Request.Context(), c.GetString("request_id"))
}

// parseDraftID 解析路径中的草稿 ID
func parseDraftID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, 10001, "草稿 ID 无效")
		return 0, false
	}
	return id, true
}
