package handler

import (
	"github.com/gin-gonic/gin"

	"trainhub/console/internal/service"
	"trainhub/console/pkg/response"
)

// AuthHandler 登录态模块 HTTP 处理器
// 登录、登出由后端负责，这里只回显 SessionAuth 解析出的身份
type AuthHandler struct{}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me 当前操作员及页面权限
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}
	response.OK(c, service.NewMeResponse(sess))
}
