package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"trainhub/console/internal/dto"
	"trainhub/console/internal/service"
	"trainhub/console/internal/workflow"
	"trainhub/console/pkg/response"
)

// ActionLogHandler 操作日志模块 HTTP 处理器
type ActionLogHandler struct {
	actionLogSvc service.ActionLogService
}

// NewActionLogHandler 创建 ActionLogHandler
func NewActionLogHandler(actionLogSvc service.ActionLogService) *ActionLogHandler {
	return &ActionLogHandler{actionLogSvc: actionLogSvc}
}

// ListActionLogs 分页查询操作日志（仅超级管理员）
// GET /api/v1/action-logs
func (h *ActionLogHandler) ListActionLogs(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	var q dto.ActionLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "查询参数无效")
		return
	}

	list, total, err := h.actionLogSvc.List(requestContext(c), sess.Principal, &q)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrForbidden):
			response.Forbidden(c, 10003, "仅超级管理员可查看操作日志")
		case errors.Is(err, service.ErrInvalidDateRange):
			response.BadRequest(c, 22001, service.ErrInvalidDateRange.Error())
		default:
			_ = c.Error(err)
			response.InternalError(c)
		}
		return
	}

	response.OKPage(c, list, total, q.GetPage(), q.GetPageSize())
}
