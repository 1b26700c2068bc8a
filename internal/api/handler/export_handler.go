package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"trainhub/console/internal/dto"
	"trainhub/console/internal/service"
	"trainhub/console/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportMonth 导出某月草稿
// GET /api/v1/drafts/export?year=2026&month=10&branch_id=
func (h *ExportHandler) ExportMonth(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	var q dto.ExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "year、month 参数无效")
		return
	}

	buf, filename, err := h.exportSvc.ExportMonth(requestContext(c), sess.Principal, q.BranchID, q.Year, time.Month(q.Month))
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	attachment(c, filename)
	c.Data(http.StatusOK, contentTypeXLSX, buf.Bytes())
}

// ExportCalendar 导出草稿日历
// GET /api/v1/drafts/calendar.ics?branch_id=
func (h *ExportHandler) ExportCalendar(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	var q dto.CalendarQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "查询参数无效")
		return
	}

	raw, filename, err := h.exportSvc.ExportCalendar(requestContext(c), sess.Principal, q.BranchID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	attachment(c, filename)
	c.Data(http.StatusOK, contentTypeICS, raw)
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoDrafts):
		response.NotFound(c, 21001, service.ErrExportNoDrafts.Error())
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		handleDraftError(c, err)
	}
}

// attachment 设置下载响应头
func attachment(c *gin.Context, filename string) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
}
