package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"trainhub/console/internal/dto"
	"trainhub/console/internal/service"
	"trainhub/console/internal/upstream"
	"trainhub/console/internal/workflow"
	"trainhub/console/pkg/response"

	pkgerrors "trainhub/console/pkg/errors"
)

// statusClientClosed 客户端已断开（nginx 约定）
const statusClientClosed = 499

// DraftHandler 草稿审批模块 HTTP 处理器
type DraftHandler struct {
	draftSvc service.DraftService
}

// NewDraftHandler 创建 DraftHandler
func NewDraftHandler(draftSvc service.DraftService) *DraftHandler {
	return &DraftHandler{draftSvc: draftSvc}
}

// ListDrafts 按月分组的草稿列表
// GET /api/v1/drafts?branch_id=&expanded=
func (h *DraftHandler) ListDrafts(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}
	q, ok := bindListQuery(c)
	if !ok {
		return
	}

	result, err := h.draftSvc.List(requestContext(c), sess.Principal, q)
	if err != nil {
		handleDraftError(c, err)
		return
	}
	response.OK(c, result)
}

// SaveForm 保存单条草稿的审批/拒绝表单
// PUT /api/v1/drafts/:id/form
func (h *DraftHandler) SaveForm(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}
	id, ok := parseDraftID(c)
	if !ok {
		return
	}

	var req dto.SaveDraftFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	form := workflow.DraftForm{
		ContractNumber:  req.ContractNumber,
		HourlyRate:      string(req.HourlyRate),
		Location:        req.Location,
		Rejecting:       req.Rejecting,
		RejectionReason: req.RejectionReason,
	}
	saved, err := h.draftSvc.SaveForm(requestContext(c), sess.Principal, id, form)
	if err != nil {
		handleDraftError(c, err)
		return
	}
	response.OK(c, dto.DraftFormResponse{DraftID: id, Form: saved})
}

// ApproveDraft 审批草稿，成功后返回刷新后的列表
// POST /api/v1/drafts/:id/approve?branch_id=&expanded=
func (h *DraftHandler) ApproveDraft(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}
	id, ok := parseDraftID(c)
	if !ok {
		return
	}
	q, ok := bindListQuery(c)
	if !ok {
		return
	}

	var req dto.ApproveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.draftSvc.Approve(requestContext(c), sess.Principal, id, req.Input(), q)
	if err != nil {
		handleDraftError(c, err)
		return
	}
	response.OK(c, result)
}

// RejectDraft 拒绝草稿
// POST /api/v1/drafts/:id/reject?branch_id=&expanded=
func (h *DraftHandler) RejectDraft(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}
	id, ok := parseDraftID(c)
	if !ok {
		return
	}
	q, ok := bindListQuery(c)
	if !ok {
		return
	}

	var req dto.RejectDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.draftSvc.Reject(requestContext(c), sess.Principal, id, req.RejectionInput, q)
	if err != nil {
		handleDraftError(c, err)
		return
	}
	response.OK(c, result)
}

// UpdateDraft 编辑待审批草稿
// PATCH /api/v1/drafts/:id?branch_id=&expanded=
func (h *DraftHandler) UpdateDraft(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}
	id, ok := parseDraftID(c)
	if !ok {
		return
	}
	q, ok := bindListQuery(c)
	if !ok {
		return
	}

	var req dto.UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.draftSvc.Edit(requestContext(c), sess.Principal, id, req.Input(), q)
	if err != nil {
		handleDraftError(c, err)
		return
	}
	response.OK(c, result)
}

// ── 辅助函数 ──

// bindListQuery 解析分校筛选与展开状态
// expanded 可重复或逗号分隔；未传时为 nil，表示使用默认展开
func bindListQuery(c *gin.Context) (service.ListQuery, bool) {
	var req dto.DraftListQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "查询参数无效")
		return service.ListQuery{}, false
	}

	q := service.ListQuery{BranchID: req.BranchID}
	if req.Expanded != nil {
		q.Expanded = make([]string, 0, len(req.Expanded))
		for _, raw := range req.Expanded {
			for _, key := range strings.Split(raw, ",") {
				if key = strings.TrimSpace(key); key != "" {
					q.Expanded = append(q.Expanded, key)
				}
			}
		}
	}
	return q, true
}

// handleDraftError 草稿相关错误到 HTTP 响应的映射
//   - 本地校验失败 400，附带字段名
//   - 后端 4xx 原样透传状态码，5xx 与不可达统一 502
//   - message 为可直接展示给操作员的文案
func handleDraftError(c *gin.Context, err error) {
	var (
		verr   *workflow.ValidationError
		actErr *service.ActionError
		apiErr *upstream.APIError
	)
	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(c, http.StatusBadRequest, 20001, verr.Message, gin.H{"field": verr.Field})
	case errors.Is(err, workflow.ErrForbidden):
		response.Forbidden(c, 10003, "无权访问草稿审批")
	case errors.Is(err, pkgerrors.ErrActionInFlight):
		response.Conflict(c, 20002, err.Error())
	case errors.Is(err, service.ErrSessionExpired):
		response.Unauthorized(c, 10002, service.ErrSessionExpired.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		response.Unauthorized(c, 10002, service.ErrUnauthenticated.Error())
	case errors.As(err, &actErr):
		status := http.StatusBadGateway
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			status = apiErr.StatusCode
		}
		response.Error(c, status, 20003, actErr.Error())
	case errors.Is(err, pkgerrors.ErrUpstreamUnavailable):
		response.BadGateway(c, 20004, pkgerrors.ErrUpstreamUnavailable.Error())
	case errors.Is(err, context.Canceled):
		c.AbortWithStatus(statusClientClosed)
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
