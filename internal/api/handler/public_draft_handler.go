package handler

import (
	"github.com/gin-gonic/gin"

	"trainhub/console/internal/dto"
	"trainhub/console/internal/service"
	"trainhub/console/pkg/response"
)

// PublicDraftHandler 分校端提交草稿（无需登录）
type PublicDraftHandler struct {
	draftSvc service.DraftService
}

// NewPublicDraftHandler 创建 PublicDraftHandler
func NewPublicDraftHandler(draftSvc service.DraftService) *PublicDraftHandler {
	return &PublicDraftHandler{draftSvc: draftSvc}
}

// CreateDraft 提交课时草稿
// POST /api/v1/public/drafts
func (h *PublicDraftHandler) CreateDraft(c *gin.Context) {
	var req dto.CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	draft, err := h.draftSvc.CreatePublic(requestContext(c), req.Input())
	if err != nil {
		handleDraftError(c, err)
		return
	}
	response.Created(c, draft)
}
