package handler

import (
	"github.com/gin-gonic/gin"

	"trainhub/console/internal/service"
	"trainhub/console/pkg/response"
)

// BranchHandler 分校模块 HTTP 处理器
type BranchHandler struct {
	branchSvc service.BranchService
}

// NewBranchHandler 创建 BranchHandler
func NewBranchHandler(branchSvc service.BranchService) *BranchHandler {
	return &BranchHandler{branchSvc: branchSvc}
}

// ListBranches 当前操作员可选择的分校
// GET /api/v1/branches
func (h *BranchHandler) ListBranches(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	branches, err := h.branchSvc.ForPrincipal(requestContext(c), sess.Principal)
	if err != nil {
		handleDraftError(c, err)
		return
	}
	response.OK(c, service.ToBranchResponses(branches))
}
