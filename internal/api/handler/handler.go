package handler

import "trainhub/console/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth        *AuthHandler
	Branch      *BranchHandler
	Draft       *DraftHandler
	PublicDraft *PublicDraftHandler
	Export      *ExportHandler
	ActionLog   *ActionLogHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:        NewAuthHandler(),
		Branch:      NewBranchHandler(svc.Branch),
		Draft:       NewDraftHandler(svc.Draft),
		PublicDraft: NewPublicDraftHandler(svc.Draft),
		Export:      NewExportHandler(svc.Export),
		ActionLog:   NewActionLogHandler(svc.ActionLog),
	}
}
