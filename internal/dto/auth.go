package dto

// MeResponse 当前操作员（GET /auth/me）
type MeResponse struct {
	ID                int64          `json:"id"`
	Name              string         `json:"name"`
	Email             string         `json:"email"`
	Role              string         `json:"role"`
	Backdoor          bool           `json:"backdoor"`
	BranchID          *int64         `json:"branch_id,omitempty"`
	DraftApproval     AccessResponse `json:"draft_approval"`
	CanViewActionLogs bool           `json:"can_view_action_logs"`
}

// AccessResponse 草稿审批页面权限
type AccessResponse struct {
	Visible            bool   `json:"visible"`
	ForcedBranchID     *int64 `json:"forced_branch_id,omitempty"`
	AllowAllBranches   bool   `json:"allow_all_branches"`
	ShowBranchSelector bool   `json:"show_branch_selector"`
}
