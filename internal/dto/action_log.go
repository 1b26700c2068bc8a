package dto

import "encoding/json"

// ActionLogQuery 操作日志查询
type ActionLogQuery struct {
	PaginationRequest
	DraftID    int64  `form:"draft_id"    binding:"omitempty,gt=0"`
	BranchID   int64  `form:"branch_id"   binding:"omitempty,gt=0"`
	OperatorID int64  `form:"operator_id" binding:"omitempty,gt=0"`
	Action     string `form:"action"      binding:"omitempty,oneof=approve reject edit create"`
	Outcome    string `form:"outcome"     binding:"omitempty,oneof=success failure"`
	Since      string `form:"since"       binding:"omitempty,datetime=2006-01-02"`
	Until      string `form:"until"       binding:"omitempty,datetime=2006-01-02"`
}

// ActionLogResponse 操作日志
type ActionLogResponse struct {
	ID           string          `json:"id"`
	RequestID    string          `json:"request_id,omitempty"`
	DraftID      int64           `json:"draft_id"`
	BranchID     *int64          `json:"branch_id,omitempty"`
	Action       string          `json:"action"`
	OperatorID   int64           `json:"operator_id"`
	OperatorName string          `json:"operator_name"`
	OperatorRole string          `json:"operator_role"`
	Outcome      string          `json:"outcome"`
	Message      string          `json:"message,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CreatedAt    string          `json:"created_at"`
}
