package model

import "time"

// ActionType 操作类型
type ActionType string

const (
	ActionApprove ActionType = "approve"
	ActionReject  ActionType = "reject"
	ActionEdit    ActionType = "edit"
	ActionCreate  ActionType = "create"
)

// Outcome 操作结果
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ActionLog 草稿操作日志
// 每次向后端提交审批、拒绝、编辑、新建都会记录一条，无论成功与否
type ActionLog struct {
	LogID        string     `gorm:"column:log_id;type:uuid;primaryKey" json:"id"`
	RequestID    string     `gorm:"column:request_id;not null;default:''" json:"request_id"`
	DraftID      int64      `gorm:"column:draft_id;not null;index" json:"draft_id"`
	BranchID     *int64     `gorm:"column:branch_id" json:"branch_id,omitempty"`
	Action       ActionType `gorm:"column:action;not null" json:"action"`
	OperatorID   int64      `gorm:"column:operator_id;not null;index" json:"operator_id"`
	OperatorName string     `gorm:"column:operator_name;not null;default:''" json:"operator_name"`
	OperatorRole string     `gorm:"column:operator_role;not null;default:''" json:"operator_role"`
	Outcome      Outcome    `gorm:"column:outcome;not null" json:"outcome"`
	Message      string     `gorm:"column:message;not null;default:''" json:"message"`
	Payload      JSONB      `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 表名
func (ActionLog) TableName() string {
	return "action_logs"
}
