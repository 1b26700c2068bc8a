package upstream

import (
	"time"

	"github.com/shopspring/decimal"
)

// DraftStatus 草稿状态
type DraftStatus string

const (
	StatusPending  DraftStatus = "pending"
	StatusApproved DraftStatus = "approved"
	StatusRejected DraftStatus = "rejected"
)

// Location 课时地点分类
type Location string

const (
	LocationInternal Location = "internal"
	LocationExternal Location = "external"
)

// SessionDraft 课时草稿 — 后端 /drafts 资源
type SessionDraft struct {
	ID            int64           `json:"id"`
	BranchID      int64           `json:"branch_id"`
	TeacherName   string          `json:"teacher_name"`
	StudentName   string          `json:"student_name"`
	SessionDate   string          `json:"session_date"` // YYYY-MM-DD
	StartTime     *string         `json:"start_time,omitempty"`
	EndTime       *string         `json:"end_time,omitempty"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	DurationText  string          `json:"duration_text"`
	Status        DraftStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`

	// 审批后
	ContractNumber string              `json:"contract_number,omitempty"`
	HourlyRate     decimal.NullDecimal `json:"hourly_rate"`
	Location       Location            `json:"location,omitempty"`

	// 拒绝后
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// IsPending 是否仍可操作
func (d *SessionDraft) IsPending() bool { return d.Status == StatusPending }

// Branch 分校 — 后端 /branches 资源
type Branch struct {
	ID                int64               `json:"id"`
	Name              string              `json:"name"`
	DefaultHourlyRate decimal.NullDecimal `json:"default_hourly_rate"`
}

// CurrentUser 当前登录用户 — 后端 /auth/me
type CurrentUser struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email,omitempty"`
	IsSuperAdmin       bool   `json:"is_super_admin"`
	IsSalesManager     bool   `json:"is_sales_manager"`
	IsOperationManager bool   `json:"is_operation_manager"`
	IsBackdoor         bool   `json:"is_backdoor"`
	BranchID           *int64 `json:"branch_id"`
}

// CreateDraftRequest POST /drafts（分校端提交，无需认证）
type CreateDraftRequest struct {
	BranchID      int64   `json:"branch_id"`
	TeacherName   string  `json:"teacher_name"`
	StudentName   string  `json:"student_name"`
	SessionDate   string  `json:"session_date"`
	StartTime     *string `json:"start_time,omitempty"`
	EndTime       *string `json:"end_time,omitempty"`
	DurationHours float64 `json:"duration_hours"`
	DurationText  string  `json:"duration_text"`
}

// UpdateDraftRequest PATCH /drafts/{id}
// start_time/end_time 为 null 时表示清空
type UpdateDraftRequest struct {
	TeacherName   string  `json:"teacher_name"`
	StudentName   string  `json:"student_name"`
	SessionDate   string  `json:"session_date"`
	StartTime     *string `json:"start_time"`
	EndTime       *string `json:"end_time"`
	DurationHours float64 `json:"duration_hours"`
	DurationText  string  `json:"duration_text"`
}

// ApproveDraftRequest POST /drafts/{id}/approve
type ApproveDraftRequest struct {
	ContractNumber string   `json:"contract_number"`
	HourlyRate     float64  `json:"hourly_rate"`
	Location       Location `json:"location"`
}

// RejectDraftRequest POST /drafts/{id}/reject
type RejectDraftRequest struct {
	RejectionReason string `json:"rejection_reason"`
}
