package dto

import (
	"time"

	"trainhub/console/internal/upstream"
	"trainhub/console/internal/workflow"
)

// ── 草稿审批请求 ──

// DraftListQuery 列表查询参数
// expanded 缺省时仅当前月展开；显式传入时以其为准（可重复或逗号分隔）
type DraftListQuery struct {
	BranchID *int64   `form:"branch_id" binding:"omitempty,gt=0"`
	Expanded []string `form:"expanded"`
}

// ApproveDraftRequest 审批
type ApproveDraftRequest struct {
	ContractNumber string        `json:"contract_number"`
	HourlyRate     NumericString `json:"hourly_rate"`
	Location       string        `json:"location"`
}

// Input 转换为审批表单
func (r *ApproveDraftRequest) Input() workflow.ApprovalInput {
	return workflow.ApprovalInput{
		ContractNumber: r.ContractNumber,
		HourlyRate:     string(r.HourlyRate),
		Location:       r.Location,
	}
}

// RejectDraftRequest 拒绝
type RejectDraftRequest struct {
	workflow.RejectionInput
}

// DraftFields 编辑与分校端提交共用的草稿字段
type DraftFields struct {
	TeacherName   string        `json:"teacher_name"`
	StudentName   string        `json:"student_name"`
	SessionDate   string        `json:"session_date"`
	StartTime     string        `json:"start_time"`
	EndTime       string        `json:"end_time"`
	DurationHours NumericString `json:"duration_hours"`
	DurationText  string        `json:"duration_text"`
}

func (f *DraftFields) editInput() workflow.EditInput {
	return workflow.EditInput{
		TeacherName:   f.TeacherName,
		StudentName:   f.StudentName,
		SessionDate:   f.SessionDate,
		StartTime:     f.StartTime,
		EndTime:       f.EndTime,
		DurationHours: string(f.DurationHours),
		DurationText:  f.DurationText,
	}
}

// UpdateDraftRequest 编辑
type UpdateDraftRequest struct {
	DraftFields
}

// Input 转换为编辑表单
func (r *UpdateDraftRequest) Input() workflow.EditInput {
	return r.editInput()
}

// SaveDraftFormRequest 保存单条草稿表单
type SaveDraftFormRequest struct {
	ContractNumber  string        `json:"contract_number"  binding:"max=64"`
	HourlyRate      NumericString `json:"hourly_rate"      binding:"max=32"`
	Location        string        `json:"location"         binding:"omitempty,oneof=internal external"`
	Rejecting       bool          `json:"rejecting"`
	RejectionReason string        `json:"rejection_reason" binding:"max=500"`
}

// CreateDraftRequest 分校端提交
type CreateDraftRequest struct {
	BranchID int64 `json:"branch_id"`
	DraftFields
}

// Input 转换为提交表单
func (r *CreateDraftRequest) Input() workflow.CreateInput {
	return workflow.CreateInput{BranchID: r.BranchID, EditInput: r.editInput()}
}

// ExportQuery 月度导出参数
type ExportQuery struct {
	Year     int    `form:"year"      binding:"required,min=2000,max=2100"`
	Month    int    `form:"month"     binding:"required,min=1,max=12"`
	BranchID *int64 `form:"branch_id" binding:"omitempty,gt=0"`
}

// CalendarQuery 日历导出参数
type CalendarQuery struct {
	BranchID *int64 `form:"branch_id" binding:"omitempty,gt=0"`
}

// ── 草稿审批响应 ──

// DraftListResponse 分组后的草稿列表
// RefreshFailed 为 true 表示操作已成功但随后的列表刷新失败
type DraftListResponse struct {
	Access           AccessResponse       `json:"access"`
	Branches         []BranchResponse     `json:"branches"`
	SelectedBranchID *int64               `json:"selected_branch_id,omitempty"`
	Groups           []MonthGroupResponse `json:"groups"`
	GeneratedAt      time.Time            `json:"generated_at"`
	RefreshFailed    bool                 `json:"refresh_failed,omitempty"`
}

// MonthGroupResponse 月份分组
type MonthGroupResponse struct {
	Key      string          `json:"key"`
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	Label    string          `json:"label"`
	Expanded bool            `json:"expanded"`
	Summary  SummaryResponse `json:"summary"`
	Drafts   []DraftResponse `json:"drafts"`
}

// SummaryResponse 分组汇总，金额与课时以字符串输出避免精度丢失
type SummaryResponse struct {
	Total          int    `json:"total"`
	Pending        int    `json:"pending"`
	Approved       int    `json:"approved"`
	Rejected       int    `json:"rejected"`
	TotalHours     string `json:"total_hours"`
	ApprovedHours  string `json:"approved_hours"`
	ApprovedAmount string `json:"approved_amount"`
}

// DraftResponse 单条草稿及其可执行操作
// Form 仅待审批草稿返回
type DraftResponse struct {
	upstream.SessionDraft
	Actions workflow.Actions    `json:"actions"`
	Form    *workflow.DraftForm `json:"form,omitempty"`
}

// DraftFormResponse 保存后的表单
type DraftFormResponse struct {
	DraftID int64             `json:"draft_id"`
	Form    workflow.DraftForm `json:"form"`
}
