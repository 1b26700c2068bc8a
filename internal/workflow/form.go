package workflow

import (
	"trainhub/console/internal/upstream"
)

// DraftForm 单条草稿的操作员表单状态
// 审批字段、内联拒绝输入框、未提交成功的编辑表单都在这里
type DraftForm struct {
	ContractNumber  string     `json:"contract_number"`
	HourlyRate      string     `json:"hourly_rate"`
	Location        string     `json:"location"`
	Rejecting       bool       `json:"rejecting"`
	RejectionReason string     `json:"rejection_reason"`
	Edit            *EditInput `json:"edit,omitempty"`
}

// NewDraftForm 初始表单：课时费预填分校默认值，地点默认 internal
// 预填值只是建议，操作员可随意修改
func NewDraftForm(branch *upstream.Branch) DraftForm {
	f := DraftForm{Location: string(upstream.LocationInternal)}
	if branch != nil && branch.DefaultHourlyRate.Valid {
		f.HourlyRate = branch.DefaultHourlyRate.Decimal.String()
	}
	return f
}

// StartRejection 展开内联拒绝输入框
func (f DraftForm) StartRejection() DraftForm {
	f.Rejecting = true
	return f
}

// CancelRejection 收起拒绝输入框并丢弃已输入的原因，无其他副作用
func (f DraftForm) CancelRejection() DraftForm {
	f.Rejecting = false
	f.RejectionReason = ""
	return f
}

// WithEdit 保留一份未提交成功的编辑表单
func (f DraftForm) WithEdit(in EditInput) DraftForm {
	edit := in
	f.Edit = &edit
	return f
}

// WithoutEdit 关闭编辑表单
func (f DraftForm) WithoutEdit() DraftForm {
	f.Edit = nil
	return f
}

// ApprovalInput 由表单生成审批输入
func (f DraftForm) ApprovalInput() ApprovalInput {
	return ApprovalInput{
		ContractNumber: f.ContractNumber,
		HourlyRate:     f.HourlyRate,
		Location:       f.Location,
	}
}

// RejectionInput 由表单生成拒绝输入
func (f DraftForm) RejectionInput() RejectionInput {
	return RejectionInput{RejectionReason: f.RejectionReason}
}

// Merge 用操作员提交的表单覆盖当前状态
// 切换为不拒绝时按 CancelRejection 处理；编辑表单不受影响
func (f DraftForm) Merge(next DraftForm) DraftForm {
	merged := next
	merged.Edit = f.Edit
	if merged.Location == "" {
		merged.Location = string(upstream.LocationInternal)
	}
	if merged.Rejecting {
		merged = merged.StartRejection()
	} else {
		merged = merged.CancelRejection()
	}
	return merged
}
