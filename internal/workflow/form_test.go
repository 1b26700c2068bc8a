package workflow

import (
	"testing"

	"github.com/shopspring/decimal"

	"trainhub/console/internal/upstream"
)

func TestNewDraftForm_Prefill(t *testing.T) {
	b := &upstream.Branch{ID: 1, DefaultHourlyRate: decimal.NewNullDecimal(decimal.RequireFromString("120.50"))}
	f := NewDraftForm(b)
	if f.HourlyRate != "120.5" {
		t.Errorf("期望预填 120.5，实际 %q", f.HourlyRate)
	}
	if f.Location != "internal" {
		t.Errorf("期望默认地点 internal，实际 %q", f.Location)
	}

	empty := NewDraftForm(&upstream.Branch{ID: 2})
	if empty.HourlyRate != "" {
		t.Errorf("分校无默认课时费时不应预填，实际 %q", empty.HourlyRate)
	}
	if NewDraftForm(nil).Location != "internal" {
		t.Error("无分校时也应默认 internal")
	}
}

func TestDraftForm_RejectionToggle(t *testing.T) {
	f := DraftForm{ContractNumber: "C-1"}.StartRejection()
	if !f.Rejecting {
		t.Fatal("StartRejection 后应处于拒绝状态")
	}
	f.RejectionReason = "重复提交"

	cancelled := f.CancelRejection()
	if cancelled.Rejecting || cancelled.RejectionReason != "" {
		t.Errorf("取消后应清空原因: %+v", cancelled)
	}
	if cancelled.ContractNumber != "C-1" {
		t.Error("取消拒绝不应影响审批字段")
	}
	if f.RejectionReason != "重复提交" {
		t.Error("CancelRejection 不应修改原表单")
	}
}

func TestDraftForm_Merge(t *testing.T) {
	edit := validEdit()
	cur := DraftForm{Rejecting: true, RejectionReason: "旧原因"}.WithEdit(edit)

	merged := cur.Merge(DraftForm{ContractNumber: "C-9", HourlyRate: "99", RejectionReason: "残留"})
	if merged.Rejecting || merged.RejectionReason != "" {
		t.Errorf("提交不拒绝时应清空原因: %+v", merged)
	}
	if merged.Location != "internal" {
		t.Errorf("地点为空时应默认 internal，实际 %q", merged.Location)
	}
	if merged.Edit == nil || merged.Edit.TeacherName != edit.TeacherName {
		t.Error("Merge 不应丢弃编辑表单")
	}
	if merged.WithoutEdit().Edit != nil {
		t.Error("WithoutEdit 应关闭编辑表单")
	}

	in := merged.ApprovalInput()
	if in.ContractNumber != "C-9" || in.HourlyRate != "99" {
		t.Errorf("审批输入不符: %+v", in)
	}
	rejecting := merged.Merge(DraftForm{Rejecting: true, RejectionReason: "学员请假"})
	if rejecting.RejectionInput().RejectionReason != "学员请假" {
		t.Errorf("拒绝输入不符: %+v", rejecting)
	}
}
