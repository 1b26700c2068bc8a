package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trainhub/console/config"
	"trainhub/console/internal/model"
	"trainhub/console/internal/repository"
	"trainhub/console/internal/upstream"
	"trainhub/console/internal/workflow"

	pkgerrors "trainhub/console/pkg/errors"
)

// ── 测试辅助 ──

type draftFixture struct {
	svc   DraftService
	api   *mockAPI
	forms *mockFormStore
	guard *mockGuard
	logs  *mockActionLogRepo
}

func testDraftConfig() *config.DraftConfig {
	return &config.DraftConfig{
		Timezone:      "UTC",
		FormTTL:       time.Hour,
		ActionLockTTL: 30 * time.Second,
	}
}

func setupTestDraftService() *draftFixture {
	api := newMockAPI()
	api.branches = []upstream.Branch{
		{ID: 1, Name: "一分校", DefaultHourlyRate: decimal.NewNullDecimal(decimal.NewFromInt(150))},
		{ID: 4, Name: "四分校"},
	}
	logs := &mockActionLogRepo{}
	forms := newMockFormStore()
	guard := newMockGuard()
	logger := zap.NewNop()

	cfg := testDraftConfig()
	branch := NewBranchService(cfg, api, nil, logger)
	loader := newDraftLoader(api, branch, 2, logger)
	actionLog := NewActionLogService(&repository.Repository{ActionLog: logs}, logger)
	svc := NewDraftService(cfg, api, loader, Stores{Forms: forms, Guard: guard}, actionLog, logger)

	return &draftFixture{svc: svc, api: api, forms: forms, guard: guard, logs: logs}
}

func pendingDraft(id, branchID int64) upstream.SessionDraft {
	return upstream.SessionDraft{
		ID:            id,
		BranchID:      branchID,
		TeacherName:   "王老师",
		StudentName:   "小明",
		SessionDate:   "2026-10-02",
		DurationHours: decimal.NewFromInt(1),
		DurationText:  "1 小时",
		Status:        upstream.StatusPending,
		CreatedAt:     time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC),
	}
}

func int64Ptr(v int64) *int64 { return &v }

var (
	opManager   = workflow.Principal{UserID: 7, Name: "运营", Role: workflow.RoleOperationManager}
	opBranch4   = workflow.Principal{UserID: 8, Name: "四分校运营", Role: workflow.RoleOperationManager, BranchID: int64Ptr(4)}
	plainAdmin  = workflow.Principal{UserID: 9, Role: workflow.RoleSuperAdmin}
	branchScope = ListQuery{BranchID: int64Ptr(1)}
)

// ── 权限 ──

func TestDraftService_ForbiddenBeforeAnyFetch(t *testing.T) {
	f := setupTestDraftService()
	ctx := context.Background()

	if _, err := f.svc.List(ctx, plainAdmin, ListQuery{}); !errors.Is(err, workflow.ErrForbidden) {
		t.Errorf("期望 ErrForbidden，实际: %v", err)
	}
	_, err := f.svc.Approve(ctx, plainAdmin, 1, workflow.ApprovalInput{ContractNumber: "C", HourlyRate: "1"}, ListQuery{})
	if !errors.Is(err, workflow.ErrForbidden) {
		t.Errorf("期望 ErrForbidden，实际: %v", err)
	}
	if n := f.api.totalCalls(); n != 0 {
		t.Errorf("权限拒绝时不应访问后端，实际请求 %d 次", n)
	}
}

func TestDraftService_List_ForcedBranch(t *testing.T) {
	f := setupTestDraftService()
	f.api.drafts[4] = []upstream.SessionDraft{pendingDraft(40, 4)}
	f.api.drafts[9] = []upstream.SessionDraft{pendingDraft(90, 9)}

	resp, err := f.svc.List(context.Background(), opBranch4, ListQuery{BranchID: int64Ptr(9)})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(f.api.listCalls) != 1 || f.api.listCalls[0] != 4 {
		t.Errorf("期望只请求分校 4，实际: %v", f.api.listCalls)
	}
	if resp.SelectedBranchID == nil || *resp.SelectedBranchID != 4 {
		t.Errorf("期望选中分校 4，实际: %v", resp.SelectedBranchID)
	}
	if resp.Access.AllowAllBranches || resp.Access.ShowBranchSelector {
		t.Error("不应提供全部分校或分校选择")
	}
	if len(resp.Branches) != 1 || resp.Branches[0].ID != 4 {
		t.Errorf("期望仅返回分校 4，实际: %+v", resp.Branches)
	}
}

func TestDraftService_List_FormsAndActions(t *testing.T) {
	f := setupTestDraftService()
	approved := pendingDraft(2, 1)
	approved.Status = upstream.StatusApproved
	f.api.drafts[1] = []upstream.SessionDraft{pendingDraft(1, 1), approved, pendingDraft(3, 1)}
	f.forms.put(opManager.UserID, 3, workflow.DraftForm{ContractNumber: "C-3", HourlyRate: "99", Location: "external"})

	resp, err := f.svc.List(context.Background(), opManager, branchScope)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(resp.Groups) != 1 {
		t.Fatalf("期望 1 个分组，实际 %d", len(resp.Groups))
	}
	drafts := resp.Groups[0].Drafts
	if len(drafts) != 3 {
		t.Fatalf("期望 3 条草稿，实际 %d", len(drafts))
	}

	// 无保存表单时预填分校默认课时费
	if drafts[0].Form == nil || drafts[0].Form.HourlyRate != "150" {
		t.Errorf("期望预填 150，实际: %+v", drafts[0].Form)
	}
	if drafts[1].Form != nil || drafts[1].Actions.CanApprove {
		t.Errorf("已审批草稿应只读: %+v", drafts[1])
	}
	if drafts[2].Form == nil || drafts[2].Form.ContractNumber != "C-3" {
		t.Errorf("应返回已保存表单，实际: %+v", drafts[2].Form)
	}
}

func TestDraftService_List_ExpandedOverride(t *testing.T) {
	f := setupTestDraftService()
	old := pendingDraft(1, 1)
	old.CreatedAt = time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	f.api.drafts[1] = []upstream.SessionDraft{old}

	resp, err := f.svc.List(context.Background(), opManager, ListQuery{BranchID: int64Ptr(1), Expanded: []string{"2025-01"}})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if !resp.Groups[0].Expanded {
		t.Error("显式展开的分组应展开")
	}
}

// ── 审批 ──

func TestDraftService_Approve_InvalidInputNoRequest(t *testing.T) {
	cases := []workflow.ApprovalInput{
		{ContractNumber: "", HourlyRate: "100"},
		{ContractNumber: "C-1", HourlyRate: "abc"},
		{ContractNumber: "C-1", HourlyRate: "0"},
		{ContractNumber: "C-1", HourlyRate: "-5"},
	}
	for _, in := range cases {
		f := setupTestDraftService()
		_, err := f.svc.Approve(context.Background(), opManager, 1, in, branchScope)
		var verr *workflow.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("输入 %+v 期望 ValidationError，实际: %v", in, err)
		}
		if n := f.api.totalCalls(); n != 0 {
			t.Errorf("输入 %+v 不应发出任何请求，实际 %d 次", in, n)
		}
		if len(f.logs.snapshot()) != 0 {
			t.Error("本地校验失败不应写操作日志")
		}
	}
}

func TestDraftService_Approve_OneRequestThenOneRefresh(t *testing.T) {
	f := setupTestDraftService()
	f.api.drafts[1] = []upstream.SessionDraft{pendingDraft(3, 1)}
	f.forms.put(opManager.UserID, 3, workflow.DraftForm{ContractNumber: "C-1"})

	resp, err := f.svc.Approve(context.Background(), opManager, 3,
		workflow.ApprovalInput{ContractNumber: "C-1", HourlyRate: "150.0"}, branchScope)
	if err != nil {
		t.Fatalf("Approve 失败: %v", err)
	}

	if len(f.api.approveCalls) != 1 {
		t.Fatalf("期望 1 次审批请求，实际 %d", len(f.api.approveCalls))
	}
	req := f.api.approveCalls[0]
	if f.api.actionIDs[0] != 3 || req.ContractNumber != "C-1" || req.HourlyRate != 150 || req.Location != upstream.LocationInternal {
		t.Errorf("审批请求不符: id=%d req=%+v", f.api.actionIDs[0], req)
	}
	if len(f.api.listCalls) != 1 {
		t.Errorf("期望刷新 1 次，实际 %d", len(f.api.listCalls))
	}
	if resp == nil || len(resp.Groups) != 1 {
		t.Errorf("应返回刷新后的列表，实际: %+v", resp)
	}
	if _, ok, _ := f.forms.GetForm(context.Background(), opManager.UserID, 3); ok {
		t.Error("审批成功后应清除表单")
	}
	if len(f.guard.held) != 0 || len(f.guard.released) != 1 {
		t.Errorf("操作锁应已释放: held=%v released=%v", f.guard.held, f.guard.released)
	}

	logs := f.logs.snapshot()
	if len(logs) != 1 || logs[0].Action != model.ActionApprove || logs[0].Outcome != model.OutcomeSuccess {
		t.Errorf("操作日志不符: %+v", logs)
	}
}

func TestDraftService_Approve_RefreshFailureKeepsSuccess(t *testing.T) {
	f := setupTestDraftService()
	f.api.drafts[1] = []upstream.SessionDraft{pendingDraft(3, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.api.afterAction = cancel

	resp, err := f.svc.Approve(ctx, opManager, 3,
		workflow.ApprovalInput{ContractNumber: "C-1", HourlyRate: "150"}, branchScope)
	if err != nil {
		t.Fatalf("审批已成功，刷新失败不应返回错误: %v", err)
	}
	if resp == nil || !resp.RefreshFailed {
		t.Fatalf("期望 RefreshFailed，实际: %+v", resp)
	}
	if len(resp.Groups) != 0 || resp.SelectedBranchID == nil || *resp.SelectedBranchID != 1 || !resp.Access.Visible {
		t.Errorf("空列表应保留权限与分校范围: %+v", resp)
	}
	if len(f.api.approveCalls) != 1 {
		t.Errorf("期望 1 次审批请求，实际 %d", len(f.api.approveCalls))
	}

	logs := f.logs.snapshot()
	if len(logs) != 1 || logs[0].Outcome != model.OutcomeSuccess {
		t.Errorf("应记录一条成功日志: %+v", logs)
	}
}

func TestDraftService_Edit_RefreshFailureKeepsSuccess(t *testing.T) {
	f := setupTestDraftService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.api.afterAction = cancel

	resp, err := f.svc.Edit(ctx, opManager, 3, workflow.EditInput{
		TeacherName:   "王老师",
		StudentName:   "小明",
		SessionDate:   "2026-10-02",
		DurationHours: "1",
		DurationText:  "1 小时",
	}, branchScope)
	if err != nil || resp == nil || !resp.RefreshFailed {
		t.Errorf("期望成功并标记 RefreshFailed，实际 resp=%+v err=%v", resp, err)
	}
}

func TestDraftService_Approve_BackendFailure(t *testing.T) {
	f := setupTestDraftService()
	f.api.actionErr = &upstream.APIError{StatusCode: 409, Message: "草稿已审批"}
	f.forms.put(opManager.UserID, 3, workflow.DraftForm{ContractNumber: "C-1", HourlyRate: "150"})

	_, err := f.svc.Approve(context.Background(), opManager, 3,
		workflow.ApprovalInput{ContractNumber: "C-1", HourlyRate: "150"}, branchScope)

	var actErr *ActionError
	if !errors.As(err, &actErr) {
		t.Fatalf("期望 ActionError，实际: %v", err)
	}
	if err.Error() != "审批失败：草稿已审批" {
		t.Errorf("错误消息不符: %q", err.Error())
	}
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 409 {
		t.Error("应保留原始 APIError")
	}
	if len(f.api.listCalls) != 0 {
		t.Error("失败时不应刷新列表")
	}
	if _, ok, _ := f.forms.GetForm(context.Background(), opManager.UserID, 3); !ok {
		t.Error("失败时不应清除表单")
	}
	logs := f.logs.snapshot()
	if len(logs) != 1 || logs[0].Outcome != model.OutcomeFailure || logs[0].Message != "草稿已审批" {
		t.Errorf("失败日志不符: %+v", logs)
	}
}

func TestDraftService_Approve_InFlight(t *testing.T) {
	f := setupTestDraftService()
	f.guard.held[3] = "other-request"

	_, err := f.svc.Approve(context.Background(), opManager, 3,
		workflow.ApprovalInput{ContractNumber: "C-1", HourlyRate: "150"}, branchScope)
	if !errors.Is(err, pkgerrors.ErrActionInFlight) {
		t.Errorf("期望 ErrActionInFlight，实际: %v", err)
	}
	if len(f.api.approveCalls) != 0 {
		t.Error("已有操作处理中时不应再次提交")
	}
	if f.guard.held[3] != "other-request" {
		t.Error("不应释放他人持有的锁")
	}
}

// ── 拒绝 ──

func TestDraftService_Reject_EmptyReasonNoRequest(t *testing.T) {
	f := setupTestDraftService()

	_, err := f.svc.Reject(context.Background(), opManager, 9, workflow.RejectionInput{RejectionReason: ""}, branchScope)
	var verr *workflow.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("期望 ValidationError，实际: %v", err)
	}
	if n := f.api.totalCalls(); n != 0 {
		t.Errorf("不应发出任何请求，实际 %d 次", n)
	}
}

func TestDraftService_Reject_Success(t *testing.T) {
	f := setupTestDraftService()
	f.forms.put(opManager.UserID, 9, workflow.DraftForm{Rejecting: true, RejectionReason: "重复"})

	_, err := f.svc.Reject(context.Background(), opManager, 9, workflow.RejectionInput{RejectionReason: " 重复提交 "}, branchScope)
	if err != nil {
		t.Fatalf("Reject 失败: %v", err)
	}
	if len(f.api.rejectCalls) != 1 || f.api.rejectCalls[0].RejectionReason != "重复提交" {
		t.Errorf("拒绝请求不符: %+v", f.api.rejectCalls)
	}
	if len(f.api.listCalls) != 1 {
		t.Errorf("期望刷新 1 次，实际 %d", len(f.api.listCalls))
	}
	if _, ok, _ := f.forms.GetForm(context.Background(), opManager.UserID, 9); ok {
		t.Error("拒绝成功后应清除表单")
	}
}

func TestDraftService_Reject_Unreachable(t *testing.T) {
	f := setupTestDraftService()
	f.api.actionErr = pkgerrors.ErrUpstreamUnavailable

	_, err := f.svc.Reject(context.Background(), opManager, 9, workflow.RejectionInput{RejectionReason: "x"}, branchScope)
	if !errors.Is(err, pkgerrors.ErrUpstreamUnavailable) {
		t.Errorf("期望 ErrUpstreamUnavailable，实际: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "拒绝失败：") {
		t.Errorf("错误消息应带前缀: %q", err.Error())
	}
}

// ── 编辑 ──

func validEditInput() workflow.EditInput {
	return workflow.EditInput{
		TeacherName:   "李老师",
		StudentName:   "小红",
		SessionDate:   "2026-10-03",
		StartTime:     "14:00",
		EndTime:       "15:30",
		DurationHours: "1.5",
		DurationText:  "1.5 小时",
	}
}

func TestDraftService_Edit_FailureKeepsForm(t *testing.T) {
	f := setupTestDraftService()
	f.api.actionErr = &upstream.APIError{StatusCode: 400, Message: "日期无效"}
	f.forms.put(opManager.UserID, 5, workflow.DraftForm{ContractNumber: "C-5"})

	in := validEditInput()
	_, err := f.svc.Edit(context.Background(), opManager, 5, in, branchScope)
	if err == nil || err.Error() != "更新失败：日期无效" {
		t.Fatalf("错误消息不符: %v", err)
	}

	raw, ok, _ := f.forms.GetForm(context.Background(), opManager.UserID, 5)
	if !ok {
		t.Fatal("失败后应保留编辑表单")
	}
	var form workflow.DraftForm
	_ = json.Unmarshal(raw, &form)
	if form.Edit == nil || form.Edit.TeacherName != "李老师" {
		t.Errorf("编辑内容未保留: %+v", form.Edit)
	}
	if form.ContractNumber != "C-5" {
		t.Error("不应覆盖审批字段")
	}
}

func TestDraftService_Edit_SuccessClosesForm(t *testing.T) {
	f := setupTestDraftService()
	f.forms.put(opManager.UserID, 5, workflow.DraftForm{ContractNumber: "C-5"}.WithEdit(validEditInput()))

	if _, err := f.svc.Edit(context.Background(), opManager, 5, validEditInput(), branchScope); err != nil {
		t.Fatalf("Edit 失败: %v", err)
	}
	if len(f.api.updateCalls) != 1 || *f.api.updateCalls[0].StartTime != "14:00" {
		t.Errorf("更新请求不符: %+v", f.api.updateCalls)
	}

	raw, _, _ := f.forms.GetForm(context.Background(), opManager.UserID, 5)
	var form workflow.DraftForm
	_ = json.Unmarshal(raw, &form)
	if form.Edit != nil {
		t.Error("成功后应关闭编辑表单")
	}
	if form.ContractNumber != "C-5" {
		t.Error("审批字段应保留")
	}
}

// ── 表单 ──

func TestDraftService_SaveForm(t *testing.T) {
	f := setupTestDraftService()

	form, err := f.svc.SaveForm(context.Background(), opManager, 6, workflow.DraftForm{Rejecting: true, RejectionReason: "缺课"})
	if err != nil {
		t.Fatalf("SaveForm 失败: %v", err)
	}
	if !form.Rejecting || form.Location != "internal" {
		t.Errorf("表单不符: %+v", form)
	}

	form, _ = f.svc.SaveForm(context.Background(), opManager, 6, workflow.DraftForm{ContractNumber: "C-6", RejectionReason: "缺课"})
	if form.Rejecting || form.RejectionReason != "" {
		t.Errorf("取消拒绝后应清空原因: %+v", form)
	}

	if _, err := f.svc.SaveForm(context.Background(), plainAdmin, 6, workflow.DraftForm{}); !errors.Is(err, workflow.ErrForbidden) {
		t.Errorf("期望 ErrForbidden，实际: %v", err)
	}
}

// ── 分校端提交 ──

func TestDraftService_CreatePublic(t *testing.T) {
	f := setupTestDraftService()
	created := pendingDraft(100, 1)
	f.api.created = &created

	in := workflow.CreateInput{BranchID: 1, EditInput: validEditInput()}
	draft, err := f.svc.CreatePublic(context.Background(), in)
	if err != nil {
		t.Fatalf("CreatePublic 失败: %v", err)
	}
	if draft.ID != 100 || len(f.api.createCalls) != 1 {
		t.Errorf("提交结果不符: draft=%+v calls=%d", draft, len(f.api.createCalls))
	}
	logs := f.logs.snapshot()
	if len(logs) != 1 || logs[0].Action != model.ActionCreate || logs[0].DraftID != 100 {
		t.Errorf("操作日志不符: %+v", logs)
	}

	_, err = f.svc.CreatePublic(context.Background(), workflow.CreateInput{EditInput: validEditInput()})
	var verr *workflow.ValidationError
	if !errors.As(err, &verr) || len(f.api.createCalls) != 1 {
		t.Errorf("缺少分校应本地拒绝，实际 err=%v calls=%d", err, len(f.api.createCalls))
	}
}
