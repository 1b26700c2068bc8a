package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trainhub/console/config"
	"trainhub/console/internal/dto"
	"trainhub/console/internal/model"
	"trainhub/console/internal/upstream"
	"trainhub/console/internal/workflow"
	"trainhub/console/pkg/redis"

	pkgerrors "trainhub/console/pkg/errors"
)

// ── 草稿审批业务错误 ──

const (
	prefixApprove = "审批失败："
	prefixReject  = "拒绝失败："
	prefixEdit    = "更新失败："
	prefixCreate  = "提交草稿失败："
)

// ActionError 后端拒绝或不可达导致的操作失败
// Error() 为带操作前缀的提示文案，Unwrap 保留原始错误供状态码映射
type ActionError struct {
	Prefix string
	Err    error
}

func (e *ActionError) Error() string { return e.Prefix + upstreamMessage(e.Err) }

func (e *ActionError) Unwrap() error { return e.Err }

func upstreamMessage(err error) string {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, pkgerrors.ErrUpstreamUnavailable) {
		return pkgerrors.ErrUpstreamUnavailable.Error()
	}
	return err.Error()
}

// ListQuery 列表范围与展开状态
type ListQuery struct {
	BranchID *int64
	Expanded []string // nil 表示使用默认展开
}

// DraftService 草稿审批业务接口
//
// 每个请求独立完成：先做权限判定，再本地校验，最后才访问后端；
// 审批、拒绝、编辑成功后只刷新一次当前范围并返回新的完整列表
type DraftService interface {
	List(ctx context.Context, p workflow.Principal, q ListQuery) (*dto.DraftListResponse, error)
	SaveForm(ctx context.Context, p workflow.Principal, draftID int64, form workflow.DraftForm) (workflow.DraftForm, error)
	Approve(ctx context.Context, p workflow.Principal, draftID int64, in workflow.ApprovalInput, q ListQuery) (*dto.DraftListResponse, error)
	Reject(ctx context.Context, p workflow.Principal, draftID int64, in workflow.RejectionInput, q ListQuery) (*dto.DraftListResponse, error)
	Edit(ctx context.Context, p workflow.Principal, draftID int64, in workflow.EditInput, q ListQuery) (*dto.DraftListResponse, error)
	CreatePublic(ctx context.Context, in workflow.CreateInput) (*upstream.SessionDraft, error)
}

type draftService struct {
	cfg       *config.DraftConfig
	api       upstream.API
	loader    *draftLoader
	forms     FormStore
	guard     ActionGuard
	actionLog ActionLogService
	logger    *zap.Logger
	now       func() time.Time
}

// NewDraftService 创建 DraftService 实例
func NewDraftService(
	cfg *config.DraftConfig,
	api upstream.API,
	loader *draftLoader,
	stores Stores,
	actionLog ActionLogService,
	logger *zap.Logger,
) DraftService {
	return &draftService{
		cfg:       cfg,
		api:       api,
		loader:    loader,
		forms:     stores.Forms,
		guard:     stores.Guard,
		actionLog: actionLog,
		logger:    logger,
		now:       time.Now,
	}
}

// ═══════════════════════════════════════════════════════════
// List — 分组列表
// ═══════════════════════════════════════════════════════════

func (s *draftService) List(ctx context.Context, p workflow.Principal, q ListQuery) (*dto.DraftListResponse, error) {
	access, scope, err := s.gate(p, q)
	if err != nil {
		return nil, err
	}
	return s.buildListing(ctx, p, access, scope, q.Expanded)
}

func (s *draftService) buildListing(
	ctx context.Context,
	p workflow.Principal,
	access workflow.Access,
	scope workflow.Scope,
	expanded []string,
) (*dto.DraftListResponse, error) {
	loaded, err := s.loader.Load(ctx, scope)
	if err != nil {
		return nil, err
	}

	groups := workflow.GroupByMonth(loaded.Drafts, s.now(), s.cfg.Location())
	if expanded != nil {
		groups = workflow.ApplyExpanded(groups, expanded)
	}

	forms := s.loadForms(ctx, p.UserID)
	branchByID := branchIndex(loaded.Branches)

	resp := &dto.DraftListResponse{
		Access:           toAccessResponse(access),
		Branches:         ToBranchResponses(workflow.FilterBranches(access, loaded.Branches)),
		SelectedBranchID: scope.BranchID,
		Groups:           make([]dto.MonthGroupResponse, 0, len(groups)),
		GeneratedAt:      s.now(),
	}
	for _, g := range groups {
		gr := dto.MonthGroupResponse{
			Key:      g.Key,
			Year:     g.Year,
			Month:    int(g.Month),
			Label:    g.Label,
			Expanded: g.Expanded,
			Summary:  toSummaryResponse(g.Summary),
			Drafts:   make([]dto.DraftResponse, 0, len(g.Drafts)),
		}
		for _, d := range g.Drafts {
			dr := dto.DraftResponse{SessionDraft: d, Actions: workflow.AvailableActions(d)}
			if d.IsPending() {
				form, ok := forms[d.ID]
				if !ok {
					form = workflow.NewDraftForm(branchByID[d.BranchID])
				}
				dr.Form = &form
			}
			gr.Drafts = append(gr.Drafts, dr)
		}
		resp.Groups = append(resp.Groups, gr)
	}
	return resp, nil
}

// ═══════════════════════════════════════════════════════════
// Approve / Reject / Edit
// ═══════════════════════════════════════════════════════════

func (s *draftService) Approve(ctx context.Context, p workflow.Principal, draftID int64, in workflow.ApprovalInput, q ListQuery) (*dto.DraftListResponse, error) {
	access, scope, err := s.gate(p, q)
	if err != nil {
		return nil, err
	}

	req, err := workflow.ValidateApproval(in)
	if err != nil {
		return nil, err
	}

	err = s.withLock(ctx, draftID, func() error {
		return s.api.ApproveDraft(ctx, draftID, req)
	})
	s.audit(ctx, p, scope, draftID, model.ActionApprove, req, err)
	if err != nil {
		return nil, s.actionError(prefixApprove, err)
	}

	s.deleteForm(ctx, p.UserID, draftID)
	return s.refreshAfterAction(ctx, p, access, scope, q.Expanded, draftID), nil
}

func (s *draftService) Reject(ctx context.Context, p workflow.Principal, draftID int64, in workflow.RejectionInput, q ListQuery) (*dto.DraftListResponse, error) {
	access, scope, err := s.gate(p, q)
	if err != nil {
		return nil, err
	}

	req, err := workflow.ValidateRejection(in)
	if err != nil {
		return nil, err
	}

	err = s.withLock(ctx, draftID, func() error {
		return s.api.RejectDraft(ctx, draftID, req)
	})
	s.audit(ctx, p, scope, draftID, model.ActionReject, req, err)
	if err != nil {
		return nil, s.actionError(prefixReject, err)
	}

	s.deleteForm(ctx, p.UserID, draftID)
	return s.refreshAfterAction(ctx, p, access, scope, q.Expanded, draftID), nil
}

func (s *draftService) Edit(ctx context.Context, p workflow.Principal, draftID int64, in workflow.EditInput, q ListQuery) (*dto.DraftListResponse, error) {
	access, scope, err := s.gate(p, q)
	if err != nil {
		return nil, err
	}

	req, err := workflow.ValidateEdit(in)
	if err != nil {
		return nil, err
	}

	err = s.withLock(ctx, draftID, func() error {
		return s.api.UpdateDraft(ctx, draftID, req)
	})
	s.audit(ctx, p, scope, draftID, model.ActionEdit, req, err)
	if err != nil {
		// 保留编辑内容，操作员可直接重试
		if !errors.Is(err, pkgerrors.ErrActionInFlight) {
			s.updateForm(ctx, p.UserID, draftID, func(f workflow.DraftForm) workflow.DraftForm {
				return f.WithEdit(in)
			})
		}
		return nil, s.actionError(prefixEdit, err)
	}

	s.updateForm(ctx, p.UserID, draftID, workflow.DraftForm.WithoutEdit)
	return s.refreshAfterAction(ctx, p, access, scope, q.Expanded, draftID), nil
}

// refreshAfterAction 操作已在后端生效后重新加载列表
// 加载失败不改变操作结果，返回空列表并标记 RefreshFailed，由前端提示手动刷新
func (s *draftService) refreshAfterAction(
	ctx context.Context,
	p workflow.Principal,
	access workflow.Access,
	scope workflow.Scope,
	expanded []string,
	draftID int64,
) *dto.DraftListResponse {
	resp, err := s.buildListing(ctx, p, access, scope, expanded)
	if err == nil {
		return resp
	}
	s.logger.Warn("操作已成功，刷新列表失败", zap.Int64("draft_id", draftID), zap.Error(err))
	return &dto.DraftListResponse{
		Access:           toAccessResponse(access),
		Branches:         []dto.BranchResponse{},
		SelectedBranchID: scope.BranchID,
		Groups:           []dto.MonthGroupResponse{},
		GeneratedAt:      s.now(),
		RefreshFailed:    true,
	}
}

// gate 权限判定，必须先于任何后端访问
func (s *draftService) gate(p workflow.Principal, q ListQuery) (workflow.Access, workflow.Scope, error) {
	access := workflow.DraftApprovalAccess(p)
	scope, err := workflow.ResolveScope(access, q.BranchID)
	return access, scope, err
}

func (s *draftService) actionError(prefix string, err error) error {
	if errors.Is(err, pkgerrors.ErrActionInFlight) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &ActionError{Prefix: prefix, Err: err}
}

// withLock 同一草稿同一时刻只允许一个状态变更请求
// Redis 不可用时不加锁，由后端的单向状态流转兜底
func (s *draftService) withLock(ctx context.Context, draftID int64, fn func() error) error {
	if s.guard == nil {
		return fn()
	}

	owner := uuid.NewString()
	if err := s.guard.AcquireActionLock(ctx, draftID, owner, s.cfg.ActionLockTTL); err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return pkgerrors.ErrActionInFlight
		}
		s.logger.Warn("获取草稿操作锁失败，按无锁处理", zap.Int64("draft_id", draftID), zap.Error(err))
		return fn()
	}
	defer func() {
		// 请求可能已被取消，释放锁不跟随请求上下文
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := s.guard.ReleaseActionLock(releaseCtx, draftID, owner); err != nil {
			s.logger.Warn("释放草稿操作锁失败", zap.Int64("draft_id", draftID), zap.Error(err))
		}
	}()
	return fn()
}

func (s *draftService) audit(
	ctx context.Context,
	p workflow.Principal,
	scope workflow.Scope,
	draftID int64,
	action model.ActionType,
	payload interface{},
	err error,
) {
	if errors.Is(err, pkgerrors.ErrActionInFlight) {
		return
	}
	entry := ActionEntry{
		DraftID:  draftID,
		BranchID: scope.BranchID,
		Action:   action,
		Operator: p,
		Payload:  payload,
		Err:      err,
	}
	if err != nil {
		entry.Message = upstreamMessage(err)
	}
	s.actionLog.Record(ctx, entry)
}

// ═══════════════════════════════════════════════════════════
// 表单状态
// ═══════════════════════════════════════════════════════════

func (s *draftService) SaveForm(ctx context.Context, p workflow.Principal, draftID int64, form workflow.DraftForm) (workflow.DraftForm, error) {
	if !workflow.DraftApprovalAccess(p).Visible {
		return workflow.DraftForm{}, workflow.ErrForbidden
	}

	current, _ := s.getForm(ctx, p.UserID, draftID)
	merged := current.Merge(form)
	if s.forms == nil {
		return merged, nil
	}
	if err := s.putForm(ctx, p.UserID, draftID, merged); err != nil {
		s.logger.Error("保存草稿表单失败", zap.Int64("draft_id", draftID), zap.Error(err))
		return workflow.DraftForm{}, err
	}
	return merged, nil
}

func (s *draftService) loadForms(ctx context.Context, operatorID int64) map[int64]workflow.DraftForm {
	out := make(map[int64]workflow.DraftForm)
	if s.forms == nil {
		return out
	}
	raw, err := s.forms.GetForms(ctx, operatorID)
	if err != nil {
		s.logger.Warn("读取草稿表单失败", zap.Int64("operator_id", operatorID), zap.Error(err))
		return out
	}
	for id, b := range raw {
		var f workflow.DraftForm
		if err := json.Unmarshal(b, &f); err != nil {
			continue
		}
		out[id] = f
	}
	return out
}

func (s *draftService) getForm(ctx context.Context, operatorID, draftID int64) (workflow.DraftForm, bool) {
	if s.forms == nil {
		return workflow.DraftForm{}, false
	}
	raw, ok, err := s.forms.GetForm(ctx, operatorID, draftID)
	if err != nil || !ok {
		return workflow.DraftForm{}, false
	}
	var f workflow.DraftForm
	if err := json.Unmarshal(raw, &f); err != nil {
		return workflow.DraftForm{}, false
	}
	return f, true
}

func (s *draftService) putForm(ctx context.Context, operatorID, draftID int64, f workflow.DraftForm) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return s.forms.SaveForm(ctx, operatorID, draftID, raw, s.cfg.FormTTL)
}

// updateForm 读取-修改-写回；没有已保存表单时以空表单为起点
func (s *draftService) updateForm(ctx context.Context, operatorID, draftID int64, fn func(workflow.DraftForm) workflow.DraftForm) {
	if s.forms == nil {
		return
	}
	current, _ := s.getForm(ctx, operatorID, draftID)
	if err := s.putForm(ctx, operatorID, draftID, fn(current)); err != nil {
		s.logger.Warn("更新草稿表单失败", zap.Int64("draft_id", draftID), zap.Error(err))
	}
}

func (s *draftService) deleteForm(ctx context.Context, operatorID, draftID int64) {
	if s.forms == nil {
		return
	}
	if err := s.forms.DeleteForm(ctx, operatorID, draftID); err != nil {
		s.logger.Warn("清除草稿表单失败", zap.Int64("draft_id", draftID), zap.Error(err))
	}
}

// ═══════════════════════════════════════════════════════════
// CreatePublic — 分校端提交（无需登录）
// ═══════════════════════════════════════════════════════════

func (s *draftService) CreatePublic(ctx context.Context, in workflow.CreateInput) (*upstream.SessionDraft, error) {
	req, err := workflow.ValidateCreate(in)
	if err != nil {
		return nil, err
	}

	draft, err := s.api.CreateDraft(ctx, req)

	entry := ActionEntry{
		BranchID: &req.BranchID,
		Action:   model.ActionCreate,
		Payload:  req,
		Err:      err,
	}
	if draft != nil {
		entry.DraftID = draft.ID
	}
	if err != nil {
		entry.Message = upstreamMessage(err)
	}
	s.actionLog.Record(ctx, entry)

	if err != nil {
		return nil, s.actionError(prefixCreate, err)
	}
	return draft, nil
}

// ── 响应转换 ──

func toAccessResponse(a workflow.Access) dto.AccessResponse {
	return dto.AccessResponse{
		Visible:            a.Visible,
		ForcedBranchID:     a.ForcedBranchID,
		AllowAllBranches:   a.AllowAllBranches,
		ShowBranchSelector: a.ShowBranchSelector,
	}
}

// ToBranchResponses 分校列表响应，默认课时费以字符串输出
func ToBranchResponses(branches []upstream.Branch) []dto.BranchResponse {
	out := make([]dto.BranchResponse, 0, len(branches))
	for _, b := range branches {
		br := dto.BranchResponse{ID: b.ID, Name: b.Name}
		if b.DefaultHourlyRate.Valid {
			rate := b.DefaultHourlyRate.Decimal.String()
			br.DefaultHourlyRate = &rate
		}
		out = append(out, br)
	}
	return out
}

func toSummaryResponse(s workflow.Summary) dto.SummaryResponse {
	return dto.SummaryResponse{
		Total:          s.Total,
		Pending:        s.Pending,
		Approved:       s.Approved,
		Rejected:       s.Rejected,
		TotalHours:     s.TotalHours.String(),
		ApprovedHours:  s.ApprovedHours.String(),
		ApprovedAmount: s.ApprovedAmount.StringFixed(2),
	}
}
