package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trainhub/console/internal/dto"
	"trainhub/console/internal/model"
	"trainhub/console/internal/repository"
	"trainhub/console/internal/workflow"
)

// ActionEntry 一次提交到后端的草稿操作
type ActionEntry struct {
	DraftID  int64
	BranchID *int64
	Action   model.ActionType
	Operator workflow.Principal
	Payload  interface{}
	Err      error
	Message  string
}

// ActionLogService 操作日志业务接口
type ActionLogService interface {
	// Record 在请求路径上同步写入一条操作日志，使用脱离请求取消的 3s 超时；
	// 写入失败只记日志，不影响业务结果
	Record(ctx context.Context, entry ActionEntry)
	List(ctx context.Context, p workflow.Principal, q *dto.ActionLogQuery) ([]dto.ActionLogResponse, int64, error)
}

type actionLogService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewActionLogService 创建 ActionLogService 实例
func NewActionLogService(repo *repository.Repository, logger *zap.Logger) ActionLogService {
	return &actionLogService{repo: repo, logger: logger}
}

func (s *actionLogService) Record(ctx context.Context, entry ActionEntry) {
	outcome := model.OutcomeSuccess
	if entry.Err != nil {
		outcome = model.OutcomeFailure
	}

	log := &model.ActionLog{
		LogID:        uuid.NewString(),
		RequestID:    RequestIDFrom(ctx),
		DraftID:      entry.DraftID,
		BranchID:     entry.BranchID,
		Action:       entry.Action,
		OperatorID:   entry.Operator.UserID,
		OperatorName: entry.Operator.Name,
		OperatorRole: entry.Operator.Role.String(),
		Outcome:      outcome,
		Message:      entry.Message,
		Payload:      model.NewJSONB(entry.Payload),
	}

	fields := []zap.Field{
		zap.String("action", string(entry.Action)),
		zap.Int64("draft_id", entry.DraftID),
		zap.Int64("operator_id", entry.Operator.UserID),
		zap.String("outcome", string(outcome)),
	}
	if entry.Err != nil {
		s.logger.Warn("草稿操作失败", append(fields, zap.Error(entry.Err))...)
	} else {
		s.logger.Info("草稿操作成功", fields...)
	}

	if s.repo == nil || s.repo.ActionLog == nil {
		return
	}
	// 请求取消不应丢失已发生操作的日志
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.repo.ActionLog.Create(writeCtx, log); err != nil {
		s.logger.Error("写入操作日志失败", append(fields, zap.Error(err))...)
	}
}

func (s *actionLogService) List(ctx context.Context, p workflow.Principal, q *dto.ActionLogQuery) ([]dto.ActionLogResponse, int64, error) {
	if !workflow.ActionLogAccess(p) {
		return nil, 0, workflow.ErrForbidden
	}
	if s.repo == nil || s.repo.ActionLog == nil {
		return []dto.ActionLogResponse{}, 0, nil
	}

	filter, err := toActionLogFilter(q)
	if err != nil {
		return nil, 0, err
	}

	logs, total, err := s.repo.ActionLog.List(ctx, filter, q.GetOffset(), q.GetPageSize())
	if err != nil {
		s.logger.Error("查询操作日志失败", zap.Error(err))
		return nil, 0, err
	}

	out := make([]dto.ActionLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, dto.ActionLogResponse{
			ID:           l.LogID,
			RequestID:    l.RequestID,
			DraftID:      l.DraftID,
			BranchID:     l.BranchID,
			Action:       string(l.Action),
			OperatorID:   l.OperatorID,
			OperatorName: l.OperatorName,
			OperatorRole: l.OperatorRole,
			Outcome:      string(l.Outcome),
			Message:      l.Message,
			Payload:      []byte(l.Payload),
			CreatedAt:    l.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, total, nil
}

// ErrInvalidDateRange 起止日期无效
var ErrInvalidDateRange = errors.New("结束日期必须晚于开始日期")

func toActionLogFilter(q *dto.ActionLogQuery) (repository.ActionLogFilter, error) {
	filter := repository.ActionLogFilter{
		DraftID:    q.DraftID,
		BranchID:   q.BranchID,
		OperatorID: q.OperatorID,
		Action:     model.ActionType(q.Action),
		Outcome:    model.Outcome(q.Outcome),
	}
	if q.Since != "" {
		t, err := time.Parse("2006-01-02", q.Since)
		if err != nil {
			return filter, fmt.Errorf("since: %w", err)
		}
		filter.Since = &t
	}
	if q.Until != "" {
		t, err := time.Parse("2006-01-02", q.Until)
		if err != nil {
			return filter, fmt.Errorf("until: %w", err)
		}
		// 包含结束当天
		end := t.AddDate(0, 0, 1)
		filter.Until = &end
	}
	if filter.Since != nil && filter.Until != nil && !filter.Until.After(*filter.Since) {
		return filter, ErrInvalidDateRange
	}
	return filter, nil
}
