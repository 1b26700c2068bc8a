package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"trainhub/console/internal/model"
)

// ActionLogFilter 操作日志查询条件，零值字段不参与过滤
type ActionLogFilter struct {
	DraftID    int64
	BranchID   int64
	OperatorID int64
	Action     model.ActionType
	Outcome    model.Outcome
	Since      *time.Time
	Until      *time.Time
}

// ActionLogRepository 操作日志数据访问接口
type ActionLogRepository interface {
	Create(ctx context.Context, log *model.ActionLog) error
	List(ctx context.Context, filter ActionLogFilter, offset, limit int) ([]model.ActionLog, int64, error)
}

type actionLogRepo struct {
	db *gorm.DB
}

// NewActionLogRepo 创建 ActionLogRepository 实例
func NewActionLogRepo(db *gorm.DB) ActionLogRepository {
	return &actionLogRepo{db: db}
}

func (r *actionLogRepo) Create(ctx context.Context, log *model.ActionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *actionLogRepo) List(ctx context.Context, filter ActionLogFilter, offset, limit int) ([]model.ActionLog, int64, error) {
	var logs []model.ActionLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ActionLog{})

	if filter.DraftID > 0 {
		db = db.Where("draft_id = ?", filter.DraftID)
	}
	if filter.BranchID > 0 {
		db = db.Where("branch_id = ?", filter.BranchID)
	}
	if filter.OperatorID > 0 {
		db = db.Where("operator_id = ?", filter.OperatorID)
	}
	if filter.Action != "" {
		db = db.Where("action = ?", filter.Action)
	}
	if filter.Outcome != "" {
		db = db.Where("outcome = ?", filter.Outcome)
	}
	if filter.Since != nil {
		db = db.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		db = db.Where("created_at < ?", *filter.Until)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
