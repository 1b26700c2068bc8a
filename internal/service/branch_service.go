package service

import (
	"context"

	"go.uber.org/zap"

	"trainhub/console/config"
	"trainhub/console/internal/upstream"
	"trainhub/console/internal/workflow"
)

// BranchService 分校业务接口
type BranchService interface {
	// All 全部分校（优先读缓存）
	All(ctx context.Context) ([]upstream.Branch, error)
	// ForPrincipal 当前操作员可选择的分校
	ForPrincipal(ctx context.Context, p workflow.Principal) ([]upstream.Branch, error)
}

type branchService struct {
	cfg    *config.DraftConfig
	api    upstream.API
	cache  BranchCache
	logger *zap.Logger
}

// NewBranchService 创建 BranchService 实例
func NewBranchService(cfg *config.DraftConfig, api upstream.API, cache BranchCache, logger *zap.Logger) BranchService {
	return &branchService{cfg: cfg, api: api, cache: cache, logger: logger}
}

func (s *branchService) All(ctx context.Context) ([]upstream.Branch, error) {
	if s.cache != nil {
		var cached []upstream.Branch
		hit, err := s.cache.GetBranches(ctx, &cached)
		if err != nil {
			s.logger.Warn("读取分校缓存失败", zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	branches, err := s.api.ListBranches(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.cfg.BranchCacheTTL > 0 {
		if err := s.cache.CacheBranches(ctx, branches, s.cfg.BranchCacheTTL); err != nil {
			s.logger.Warn("写入分校缓存失败", zap.Error(err))
		}
	}
	return branches, nil
}

func (s *branchService) ForPrincipal(ctx context.Context, p workflow.Principal) ([]upstream.Branch, error) {
	access := workflow.DraftApprovalAccess(p)
	if !access.Visible {
		return nil, workflow.ErrForbidden
	}
	branches, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return workflow.FilterBranches(access, branches), nil
}

// branchIndex 按 ID 索引分校
func branchIndex(branches []upstream.Branch) map[int64]*upstream.Branch {
	idx := make(map[int64]*upstream.Branch, len(branches))
	for i := range branches {
		idx[branches[i].ID] = &branches[i]
	}
	return idx
}
