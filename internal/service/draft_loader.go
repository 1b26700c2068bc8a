package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trainhub/console/internal/upstream"
	"trainhub/console/internal/workflow"
)

const defaultMaxConcurrency = 4

// loadResult 一次加载的结果
type loadResult struct {
	Drafts   []upstream.SessionDraft // 按分校顺序拼接，分校内保持后端返回顺序
	Branches []upstream.Branch
	Failed   []int64 // 加载失败被忽略的分校
}

// draftLoader 按范围加载草稿
//
// 单个分校失败只记录 WARN 并从结果中剔除；
// 全分校模式下分校列表拉取失败时返回空结果，不保留任何旧数据
type draftLoader struct {
	api            upstream.API
	branches       BranchService
	maxConcurrency int
	logger         *zap.Logger
}

func newDraftLoader(api upstream.API, branches BranchService, maxConcurrency int, logger *zap.Logger) *draftLoader {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &draftLoader{api: api, branches: branches, maxConcurrency: maxConcurrency, logger: logger}
}

func (l *draftLoader) Load(ctx context.Context, scope workflow.Scope) (*loadResult, error) {
	result := &loadResult{Drafts: []upstream.SessionDraft{}}

	branches, err := l.branches.All(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		l.logger.Warn("加载分校列表失败", zap.Error(err))
	}
	result.Branches = branches

	var ids []int64
	if scope.All() {
		if err != nil {
			return result, nil
		}
		ids = make([]int64, 0, len(branches))
		for _, b := range branches {
			ids = append(ids, b.ID)
		}
	} else {
		ids = []int64{*scope.BranchID}
	}

	perBranch := make([][]upstream.SessionDraft, len(ids))
	failed := make([]bool, len(ids))

	var g errgroup.Group
	g.SetLimit(l.maxConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			drafts, err := l.api.ListDrafts(ctx, id)
			if err != nil {
				l.logger.Warn("加载分校草稿失败，已忽略",
					zap.Int64("branch_id", id),
					zap.Error(err),
				)
				failed[i] = true
				return nil
			}
			perBranch[i] = drafts
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, drafts := range perBranch {
		if failed[i] {
			result.Failed = append(result.Failed, ids[i])
			continue
		}
		result.Drafts = append(result.Drafts, drafts...)
	}
	return result, nil
}
