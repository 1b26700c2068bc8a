package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trainhub/console/config"
	"trainhub/console/internal/repository"
	"trainhub/console/internal/upstream"
	"trainhub/console/pkg/jwt"
	"trainhub/console/pkg/redis"
)

// ── Redis 能力接口 ──
// 由 *redis.Client 实现；Redis 不可用时对应字段为 nil，各服务按降级路径处理

// SessionCache 登录态缓存
type SessionCache interface {
	GetSession(ctx context.Context, token string, out interface{}) (bool, error)
	CacheSession(ctx context.Context, token string, user interface{}, ttl time.Duration) error
}

// BranchCache 分校列表缓存
type BranchCache interface {
	GetBranches(ctx context.Context, out interface{}) (bool, error)
	CacheBranches(ctx context.Context, branches interface{}, ttl time.Duration) error
}

// FormStore 草稿表单存储
type FormStore interface {
	GetForms(ctx context.Context, operatorID int64) (map[int64][]byte, error)
	GetForm(ctx context.Context, operatorID, draftID int64) ([]byte, bool, error)
	SaveForm(ctx context.Context, operatorID, draftID int64, raw []byte, ttl time.Duration) error
	DeleteForm(ctx context.Context, operatorID, draftID int64) error
}

// ActionGuard 单条草稿的处理中锁
type ActionGuard interface {
	AcquireActionLock(ctx context.Context, draftID int64, owner string, ttl time.Duration) error
	ReleaseActionLock(ctx context.Context, draftID int64, owner string) error
}

// Stores Redis 支撑的各项能力
type Stores struct {
	Sessions SessionCache
	Branches BranchCache
	Forms    FormStore
	Guard    ActionGuard
}

// NewStores 由 Redis 客户端构造；rdb 为 nil 时返回全空（降级模式）
func NewStores(rdb *redis.Client) Stores {
	if rdb == nil {
		return Stores{}
	}
	return Stores{
		Sessions: rdb,
		Branches: rdb,
		Forms:    rdb,
		Guard:    rdb,
	}
}

// Service 所有 Service 的聚合入口
type Service struct {
	Session   SessionService
	Branch    BranchService
	Draft     DraftService
	Export    ExportService
	ActionLog ActionLogService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	api upstream.API,
	repo *repository.Repository,
	stores Stores,
	inspector *jwt.Inspector,
	logger *zap.Logger,
) *Service {
	actionLog := NewActionLogService(repo, logger)
	branch := NewBranchService(&cfg.Draft, api, stores.Branches, logger)
	loader := newDraftLoader(api, branch, cfg.Upstream.MaxConcurrency, logger)

	return &Service{
		Session:   NewSessionService(&cfg.Auth, api, stores.Sessions, inspector, logger),
		Branch:    branch,
		Draft:     NewDraftService(&cfg.Draft, api, loader, stores, actionLog, logger),
		Export:    NewExportService(&cfg.Draft, loader, logger),
		ActionLog: actionLog,
	}
}

// ── 请求上下文 ──

type requestIDKey struct{}

// WithRequestID 将请求 ID 写入 context，操作日志据此关联
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom 读取 WithRequestID 写入的请求 ID
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
