package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"trainhub/console/config"
	"trainhub/console/internal/dto"
	"trainhub/console/internal/upstream"
	"trainhub/console/internal/workflow"
	"trainhub/console/pkg/jwt"
)

var (
	ErrUnauthenticated = errors.New("未登录或登录已失效")
	ErrSessionExpired  = errors.New("登录已过期，请重新登录")
)

// Session 一次请求解析出的操作员身份
type Session struct {
	Token     string
	User      upstream.CurrentUser
	Principal workflow.Principal
}

// SessionService 登录态解析接口
type SessionService interface {
	// Resolve 由 Bearer Token 解析当前用户，不签发也不保存任何凭证
	Resolve(ctx context.Context, token string) (*Session, error)
}

type sessionService struct {
	cfg       *config.AuthConfig
	api       upstream.API
	cache     SessionCache
	inspector *jwt.Inspector
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService 创建 SessionService 实例
func NewSessionService(
	cfg *config.AuthConfig,
	api upstream.API,
	cache SessionCache,
	inspector *jwt.Inspector,
	logger *zap.Logger,
) SessionService {
	return &sessionService{
		cfg:       cfg,
		api:       api,
		cache:     cache,
		inspector: inspector,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *sessionService) Resolve(ctx context.Context, token string) (*Session, error) {
	// 1. 预检：过期的 JWT 不再发往后端
	claims, err := s.inspector.Inspect(token)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrSessionExpired
	case err != nil:
		return nil, ErrUnauthenticated
	}

	// 2. 缓存
	if s.cache != nil {
		var user upstream.CurrentUser
		hit, err := s.cache.GetSession(ctx, token, &user)
		if err != nil {
			s.logger.Warn("读取登录态缓存失败", zap.Error(err))
		} else if hit {
			return newSession(token, user), nil
		}
	}

	// 3. 后端 /auth/me
	user, err := s.api.GetCurrentUser(upstream.WithToken(ctx, token))
	if err != nil {
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, ErrUnauthenticated
		}
		s.logger.Error("获取当前用户失败", zap.Error(err))
		return nil, err
	}

	if s.cache != nil {
		ttl := claims.TTL(s.now(), s.cfg.SessionCacheTTL)
		if err := s.cache.CacheSession(ctx, token, user, ttl); err != nil {
			s.logger.Warn("写入登录态缓存失败", zap.Error(err))
		}
	}

	return newSession(token, *user), nil
}

func newSession(token string, user upstream.CurrentUser) *Session {
	return &Session{
		Token:     token,
		User:      user,
		Principal: workflow.PrincipalFromUser(&user),
	}
}

// NewMeResponse 当前操作员及其草稿审批权限
func NewMeResponse(sess *Session) *dto.MeResponse {
	p := sess.Principal
	return &dto.MeResponse{
		ID:                sess.User.ID,
		Name:              sess.User.Name,
		Email:             sess.User.Email,
		Role:              p.Role.String(),
		Backdoor:          p.Backdoor,
		BranchID:          p.BranchID,
		DraftApproval:     toAccessResponse(workflow.DraftApprovalAccess(p)),
		CanViewActionLogs: workflow.ActionLogAccess(p),
	}
}
