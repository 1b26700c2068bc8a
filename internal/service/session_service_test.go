package service

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"trainhub/console/config"
	"trainhub/console/internal/upstream"
	"trainhub/console/internal/workflow"
	"trainhub/console/pkg/jwt"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwtv5.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("签发测试 Token 失败: %v", err)
	}
	return s
}

func setupTestSessionService(api *mockAPI, cache SessionCache) SessionService {
	cfg := &config.AuthConfig{InspectJWT: true, SessionCacheTTL: time.Minute}
	return NewSessionService(cfg, api, cache, jwt.NewInspector(cfg), zap.NewNop())
}

func TestSessionService_ResolveAndCache(t *testing.T) {
	api := newMockAPI()
	branch := int64(4)
	api.user = &upstream.CurrentUser{ID: 7, Name: "运营", IsOperationManager: true, BranchID: &branch}
	cache := newMockCache()
	svc := setupTestSessionService(api, cache)

	token := signedToken(t, time.Now().Add(30*time.Second))
	for i := 0; i < 2; i++ {
		sess, err := svc.Resolve(context.Background(), token)
		if err != nil {
			t.Fatalf("Resolve 失败: %v", err)
		}
		if sess.Principal.Role != workflow.RoleOperationManager || *sess.Principal.BranchID != 4 {
			t.Errorf("身份不符: %+v", sess.Principal)
		}
	}
	if api.userCalls != 1 {
		t.Errorf("第二次应命中缓存，实际请求 %d 次", api.userCalls)
	}
	if ttl := cache.ttls[token]; ttl <= 0 || ttl > 30*time.Second {
		t.Errorf("缓存 TTL 不应超过 Token 剩余有效期，实际 %v", ttl)
	}
}

func TestSessionService_ExpiredTokenNoUpstream(t *testing.T) {
	api := newMockAPI()
	svc := setupTestSessionService(api, nil)

	_, err := svc.Resolve(context.Background(), signedToken(t, time.Now().Add(-time.Minute)))
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("期望 ErrSessionExpired，实际: %v", err)
	}
	if api.userCalls != 0 {
		t.Error("过期 Token 不应请求后端")
	}
}

func TestSessionService_OpaqueTokenAndBackend401(t *testing.T) {
	api := newMockAPI()
	api.userErr = &upstream.APIError{StatusCode: 401, Message: "invalid token"}
	svc := setupTestSessionService(api, nil)

	_, err := svc.Resolve(context.Background(), "opaque-token")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("期望 ErrUnauthenticated，实际: %v", err)
	}
	if api.userCalls != 1 {
		t.Error("不透明 Token 应交由后端判定")
	}

	if _, err := svc.Resolve(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("空 Token 期望 ErrUnauthenticated，实际: %v", err)
	}
}
