package jwt

import (
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"trainhub/console/config"
)

func signToken(t *testing.T, claims jwtv5.RegisteredClaims) string {
	t.Helper()
	token, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte("backend-secret-not-known-here"))
	if err != nil {
		t.Fatalf("签发测试 Token 失败: %v", err)
	}
	return token
}

func TestInspect_ValidToken(t *testing.T) {
	insp := NewInspector(&config.AuthConfig{InspectJWT: true})
	exp := time.Now().Add(10 * time.Minute)
	token := signToken(t, jwtv5.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwtv5.NewNumericDate(exp),
	})

	claims, err := insp.Inspect(token)
	if err != nil {
		t.Fatalf("Inspect 失败: %v", err)
	}
	if claims == nil || claims.Subject != "42" {
		t.Fatalf("期望 Subject=42，实际=%+v", claims)
	}
	if claims.ExpiresAt.Unix() != exp.Unix() {
		t.Errorf("期望 ExpiresAt=%v，实际=%v", exp, claims.ExpiresAt)
	}
}

func TestInspect_ExpiredToken(t *testing.T) {
	insp := NewInspector(&config.AuthConfig{InspectJWT: true})
	token := signToken(t, jwtv5.RegisteredClaims{
		ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(-time.Minute)),
	})

	if _, err := insp.Inspect(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}

func TestInspect_OpaqueToken(t *testing.T) {
	insp := NewInspector(&config.AuthConfig{InspectJWT: true})
	claims, err := insp.Inspect("opaque-session-token")
	if err != nil || claims != nil {
		t.Errorf("不透明 Token 应放行，实际 claims=%v err=%v", claims, err)
	}
}

func TestInspect_Disabled(t *testing.T) {
	insp := NewInspector(&config.AuthConfig{InspectJWT: false})
	token := signToken(t, jwtv5.RegisteredClaims{
		ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	if _, err := insp.Inspect(token); err != nil {
		t.Errorf("关闭预检时不应报错，实际: %v", err)
	}
	if _, err := insp.Inspect(""); !errors.Is(err, ErrTokenEmpty) {
		t.Errorf("空 Token 应返回 ErrTokenEmpty，实际: %v", err)
	}
}

func TestClaims_TTL(t *testing.T) {
	now := time.Now()
	c := &Claims{ExpiresAt: now.Add(30 * time.Second)}
	if got := c.TTL(now, time.Minute); got != 30*time.Second {
		t.Errorf("期望 30s，实际 %v", got)
	}
	if got := (&Claims{}).TTL(now, time.Minute); got != time.Minute {
		t.Errorf("无过期时间应返回 fallback，实际 %v", got)
	}
	var nilClaims *Claims
	if got := nilClaims.TTL(now, time.Minute); got != time.Minute {
		t.Errorf("nil Claims 应返回 fallback，实际 %v", got)
	}
}
