package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"trainhub/console/config"
)

// ErrMissingToken 上下文中没有操作员 Token
var ErrMissingToken = errors.New("缺少认证 Token")

// TokenSource 注入式的 Token 访问器
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc 函数适配器
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token 实现 TokenSource
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

type tokenKey struct{}

// WithToken 将操作员 Token 写入 context
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// ContextTokenSource 从 context 读取 WithToken 写入的 Token
var ContextTokenSource TokenSource = TokenSourceFunc(func(ctx context.Context) (string, error) {
	token, _ := ctx.Value(tokenKey{}).(string)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
})

// API 培训中心后端接口
type API interface {
	ListDrafts(ctx context.Context, branchID int64) ([]SessionDraft, error)
	CreateDraft(ctx context.Context, req *CreateDraftRequest) (*SessionDraft, error)
	UpdateDraft(ctx context.Context, id int64, req *UpdateDraftRequest) error
	ApproveDraft(ctx context.Context, id int64, req *ApproveDraftRequest) error
	RejectDraft(ctx context.Context, id int64, req *RejectDraftRequest) error
	ListBranches(ctx context.Context) ([]Branch, error)
	GetCurrentUser(ctx context.Context) (*CurrentUser, error)
}

// Client API 的 HTTP 实现
type Client struct {
	base   *BaseClient
	tokens TokenSource
	logger *zap.Logger
}

// NewClient 创建后端客户端
func NewClient(cfg *config.UpstreamConfig, httpClient HTTPDoer, tokens TokenSource, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = NewDefaultHTTPClient(cfg.Timeout)
	}
	return &Client{
		base:   NewBaseClient(cfg.BaseURL, httpClient),
		tokens: tokens,
		logger: logger,
	}
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", ErrMissingToken
	}
	return c.tokens.Token(ctx)
}

// authed 以操作员身份调用后端
func (c *Client) authed(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if err := c.base.DoJSON(ctx, method, path, token, body, out); err != nil {
		c.logger.Debug("上游请求失败",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// ListDrafts GET /drafts?branch_id={id}
func (c *Client) ListDrafts(ctx context.Context, branchID int64) ([]SessionDraft, error) {
	q := url.Values{}
	q.Set("branch_id", strconv.FormatInt(branchID, 10))

	var drafts []SessionDraft
	if err := c.authed(ctx, http.MethodGet, "/drafts?"+q.Encode(), nil, &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

// CreateDraft POST /drafts，分校端提交，不携带 Token
func (c *Client) CreateDraft(ctx context.Context, req *CreateDraftRequest) (*SessionDraft, error) {
	var draft SessionDraft
	if err := c.base.DoJSON(ctx, http.MethodPost, "/drafts", "", req, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// UpdateDraft PATCH /drafts/{id}
func (c *Client) UpdateDraft(ctx context.Context, id int64, req *UpdateDraftRequest) error {
	return c.authed(ctx, http.MethodPatch, fmt.Sprintf("/drafts/%d", id), req, nil)
}

// ApproveDraft POST /drafts/{id}/approve
func (c *Client) ApproveDraft(ctx context.Context, id int64, req *ApproveDraftRequest) error {
	return c.authed(ctx, http.MethodPost, fmt.Sprintf("/drafts/%d/approve", id), req, nil)
}

// RejectDraft POST /drafts/{id}/reject
func (c *Client) RejectDraft(ctx context.Context, id int64, req *RejectDraftRequest) error {
	return c.authed(ctx, http.MethodPost, fmt.Sprintf("/drafts/%d/reject", id), req, nil)
}

// ListBranches GET /branches
func (c *Client) ListBranches(ctx context.Context) ([]Branch, error) {
	var branches []Branch
	if err := c.authed(ctx, http.MethodGet, "/branches", nil, &branches); err != nil {
		return nil, err
	}
	return branches, nil
}

// GetCurrentUser GET /auth/me
func (c *Client) GetCurrentUser(ctx context.Context) (*CurrentUser, error) {
	var user CurrentUser
	if err := c.authed(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
