package redis

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"trainhub/console/config"
)

// ErrLockHeld 同一草稿已有操作在处理中
var ErrLockHeld = errors.New("操作正在处理中")

// Client Redis 客户端封装
// 用于登录态缓存、分校缓存、草稿表单、操作锁与限流
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}

// TokenKey Token 不落明文，取 blake2b-256 摘要作为键
func TokenKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (c *Client) getJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// 脏数据直接丢弃
		c.logger.Warn("Redis 缓存解析失败，已删除", zap.String("key", key), zap.Error(err))
		_ = c.rdb.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *Client) setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// ── 登录态缓存 ──

const sessionPrefix = "session:"

// GetSession 读取缓存的当前用户，未命中返回 false
func (c *Client) GetSession(ctx context.Context, token string, out interface{}) (bool, error) {
	return c.getJSON(ctx, sessionPrefix+TokenKey(token), out)
}

// CacheSession 缓存当前用户，TTL 不应超过 Token 剩余有效期
func (c *Client) CacheSession(ctx context.Context, token string, user interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.setJSON(ctx, sessionPrefix+TokenKey(token), user, ttl)
}

// ── 分校缓存 ──

const branchesKey = "branches:all"

// GetBranches 读取缓存的分校列表
func (c *Client) GetBranches(ctx context.Context, out interface{}) (bool, error) {
	return c.getJSON(ctx, branchesKey, out)
}

// CacheBranches 缓存分校列表
func (c *Client) CacheBranches(ctx context.Context, branches interface{}, ttl time.Duration) error {
	return c.setJSON(ctx, branchesKey, branches, ttl)
}

// ── 草稿表单 ──
// 每个操作员一个 Hash，field 为草稿 ID

func formKey(operatorID int64) string {
	return "draft:form:" + strconv.FormatInt(operatorID, 10)
}

// GetForms 批量读取草稿表单，返回 草稿ID -> JSON
func (c *Client) GetForms(ctx context.Context, operatorID int64) (map[int64][]byte, error) {
	all, err := c.rdb.HGetAll(ctx, formKey(operatorID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]byte, len(all))
	for field, raw := range all {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		out[id] = []byte(raw)
	}
	return out, nil
}

// GetForm 读取单条草稿表单
func (c *Client) GetForm(ctx context.Context, operatorID, draftID int64) ([]byte, bool, error) {
	raw, err := c.rdb.HGet(ctx, formKey(operatorID), strconv.FormatInt(draftID, 10)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// SaveForm 保存草稿表单并刷新整个 Hash 的 TTL
func (c *Client) SaveForm(ctx context.Context, operatorID, draftID int64, raw []byte, ttl time.Duration) error {
	key := formKey(operatorID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, strconv.FormatInt(draftID, 10), raw)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// DeleteForm 删除草稿表单
func (c *Client) DeleteForm(ctx context.Context, operatorID, draftID int64) error {
	return c.rdb.HDel(ctx, formKey(operatorID), strconv.FormatInt(draftID, 10)).Err()
}

// ── 操作锁 ──

const lockPrefix = "draft:lock:"

// AcquireActionLock 对单条草稿加处理中锁（SET NX），已被持有时返回 ErrLockHeld
func (c *Client) AcquireActionLock(ctx context.Context, draftID int64, owner string, ttl time.Duration) error {
	ok, err := c.rdb.SetNX(ctx, lockPrefix+strconv.FormatInt(draftID, 10), owner, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReleaseActionLock 仅释放自己持有的锁
func (c *Client) ReleaseActionLock(ctx context.Context, draftID int64, owner string) error {
	return releaseScript.Run(ctx, c.rdb, []string{lockPrefix + strconv.FormatInt(draftID, 10)}, owner).Err()
}

// ── 限流 ──

const rateLimitPrefix = "ratelimit:"

// CheckRateLimit 固定窗口计数，返回是否放行
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := rateLimitPrefix + key
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}
