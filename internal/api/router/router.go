package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trainhub/console/config"
	"trainhub/console/internal/api/handler"
	"trainhub/console/internal/api/middleware"
	"trainhub/console/internal/service"
	"trainhub/console/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时限流降级放行
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	sessions service.SessionService,
	rdb *redis.Client,
	db *gorm.DB,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", healthCheck(rdb, db))

	var limiter middleware.RateLimiter
	if rdb != nil {
		limiter = rdb
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 分校端提交（无需认证，按 IP 限流）
		public := v1.Group("/public")
		public.Use(middleware.RateLimit(limiter, cfg.Draft.PublicRateLimit, cfg.Draft.PublicRateWindow, logger))
		{
			public.POST("/drafts", h.PublicDraft.CreateDraft)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.SessionAuth(sessions))
		{
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.GET("/branches", h.Branch.ListBranches)

			// 草稿审批（角色判定在 Service 层完成）
			drafts := authorized.Group("/drafts")
			{
				drafts.GET("", h.Draft.ListDrafts)
				drafts.GET("/export", h.Export.ExportMonth)
				drafts.GET("/calendar.ics", h.Export.ExportCalendar)
				drafts.PUT("/:id/form", h.Draft.SaveForm)
				drafts.POST("/:id/approve", h.Draft.ApproveDraft)
				drafts.POST("/:id/reject", h.Draft.RejectDraft)
				drafts.PATCH("/:id", h.Draft.UpdateDraft)
			}

			// 操作日志（仅超级管理员）
			authorized.GET("/action-logs", h.ActionLog.ListActionLogs)
		}
	}

	return r
}

// healthCheck 检查数据库与 Redis 连通性
// Redis 未启用时不计入
func healthCheck(rdb *redis.Client, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}
		code := http.StatusOK

		if db != nil {
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
				status["database"] = "down"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx); err != nil {
				status["redis"] = "down"
				status["status"] = "degraded"
			}
		}

		c.JSON(code, status)
	}
}
