package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine. limiter may be nil to disable throttling;
// metrics may be nil to skip /metrics.
func NewRouter(logger *slog.Logger, h *Handler, limiter *RateLimiter, metrics http.Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger.With("component", "http")))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics))
	}

	apiV1 := engine.Group("/api/v1")
	{
		apiV1.GET("/pools", h.HandleListPools)
		apiV1.GET("/pools/:id", h.HandleGetPool)
		apiV1.GET("/pools/:id/odds", limited(limiter, ByClientIP, h.HandleOdds)...)
		apiV1.GET("/packs", h.HandleListPacks)

		apiV1.POST("/accounts", h.HandleOpenAccount)
		apiV1.GET("/accounts/:id", h.HandleGetAccount)
		apiV1.DELETE("/accounts/:id", h.HandleCloseAccount)
		apiV1.GET("/accounts/:id/topup", h.HandleTopUp)
		apiV1.POST("/accounts/:id/exchange", h.HandleExchange)

		apiV1.POST("/accounts/:id/pulls", limited(limiter, ByAccount, h.HandlePull)...)
	}
	return engine
}

func limited(limiter *RateLimiter, key KeyFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if limiter == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{limiter.Middleware(key), h}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
