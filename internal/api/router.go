// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/Corphon/NovelVerseMCP/internal/config"
	"github.com/Corphon/NovelVerseMCP/internal/di"
	"github.com/Corphon/NovelVerseMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// 只从容器获取服务，不再创建新实例
	contextService, ok := container.Get("context").(*services.ContextService)
	if !ok {
		return nil, fmt.Errorf("上下文服务未正确初始化")
	}

	adapterService, ok := container.Get("adapter").(*services.AdapterService)
	if !ok {
		return nil, fmt.Errorf("改编服务未正确初始化")
	}

	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("LLM服务未正确初始化")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}

	lockService, ok := container.Get("lock").(*services.LockService)
	if !ok {
		return nil, fmt.Errorf("锁服务未正确初始化")
	}

	handler := NewHandler(contextService, adapterService, llmService, progressService, lockService)

	if cfg != nil && !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// WebSocket 支持：用户在改编过程中的命名与主城选择
	r.GET("/ws/stories/:name/adapt", handler.AdaptChapterWebSocket)

	// ===============================
	// API路由
	// ===============================
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", handler.HealthCheck)

		apiGroup.GET("/stories", handler.ListStories)
		apiGroup.POST("/stories", handler.CreateStory)
		apiGroup.GET("/stories/:name/context", handler.GetStoryContext)
		apiGroup.GET("/stories/:name/transcript", handler.GetStoryTranscript)

		apiGroup.GET("/settings", handler.GetSettings)
		apiGroup.PUT("/settings", handler.UpdateSettings)
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
