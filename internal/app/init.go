// internal/app/init.go
package app

import (
	"fmt"

	"github.com/Corphon/NovelVerseMCP/internal/config"
	"github.com/Corphon/NovelVerseMCP/internal/di"
	"github.com/Corphon/NovelVerseMCP/internal/services"
	"github.com/Corphon/NovelVerseMCP/internal/storage"
	"github.com/Corphon/NovelVerseMCP/internal/utils"

	// 注册LLM提供商
	_ "github.com/Corphon/NovelVerseMCP/internal/llm/providers/google"
	_ "github.com/Corphon/NovelVerseMCP/internal/llm/providers/groq"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
//
// 顺序固定：存储 → LLM → 进度/锁 → 上下文 → 改编管线。
func InitServices() error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	container := di.GetContainer()
	logger := utils.GetLogger()

	// 1. 文件存储
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}
	container.Register("storage", fileStorage)

	// 2. LLM服务：密钥缺失时降级为待配置状态，不阻止启动
	llmService, err := services.NewLLMService()
	if err != nil {
		logger.Warn("LLM服务初始化失败，使用后备服务", map[string]interface{}{"error": err.Error()})
		llmService = services.NewEmptyLLMService()
	}
	container.Register("llm", llmService)

	if !llmService.IsReady() {
		logger.Warn("LLM服务未就绪", map[string]interface{}{"state": llmService.GetReadyState()})
	}

	// 3. 进度与锁
	container.Register("progress", services.NewProgressService())
	container.Register("lock", services.NewLockService())

	// 4. 故事上下文
	contextService := services.NewContextService(fileStorage)
	container.Register("context", contextService)

	// 5. 改编管线
	adapterService := services.NewAdapterService(llmService, services.NewMappingService(), contextService)
	container.Register("adapter", adapterService)

	logger.Info("所有服务初始化完成", map[string]interface{}{
		"services": len(container.GetNames()),
		"provider": llmService.GetProviderName(),
	})

	return nil
}
