// internal/api/handlers.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/Corphon/NovelVerseMCP/internal/config"
	"github.com/Corphon/NovelVerseMCP/internal/llm"
	"github.com/Corphon/NovelVerseMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// Handler 处理API请求
type Handler struct {
	ContextService  *services.ContextService  // 故事上下文服务
	AdapterService  *services.AdapterService  // 章节改编管线
	LLMService      *services.LLMService      // LLM服务
	ProgressService *services.ProgressService // 进度跟踪服务
	LockService     *services.LockService     // 故事锁服务
	Response        *ResponseHelper           // 响应助手
}

// NewHandler 创建API处理器
func NewHandler(
	contextService *services.ContextService,
	adapterService *services.AdapterService,
	llmService *services.LLMService,
	progressService *services.ProgressService,
	lockService *services.LockService,
) *Handler {
	return &Handler{
		ContextService:  contextService,
		AdapterService:  adapterService,
		LLMService:      llmService,
		ProgressService: progressService,
		LockService:     lockService,
		Response:        NewResponseHelper(),
	}
}

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// CreateStoryRequest 创建故事的请求结构
type CreateStoryRequest struct {
	Name string `json:"name"` // 故事名，服务端会整理成合法目录名
}

// UpdateSettingsRequest 更新LLM设置的请求结构
type UpdateSettingsRequest struct {
	Provider     string `json:"provider"`      // groq 或 google
	APIKey       string `json:"api_key"`       // 提供商API密钥
	DefaultModel string `json:"default_model"` // 默认模型，可为空
}

// ------------------------------------------------

// ListStories 列出所有故事
func (h *Handler) ListStories(c *gin.Context) {
	stories, err := h.ContextService.ListStories()
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"stories": stories})
}

// CreateStory 创建一个新故事
func (h *Handler) CreateStory(c *gin.Context) {
	var req CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式无效", err.Error())
		return
	}

	name, err := h.ContextService.CreateStory(req.Name)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	h.Response.Created(c, gin.H{"name": name})
}

// GetStoryContext 返回故事的完整上下文
func (h *Handler) GetStoryContext(c *gin.Context) {
	name := c.Param("name")
	if !h.ContextService.StoryExists(name) {
		h.Response.NotFound(c, "故事")
		return
	}

	ctx, err := h.ContextService.LoadContext(name)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	h.Response.Success(c, ctx)
}

// GetStoryTranscript 返回故事的完整印地语文稿
func (h *Handler) GetStoryTranscript(c *gin.Context) {
	name := c.Param("name")
	if !h.ContextService.StoryExists(name) {
		h.Response.NotFound(c, "故事")
		return
	}

	transcript, err := h.ContextService.LoadTranscript(name)
	if err != nil {
		h.Response.FromAppError(c, err)
		return
	}

	h.Response.Success(c, gin.H{
		"name":       name,
		"transcript": transcript,
	})
}

// GetSettings 返回当前LLM设置（密钥只返回是否已配置）
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		h.Response.InternalError(c, "配置系统未初始化")
		return
	}

	hasKey := cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] != ""
	defaultModel := ""
	if cfg.LLMConfig != nil {
		defaultModel = cfg.LLMConfig["default_model"]
	}

	h.Response.Success(c, gin.H{
		"provider":         cfg.LLMProvider,
		"default_model":    defaultModel,
		"api_key_set":      hasKey,
		"ready":            h.LLMService.IsReady(),
		"ready_state":      h.LLMService.GetReadyState(),
		"providers":        llm.ListProviders(),
		"supported_models": llm.GetSupportedModelsForProvider(cfg.LLMProvider),
	})
}

// UpdateSettings 更新LLM提供商配置并热切换服务
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式无效", err.Error())
		return
	}

	req.Provider = strings.TrimSpace(req.Provider)
	req.APIKey = strings.TrimSpace(req.APIKey)
	if req.Provider == "" || req.APIKey == "" {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, "provider和api_key不能为空")
		return
	}

	llmConfig := map[string]string{
		"api_key":       req.APIKey,
		"default_model": req.DefaultModel,
	}

	if err := h.LLMService.UpdateProvider(req.Provider, llmConfig); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, "LLM提供商配置失败", err.Error())
		return
	}

	if err := config.UpdateLLMConfig(req.Provider, llmConfig); err != nil {
		h.Response.InternalError(c, "保存配置失败", err.Error())
		return
	}

	h.Response.Success(c, gin.H{
		"provider":    req.Provider,
		"ready":       h.LLMService.IsReady(),
		"ready_state": h.LLMService.GetReadyState(),
	})
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	status := "ok"
	if !h.LLMService.IsReady() {
		status = "degraded"
	}

	h.Response.Success(c, gin.H{
		"status":      status,
		"llm_ready":   h.LLMService.IsReady(),
		"ready_state": h.LLMService.GetReadyState(),
		"provider":    h.LLMService.GetProviderName(),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}
