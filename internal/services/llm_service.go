// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/NovelVerseMCP/internal/config"
	"github.com/Corphon/NovelVerseMCP/internal/llm"
	"github.com/Corphon/NovelVerseMCP/internal/utils"
)

var ErrLLMNotReady = errors.New("llm service not ready")

// LLMService 提供统一的大语言模型调用接口
type LLMService struct {
	providerMutex sync.RWMutex
	provider      llm.Provider
	providerName  string
	cache         *llmCache
	isReady       bool
	readyState    string
	defaultModel  string

	// 生成参数，来自原始工作流：低温度保证JSON输出稳定
	temperature float32
	maxTokens   int
}

type llmCache struct {
	cache      map[string]*cacheEntry
	mutex      sync.RWMutex
	expiration time.Duration
}

type cacheEntry struct {
	Text      string
	CreatedAt time.Time
}

// NewLLMService 创建一个新的LLM服务
func NewLLMService() (*LLMService, error) {
	service := createBaseLLMService()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service, nil
	}

	if cfg.LLMProvider == "" || (cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] == "") {
		service.readyState = "API key not configured"
		return service, nil
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service, nil // 返回未就绪服务而不是错误
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.defaultModel = cfg.LLMConfig["default_model"]
	service.isReady = true
	service.readyState = "Ready"

	return service, nil
}

// NewLLMServiceWithProvider 使用指定Provider创建服务，测试用
func NewLLMServiceWithProvider(provider llm.Provider) *LLMService {
	service := createBaseLLMService()
	if provider != nil {
		service.provider = provider
		service.providerName = provider.GetName()
		service.isReady = true
		service.readyState = "Ready"
	}
	return service
}

// NewEmptyLLMService 创建一个空的LLM服务实例作为后备方案
func NewEmptyLLMService() *LLMService {
	service := createBaseLLMService()
	service.providerName = "empty"
	service.readyState = "Standby Service Mode – Please configure the API key in settings"
	return service
}

func createBaseLLMService() *LLMService {
	return &LLMService{
		readyState:  "Uninitialized",
		temperature: 0.2,
		maxTokens:   8192,
		cache: &llmCache{
			cache:      make(map[string]*cacheEntry),
			expiration: 30 * time.Minute,
		},
	}
}

// IsReady 返回服务是否已就绪
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

// GetReadyState 返回服务就绪状态描述
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// GetProviderName 返回当前提供商名称
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// UpdateProvider 更新LLM服务的提供商
func (s *LLMService) UpdateProvider(providerName string, providerConfig map[string]string) error {
	provider, err := llm.GetProvider(providerName, providerConfig)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.defaultModel = providerConfig["default_model"]
	s.isReady = true
	s.readyState = "Ready"

	// 换提供商后旧缓存作废
	s.cache = &llmCache{
		cache:      make(map[string]*cacheEntry),
		expiration: 30 * time.Minute,
	}

	return nil
}

// Generate 发送提示词并返回生成文本
//
// 管线把传输失败与空响应同样当作"没有可用输出"处理，
// 这里统一返回错误，由调用方决定重试。
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return "", fmt.Errorf("%w: %s", ErrLLMNotReady, state)
	}
	provider := s.provider
	model := s.defaultModel
	temperature := s.temperature
	maxTokens := s.maxTokens
	s.providerMutex.RUnlock()

	cacheKey := s.generateCacheKey(prompt, model)
	if text, ok := s.cache.get(cacheKey); ok {
		utils.GetLogger().Debug("LLM缓存命中", map[string]interface{}{"cache_key_prefix": cacheKey[:8]})
		return text, nil
	}

	resp, err := provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Model:       model,
	})
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(resp.Text) == "" {
		return "", llm.ErrEmptyResponse
	}

	s.cache.put(cacheKey, resp.Text)

	utils.GetLogger().Info("LLM调用完成", map[string]interface{}{
		"provider":    resp.ProviderName,
		"model":       resp.ModelName,
		"tokens_used": resp.TokensUsed,
	})

	return resp.Text, nil
}

func (s *LLMService) generateCacheKey(prompt, model string) string {
	s.providerMutex.RLock()
	providerName := s.providerName
	s.providerMutex.RUnlock()

	h := md5.New()
	fmt.Fprintf(h, "%s:::%s:::%s", prompt, model, providerName)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (c *llmCache) get(key string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[key]
	if !exists {
		return "", false
	}

	if time.Since(entry.CreatedAt) > c.expiration {
		return "", false
	}

	return entry.Text, true
}

func (c *llmCache) put(key, text string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[key] = &cacheEntry{
		Text:      text,
		CreatedAt: time.Now(),
	}
}
