// internal/services/llm_service_test.go
package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Corphon/NovelVerseMCP/internal/llm"
)

func TestGenerateNotReady(t *testing.T) {
	svc := NewEmptyLLMService()

	if svc.IsReady() {
		t.Error("空服务不应就绪")
	}

	_, err := svc.Generate(context.Background(), "hello")
	if !errors.Is(err, ErrLLMNotReady) {
		t.Errorf("期望ErrLLMNotReady，得到 %v", err)
	}
}

func TestGenerateUsesCache(t *testing.T) {
	calls := 0
	provider := &fakeProvider{handler: func(prompt string) (string, error) {
		calls++
		return "generated text", nil
	}}

	svc := NewLLMServiceWithProvider(provider)

	for i := 0; i < 3; i++ {
		text, err := svc.Generate(context.Background(), "same prompt")
		if err != nil {
			t.Fatalf("生成失败: %v", err)
		}
		if text != "generated text" {
			t.Errorf("输出不符: %s", text)
		}
	}

	if calls != 1 {
		t.Errorf("相同提示词应命中缓存，期望1次调用，得到 %d", calls)
	}

	if _, err := svc.Generate(context.Background(), "different prompt"); err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	if calls != 2 {
		t.Errorf("不同提示词应触发新调用，得到 %d", calls)
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	provider := &fakeProvider{handler: func(prompt string) (string, error) {
		return "   \n  ", nil
	}}

	svc := NewLLMServiceWithProvider(provider)

	_, err := svc.Generate(context.Background(), "prompt")
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("空白输出应返回ErrEmptyResponse，得到 %v", err)
	}
}

func TestGenerateTransportErrorPassesThrough(t *testing.T) {
	provider := &fakeProvider{handler: func(prompt string) (string, error) {
		return "", llm.ErrTransport
	}}

	svc := NewLLMServiceWithProvider(provider)

	_, err := svc.Generate(context.Background(), "prompt")
	if !errors.Is(err, llm.ErrTransport) {
		t.Errorf("传输错误应原样上抛，得到 %v", err)
	}
}

func TestUpdateProviderUnknownName(t *testing.T) {
	svc := NewEmptyLLMService()

	err := svc.UpdateProvider("no-such-provider", map[string]string{"api_key": "k"})
	if !errors.Is(err, llm.ErrUnknownProvider) {
		t.Errorf("期望未知提供商错误，得到 %v", err)
	}
	if svc.IsReady() {
		t.Error("配置失败后服务不应就绪")
	}
}
