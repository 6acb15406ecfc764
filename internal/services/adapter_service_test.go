// internal/services/adapter_service_test.go
package services

import (
	"context"
	"strings"
	"testing"

	apperrors "github.com/Corphon/NovelVerseMCP/internal/errors"
	"github.com/Corphon/NovelVerseMCP/internal/llm"
	"github.com/Corphon/NovelVerseMCP/internal/models"
	"github.com/Corphon/NovelVerseMCP/internal/storage"
)

// fakeProvider 按提示词内容分发脚本化响应
type fakeProvider struct {
	handler func(prompt string) (string, error)
	prompts []string
}

func (p *fakeProvider) Initialize(config map[string]string) error { return nil }
func (p *fakeProvider) GetName() string                           { return "fake" }
func (p *fakeProvider) GetSupportedModels() []string              { return []string{"fake-model"} }

func (p *fakeProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.prompts = append(p.prompts, req.Prompt)
	text, err := p.handler(req.Prompt)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Text: text, ProviderName: "fake"}, nil
}

// workerKind 根据提示词识别是哪个工人在被调用
func workerKind(prompt string) string {
	switch {
	case strings.Contains(prompt, "invalid and could not be parsed"):
		return "fixer"
	case strings.Contains(prompt, "naming expert"):
		return "naming"
	case strings.Contains(prompt, "master Hindi novelist"):
		return "adaptation"
	case strings.Contains(prompt, "story archivist"):
		return "summary"
	case strings.Contains(prompt, "expert analyst"):
		return "analysis"
	default:
		return "unknown"
	}
}

// fakeInteractor 脚本化的用户选择
type fakeInteractor struct {
	nameChoices map[string]string
	city        string
	nameCalls   int
	cityCalls   int
}

func (f *fakeInteractor) ChooseName(s models.NameSuggestion) (string, error) {
	f.nameCalls++
	if chosen, ok := f.nameChoices[s.OriginalName]; ok {
		return chosen, nil
	}
	return s.IndianNames[0], nil
}

func (f *fakeInteractor) ChooseCity(cities []string) (string, error) {
	f.cityCalls++
	return f.city, nil
}

const validAnalysisJSON = `{
    "characters": [
        {"name": "Kenji", "role": "protagonist", "personality": "brave", "gender": "male", "species": "human", "relationship_to_protagonist": "himself"},
        {"name": "Shiro", "role": "companion", "personality": "loyal", "gender": "male", "species": "animal", "relationship_to_protagonist": "pet dog"}
    ],
    "key_events": ["Kenji leaves home."],
    "emotional_tone": {"dominant_emotion": "hope"},
    "cultural_elements": ["ramen stand"],
    "world_elements": ["quiet village"],
    "style_notes": {"pov": "Kenji"},
    "chapter_summary": "Kenji departs his village with his dog Shiro.",
    "locations": ["Tokyo", "Kyoto"]
}`

const validNamingJSON = `{
    "name_suggestions": [
        {"original_name": "Kenji", "gender": "male", "role": "protagonist", "indian_names": ["अर्जुन शर्मा", "विक्रम राठौर", "रोहन मेहता"]}
    ]
}`

const hindiChapter = "अर्जुन शर्मा ने काशी की गलियों में कदम रखा। उसका कुत्ता उसके पीछे दौड़ रहा था।"

func newTestAdapter(t *testing.T, handler func(prompt string) (string, error)) (*AdapterService, *fakeProvider) {
	t.Helper()

	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	provider := &fakeProvider{handler: handler}
	svc := NewAdapterService(
		NewLLMServiceWithProvider(provider),
		NewMappingService(),
		NewContextService(fs),
	)
	return svc, provider
}

func TestProcessAndPersistFullPipeline(t *testing.T) {
	svc, provider := newTestAdapter(t, func(prompt string) (string, error) {
		switch workerKind(prompt) {
		case "analysis":
			return validAnalysisJSON, nil
		case "naming":
			return validNamingJSON, nil
		case "adaptation":
			return hindiChapter, nil
		case "summary":
			return "Kenji, now Arjun, departs Kashi with his dog.", nil
		}
		t.Fatalf("意外的工人调用: %s", prompt[:80])
		return "", nil
	})

	interactor := &fakeInteractor{
		nameChoices: map[string]string{"Kenji": "अर्जुन शर्मा"},
		city:        "काशी",
	}

	result, storyCtx, err := svc.ProcessAndPersist(context.Background(), "test_story", "賢治は東京を離れた。", interactor, nil)
	if err != nil {
		t.Fatalf("管线处理失败: %v", err)
	}

	if result.ChapterNumber != 1 {
		t.Errorf("期望章节号为1，得到 %d", result.ChapterNumber)
	}
	if result.HindiText != hindiChapter {
		t.Errorf("改编文本不符: %s", result.HindiText)
	}
	if !result.Appended {
		t.Error("章节应已追加到文稿")
	}

	if storyCtx.ChapterCount != 1 {
		t.Errorf("期望章节计数为1，得到 %d", storyCtx.ChapterCount)
	}
	if storyCtx.NameMapping["Kenji"] != "अर्जुन शर्मा" {
		t.Errorf("命名映射不符: %v", storyCtx.NameMapping)
	}
	if _, mapped := storyCtx.NameMapping["Shiro"]; mapped {
		t.Error("非人类角色不应进入命名映射")
	}
	if storyCtx.PrimaryIndianCity != "काशी" {
		t.Errorf("主城不符: %s", storyCtx.PrimaryIndianCity)
	}
	if storyCtx.CityMapping["Tokyo"] != "काशी" || storyCtx.CityMapping["Kyoto"] != "काशी" {
		t.Errorf("所有地点都应映射到主城: %v", storyCtx.CityMapping)
	}
	if len(storyCtx.AllCharacters) != 2 {
		t.Errorf("名册应包含两个角色（含动物），得到 %d", len(storyCtx.AllCharacters))
	}
	if storyCtx.CumulativeSummary == models.DefaultSummary {
		t.Error("累积摘要应已更新")
	}

	// 持久态验证：重新加载应得到相同上下文
	reloaded, err := svc.ContextService.LoadContext("test_story")
	if err != nil {
		t.Fatalf("重新加载上下文失败: %v", err)
	}
	if reloaded.ChapterCount != 1 || reloaded.PrimaryIndianCity != "काशी" {
		t.Errorf("持久化的上下文不符: %+v", reloaded)
	}

	transcript, err := svc.ContextService.LoadTranscript("test_story")
	if err != nil {
		t.Fatalf("读取文稿失败: %v", err)
	}
	if !strings.Contains(transcript, "--- अध्याय 1 ---") {
		t.Errorf("文稿缺少章节分隔符: %s", transcript)
	}
	if !strings.Contains(transcript, hindiChapter) {
		t.Error("文稿缺少章节正文")
	}

	if interactor.nameCalls != 1 {
		t.Errorf("期望一次命名选择，得到 %d", interactor.nameCalls)
	}
	if interactor.cityCalls != 1 {
		t.Errorf("期望一次主城选择，得到 %d", interactor.cityCalls)
	}
	_ = provider
}

func TestProcessChapterAnalysisRetryWithFixer(t *testing.T) {
	broken := `{"characters": [{"name": "Kenji",}` // 故意截断
	analysisCalls := 0

	svc, provider := newTestAdapter(t, func(prompt string) (string, error) {
		switch workerKind(prompt) {
		case "analysis":
			analysisCalls++
			return broken, nil
		case "fixer":
			analysisCalls++
			return validAnalysisJSON, nil
		case "naming":
			return validNamingJSON, nil
		case "adaptation":
			return hindiChapter, nil
		case "summary":
			return "updated summary", nil
		}
		return "", nil
	})

	interactor := &fakeInteractor{city: "उज्जैन"}
	storyCtx := models.NewStoryContext()

	result, err := svc.ProcessChapter(context.Background(), "chapter text", storyCtx, interactor, nil)
	if err != nil {
		t.Fatalf("带修复重试的处理应成功: %v", err)
	}

	if analysisCalls != 2 {
		t.Errorf("期望两次分析调用，得到 %d", analysisCalls)
	}
	if result.ChapterNumber != 1 {
		t.Errorf("期望章节号为1，得到 %d", result.ChapterNumber)
	}

	// 修复提示必须嵌入上一次的坏输出
	var fixerPrompt string
	for _, p := range provider.prompts {
		if workerKind(p) == "fixer" {
			fixerPrompt = p
		}
	}
	if !strings.Contains(fixerPrompt, broken) {
		t.Error("修复提示应包含上一次的无效输出")
	}
}

func TestProcessChapterAnalysisFailureRollsBack(t *testing.T) {
	svc, _ := newTestAdapter(t, func(prompt string) (string, error) {
		return "I cannot produce JSON right now.", nil
	})

	storyCtx := models.NewStoryContext()
	storyCtx.ChapterCount = 3

	_, err := svc.ProcessChapter(context.Background(), "chapter text", storyCtx, &fakeInteractor{}, nil)
	if err == nil {
		t.Fatal("两次分析都失败时应返回错误")
	}
	if !apperrors.IsAnalysisFailedError(err) {
		t.Errorf("期望分析失败错误，得到 %v", err)
	}
	if storyCtx.ChapterCount != 3 {
		t.Errorf("章节计数应回滚到3，得到 %d", storyCtx.ChapterCount)
	}
}

func TestProcessAndPersistFailureLeavesNoTrace(t *testing.T) {
	svc, _ := newTestAdapter(t, func(prompt string) (string, error) {
		return "not json", nil
	})

	_, _, err := svc.ProcessAndPersist(context.Background(), "doomed_story", "text", &fakeInteractor{}, nil)
	if err == nil {
		t.Fatal("期望处理失败")
	}

	transcript, err := svc.ContextService.LoadTranscript("doomed_story")
	if err != nil {
		t.Fatalf("读取文稿失败: %v", err)
	}
	if transcript != "" {
		t.Errorf("失败的章节不应出现在文稿中: %s", transcript)
	}
}

func TestProcessChapterNonHumanSkipsNaming(t *testing.T) {
	animalOnly := `{
        "characters": [
            {"name": "Shiro", "role": "companion", "gender": "male", "species": "animal", "relationship_to_protagonist": "pet"}
        ],
        "chapter_summary": "The dog wanders alone.",
        "locations": []
    }`

	svc, provider := newTestAdapter(t, func(prompt string) (string, error) {
		switch workerKind(prompt) {
		case "analysis":
			return animalOnly, nil
		case "naming":
			t.Fatal("非人类角色不应触发命名工人")
		case "adaptation":
			return hindiChapter, nil
		case "summary":
			return "updated", nil
		}
		return "", nil
	})

	interactor := &fakeInteractor{city: "मथुरा"}
	storyCtx := models.NewStoryContext()

	if _, err := svc.ProcessChapter(context.Background(), "text", storyCtx, interactor, nil); err != nil {
		t.Fatalf("处理失败: %v", err)
	}

	if len(storyCtx.NameMapping) != 0 {
		t.Errorf("命名映射应为空: %v", storyCtx.NameMapping)
	}
	if interactor.nameCalls != 0 {
		t.Errorf("不应有命名选择，得到 %d 次", interactor.nameCalls)
	}
	// 本章没有地点，主城也不应被询问
	if interactor.cityCalls != 0 {
		t.Errorf("没有地点时不应询问主城，得到 %d 次", interactor.cityCalls)
	}
	if storyCtx.PrimaryIndianCity != "" {
		t.Errorf("主城应保持未选定: %s", storyCtx.PrimaryIndianCity)
	}
	_ = provider
}

func TestProcessChapterSummaryFailureIsSoft(t *testing.T) {
	svc, _ := newTestAdapter(t, func(prompt string) (string, error) {
		switch workerKind(prompt) {
		case "analysis":
			return validAnalysisJSON, nil
		case "naming":
			return validNamingJSON, nil
		case "adaptation":
			return hindiChapter, nil
		case "summary":
			return "", llm.ErrTransport
		}
		return "", nil
	})

	interactor := &fakeInteractor{city: "काशी"}
	storyCtx := models.NewStoryContext()

	result, err := svc.ProcessChapter(context.Background(), "text", storyCtx, interactor, nil)
	if err != nil {
		t.Fatalf("摘要失败不应使章节处理失败: %v", err)
	}
	if result.ChapterNumber != 1 {
		t.Errorf("期望章节号为1，得到 %d", result.ChapterNumber)
	}
	if storyCtx.CumulativeSummary != models.DefaultSummary {
		t.Errorf("摘要失败时累积摘要应保持不变: %s", storyCtx.CumulativeSummary)
	}
}

func TestProcessChapterSecondChapterReusesMappings(t *testing.T) {
	svc, _ := newTestAdapter(t, func(prompt string) (string, error) {
		switch workerKind(prompt) {
		case "analysis":
			return validAnalysisJSON, nil
		case "naming":
			t.Fatal("已有角色不应触发命名工人")
		case "adaptation":
			return hindiChapter, nil
		case "summary":
			return "merged", nil
		}
		return "", nil
	})

	storyCtx := models.NewStoryContext()
	storyCtx.ChapterCount = 1
	storyCtx.PrimaryIndianCity = "काशी"
	storyCtx.NameMapping["Kenji"] = "अर्जुन शर्मा"
	storyCtx.CityMapping["Tokyo"] = "काशी"
	storyCtx.AllCharacters = []models.Character{
		{Name: "Kenji", Species: "human"},
		{Name: "Shiro", Species: "animal"},
	}

	interactor := &fakeInteractor{}
	result, err := svc.ProcessChapter(context.Background(), "second chapter", storyCtx, interactor, nil)
	if err != nil {
		t.Fatalf("处理失败: %v", err)
	}

	if result.ChapterNumber != 2 {
		t.Errorf("期望章节号为2，得到 %d", result.ChapterNumber)
	}
	if interactor.cityCalls != 0 {
		t.Error("主城已选定，不应再次询问")
	}
	// Kyoto是新地点，应自动映射到已选主城
	if storyCtx.CityMapping["Kyoto"] != "काशी" {
		t.Errorf("新地点应映射到主城: %v", storyCtx.CityMapping)
	}
	if len(storyCtx.AllCharacters) != 2 {
		t.Errorf("名册不应出现重复角色: %d", len(storyCtx.AllCharacters))
	}
}

func TestProcessChapterAdaptationFailureRollsBack(t *testing.T) {
	svc, _ := newTestAdapter(t, func(prompt string) (string, error) {
		switch workerKind(prompt) {
		case "analysis":
			return validAnalysisJSON, nil
		case "naming":
			return validNamingJSON, nil
		case "adaptation":
			return "", llm.ErrTransport
		}
		return "", nil
	})

	interactor := &fakeInteractor{city: "काशी"}
	storyCtx := models.NewStoryContext()

	_, err := svc.ProcessChapter(context.Background(), "text", storyCtx, interactor, nil)
	if err == nil {
		t.Fatal("改编失败时应返回错误")
	}
	if storyCtx.ChapterCount != 0 {
		t.Errorf("章节计数应回滚到0，得到 %d", storyCtx.ChapterCount)
	}
}
