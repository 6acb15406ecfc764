// internal/services/adapter_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/Corphon/NovelVerseMCP/internal/errors"
	"github.com/Corphon/NovelVerseMCP/internal/models"
	"github.com/Corphon/NovelVerseMCP/internal/utils"
)

// 分析阶段的总尝试次数（第二次带JSON修复提示）
const maxAnalysisAttempts = 2

// UserInteractor 用户决策端口
//
// 管线在命名与主城选择处阻塞等待用户选择；
// 终端实现走stdin，服务端实现走WebSocket。
// 无效选择由实现自行重新提问，不上抛。
type UserInteractor interface {
	// ChooseName 为一个新角色选择印地语名字（或保留原名）
	ChooseName(suggestion models.NameSuggestion) (string, error)

	// ChooseCity 从候选城市列表中为故事选定唯一主城
	ChooseCity(cities []string) (string, error)
}

// AdapterService 章节改编管线
//
// 固定的五阶段顺序：分析 → 命名 → 主城 → 改编 → 摘要合并，
// 阶段之间单向推进，不回跳。
type AdapterService struct {
	LLMService     *LLMService
	MappingService *MappingService
	ContextService *ContextService
}

// NewAdapterService 创建改编管线服务
func NewAdapterService(llmService *LLMService, mappingService *MappingService, contextService *ContextService) *AdapterService {
	return &AdapterService{
		LLMService:     llmService,
		MappingService: mappingService,
		ContextService: contextService,
	}
}

// ProcessChapter 处理一个章节，返回改编结果并就地更新上下文
//
// 分析失败时回滚章节计数，上下文的其他部分保持原样
// （名册与映射的合并都发生在分析成功之后）。
func (s *AdapterService) ProcessChapter(ctx context.Context, chapterText string, storyCtx *models.StoryContext, interactor UserInteractor, tracker *ProgressTracker) (*models.ChapterResult, error) {
	storyCtx.ChapterCount++
	chapterNum := storyCtx.ChapterCount

	// 阶段1：章节分析（带有界重试）
	report(tracker, 10, fmt.Sprintf("正在分析第 %d 章...", chapterNum))
	analysis, err := s.analyzeChapter(ctx, chapterText)
	if err != nil {
		storyCtx.ChapterCount--
		return nil, err
	}

	utils.GetLogger().Info("章节分析完成", map[string]interface{}{
		"chapter":    chapterNum,
		"characters": len(analysis.Characters),
		"locations":  len(analysis.Locations),
	})

	// 阶段2：为新的人类角色解析命名映射
	report(tracker, 30, "正在处理角色命名...")
	if err := s.resolveNameMappings(ctx, analysis, storyCtx, interactor); err != nil {
		storyCtx.ChapterCount--
		return nil, err
	}

	// 阶段3：主城选择与地点映射
	report(tracker, 45, "正在处理地点映射...")
	if err := s.resolveCityMappings(analysis, storyCtx, interactor); err != nil {
		storyCtx.ChapterCount--
		return nil, err
	}

	// 阶段4：合并角色名册（按首次出现顺序，按名字去重）
	storyCtx.MergeCharacters(analysis.Characters)

	// 阶段5：改编章节正文
	report(tracker, 60, fmt.Sprintf("正在生成第 %d 章的印地语文本...", chapterNum))
	hindiText, err := s.adaptChapter(ctx, chapterText, analysis, storyCtx)
	if err != nil {
		storyCtx.ChapterCount--
		return nil, err
	}

	// 阶段6：合并累积摘要；失败不致命
	report(tracker, 90, "正在更新累积摘要...")
	s.updateCumulativeSummary(ctx, analysis.ChapterSummary, storyCtx)

	return &models.ChapterResult{
		ChapterNumber: chapterNum,
		HindiText:     hindiText,
		Summary:       analysis.ChapterSummary,
		Analysis:      analysis,
	}, nil
}

// ProcessAndPersist 完整处理一个章节并持久化结果
//
// 顺序固定：处理 → 追加文稿 → 保存上下文。
// 文稿追加失败时上下文不保存，持久态保持处理前的样子，
// 维持 chapter_count == 已追加章节数 的不变量。
func (s *AdapterService) ProcessAndPersist(ctx context.Context, storyName, chapterText string, interactor UserInteractor, tracker *ProgressTracker) (*models.ChapterResult, *models.StoryContext, error) {
	storyCtx, err := s.ContextService.LoadContext(storyName)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.ProcessChapter(ctx, chapterText, storyCtx, interactor, tracker)
	if err != nil {
		return nil, storyCtx, err
	}

	if err := s.ContextService.AppendChapter(storyName, result.ChapterNumber, result.HindiText); err != nil {
		storyCtx.ChapterCount--
		return nil, storyCtx, err
	}
	result.Appended = true

	if err := s.ContextService.SaveContext(storyName, storyCtx); err != nil {
		return nil, storyCtx, err
	}

	report(tracker, 100, fmt.Sprintf("第 %d 章处理完成", result.ChapterNumber))
	return result, storyCtx, nil
}

// analyzeChapter 调用分析工人并宽容解析，失败时带修复提示重试
func (s *AdapterService) analyzeChapter(ctx context.Context, chapterText string) (*models.ChapterAnalysis, error) {
	var lastRaw string

	for attempt := 0; attempt < maxAnalysisAttempts; attempt++ {
		var prompt string
		if attempt == 0 {
			prompt = BuildWorkerPrompt(AnalysisPrompt, chapterText)
		} else {
			utils.GetLogger().Warn("分析输出无效，带修复提示重试", map[string]interface{}{"attempt": attempt + 1})
			prompt = BuildWorkerPrompt(BuildFixerPrompt(lastRaw), chapterText)
		}

		raw, err := s.LLMService.Generate(ctx, prompt)
		if err != nil {
			utils.GetLogger().Error("分析工人调用失败", map[string]interface{}{"error": err.Error()})
			lastRaw = ""
			continue
		}
		lastRaw = raw

		analysis := &models.ChapterAnalysis{}
		if utils.ExtractJSONInto(raw, analysis) && len(analysis.Characters) > 0 {
			return analysis, nil
		}
	}

	return nil, apperrors.NewAnalysisFailedError(
		fmt.Sprintf("章节分析在 %d 次尝试后仍然失败", maxAnalysisAttempts),
		nil,
	)
}

// resolveNameMappings 为本章新出现的人类角色征求命名选择
//
// 非人类角色绝不进入命名流程，也不会写入name_mapping。
func (s *AdapterService) resolveNameMappings(ctx context.Context, analysis *models.ChapterAnalysis, storyCtx *models.StoryContext, interactor UserInteractor) error {
	newHumans := s.MappingService.FilterNewHumanCharacters(analysis.Characters, storyCtx.AllCharacters)
	if len(newHumans) == 0 {
		utils.GetLogger().Info("没有新的人类角色，沿用现有命名映射", nil)
		return nil
	}

	payload, err := marshalNoEscape(newHumans)
	if err != nil {
		return apperrors.NewProcessingError("序列化角色列表失败", err)
	}

	raw, err := s.LLMService.Generate(ctx, BuildWorkerPrompt(NamingPrompt, string(payload)))
	if err != nil {
		// 命名建议拿不到时跳过本章命名，角色仍会进入名册
		utils.GetLogger().Warn("获取命名建议失败，本章跳过命名", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var suggestions models.NameSuggestions
	if !utils.ExtractJSONInto(raw, &suggestions) || len(suggestions.Suggestions) == 0 {
		utils.GetLogger().Warn("命名建议无法解析，本章跳过命名", nil)
		return nil
	}

	eligible := make(map[string]bool, len(newHumans))
	for _, ch := range newHumans {
		eligible[ch.Name] = true
	}

	for _, suggestion := range suggestions.Suggestions {
		// 防御LLM越权给非人类或已映射角色起名
		if !eligible[suggestion.OriginalName] {
			continue
		}
		if _, exists := storyCtx.NameMapping[suggestion.OriginalName]; exists {
			continue
		}

		chosen, err := interactor.ChooseName(suggestion)
		if err != nil {
			return apperrors.NewProcessingError("获取用户命名选择失败", err)
		}

		storyCtx.NameMapping[suggestion.OriginalName] = chosen
		utils.GetLogger().Info("命名映射已确定", map[string]interface{}{
			"original": suggestion.OriginalName,
			"mapped":   chosen,
		})
	}

	return nil
}

// resolveCityMappings 维护单一主城与地点映射
//
// 主城一经选定对整个故事不再改变；
// 本章所有未映射地点都映射到主城。
func (s *AdapterService) resolveCityMappings(analysis *models.ChapterAnalysis, storyCtx *models.StoryContext, interactor UserInteractor) error {
	if storyCtx.PrimaryIndianCity == "" {
		if len(analysis.Locations) == 0 {
			utils.GetLogger().Info("本章没有地点，主城留待首个地点出现时选择", nil)
			return nil
		}

		city, err := interactor.ChooseCity(AncientIndianCities)
		if err != nil {
			return apperrors.NewProcessingError("获取用户主城选择失败", err)
		}
		storyCtx.PrimaryIndianCity = city
		utils.GetLogger().Info("故事主城已选定", map[string]interface{}{"city": city})
	}

	unmapped := s.MappingService.FilterUnmappedLocations(analysis.Locations, storyCtx.CityMapping)
	for _, loc := range unmapped {
		storyCtx.CityMapping[loc] = storyCtx.PrimaryIndianCity
	}
	if len(unmapped) > 0 {
		utils.GetLogger().Info("新地点已映射到主城", map[string]interface{}{
			"count": len(unmapped),
			"city":  storyCtx.PrimaryIndianCity,
		})
	}

	return nil
}

// adaptChapter 调用改编工人生成印地语章节正文
func (s *AdapterService) adaptChapter(ctx context.Context, chapterText string, analysis *models.ChapterAnalysis, storyCtx *models.StoryContext) (string, error) {
	input := map[string]interface{}{
		"original_text":    chapterText,
		"analysis":         analysis,
		"previous_summary": storyCtx.CumulativeSummary,
		"name_mapping":     storyCtx.NameMapping,
		"city_mapping":     storyCtx.CityMapping,
	}

	payload, err := marshalNoEscape(input)
	if err != nil {
		return "", apperrors.NewProcessingError("序列化改编输入失败", err)
	}

	raw, err := s.LLMService.Generate(ctx, BuildWorkerPrompt(AdaptationPrompt, string(payload)))
	if err != nil {
		return "", apperrors.NewLLMError("章节改编失败", err)
	}

	// 改编输出是成品文本，原样使用
	return strings.TrimSpace(raw), nil
}

// updateCumulativeSummary 合并累积摘要；失败只警告，摘要保持不变
func (s *AdapterService) updateCumulativeSummary(ctx context.Context, chapterSummary string, storyCtx *models.StoryContext) {
	input := map[string]string{
		"previous_summary":    storyCtx.CumulativeSummary,
		"new_chapter_summary": chapterSummary,
	}

	payload, err := marshalNoEscape(input)
	if err != nil {
		utils.GetLogger().Warn("序列化摘要输入失败，累积摘要保持不变", map[string]interface{}{"error": err.Error()})
		return
	}

	raw, err := s.LLMService.Generate(ctx, BuildWorkerPrompt(SummaryMergePrompt, string(payload)))
	if err != nil || strings.TrimSpace(raw) == "" {
		utils.GetLogger().Warn("累积摘要更新失败，保留旧摘要", nil)
		return
	}

	storyCtx.CumulativeSummary = strings.TrimSpace(raw)
}

// marshalNoEscape 序列化JSON且不转义非ASCII字符
func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// report 空安全的进度上报
func report(tracker *ProgressTracker, progress int, message string) {
	if tracker != nil {
		tracker.UpdateProgress(progress, message)
	}
}
