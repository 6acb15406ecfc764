// internal/services/context_service.go
package services

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "github.com/Corphon/NovelVerseMCP/internal/errors"
	"github.com/Corphon/NovelVerseMCP/internal/models"
	"github.com/Corphon/NovelVerseMCP/internal/storage"
	"github.com/Corphon/NovelVerseMCP/internal/utils"
)

const (
	// StoriesDir 所有故事目录的根（相对于存储根目录）
	StoriesDir = "stories"

	// ContextFilename 每个故事的上下文文件
	ContextFilename = "story_context.json"

	// TranscriptFilename 每个故事的完整印地语文稿
	TranscriptFilename = "full_hindi_story.txt"
)

// 允许任意语言的字母与数字，故事名可以直接用日文原名
var storyNameSanitizer = regexp.MustCompile(`[^\p{L}\p{N}_\-. ]`)

// ContextService 管理每个故事的持久化上下文与文稿
type ContextService struct {
	storage *storage.FileStorage
}

// NewContextService 创建上下文服务
func NewContextService(fs *storage.FileStorage) *ContextService {
	return &ContextService{storage: fs}
}

// storyPath 返回故事目录（相对于存储根目录）
func (s *ContextService) storyPath(storyName string) string {
	return filepath.Join(StoriesDir, storyName)
}

// StoryExists 检查故事是否存在
func (s *ContextService) StoryExists(storyName string) bool {
	return s.storage.DirExists(s.storyPath(storyName))
}

// ListStories 列出所有已存在的故事
func (s *ContextService) ListStories() ([]models.StoryInfo, error) {
	names, err := s.storage.ListDirs(StoriesDir)
	if err != nil {
		return nil, apperrors.NewStorageError("读取故事列表失败", err)
	}

	infos := make([]models.StoryInfo, 0, len(names))
	for _, name := range names {
		info := models.StoryInfo{Name: name}
		if ctx, err := s.LoadContext(name); err == nil {
			info.ChapterCount = ctx.ChapterCount
			info.PrimaryCity = ctx.PrimaryIndianCity
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// SanitizeStoryName 将用户输入整理成合法的目录名
func SanitizeStoryName(name string) string {
	name = strings.TrimSpace(name)
	name = storyNameSanitizer.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	return strings.ReplaceAll(name, " ", "_")
}

// CreateStory 创建一个新的故事目录
func (s *ContextService) CreateStory(name string) (string, error) {
	sanitized := SanitizeStoryName(name)
	if sanitized == "" {
		return "", apperrors.NewValidationError("故事名无效，请使用字母、数字、空格或下划线", nil)
	}

	if s.StoryExists(sanitized) {
		return "", apperrors.NewConflictError(fmt.Sprintf("故事 '%s' 已存在", sanitized), nil)
	}

	if err := s.storage.EnsureDir(s.storyPath(sanitized)); err != nil {
		return "", apperrors.NewStorageError("创建故事目录失败", err)
	}

	utils.GetLogger().Info("新故事已创建", map[string]interface{}{"story": sanitized})
	return sanitized, nil
}

// LoadContext 加载故事上下文；不存在时返回全新的初始上下文
func (s *ContextService) LoadContext(storyName string) (*models.StoryContext, error) {
	path := s.storyPath(storyName)

	if !s.storage.FileExists(path, ContextFilename) {
		utils.GetLogger().Info("未找到上下文文件，从头开始", map[string]interface{}{"story": storyName})
		return models.NewStoryContext(), nil
	}

	ctx := models.NewStoryContext()
	if err := s.storage.LoadJSONFile(path, ContextFilename, ctx); err != nil {
		return nil, apperrors.NewStorageError("加载故事上下文失败", err)
	}

	// 旧文件可能缺少映射字段
	if ctx.NameMapping == nil {
		ctx.NameMapping = make(map[string]string)
	}
	if ctx.CityMapping == nil {
		ctx.CityMapping = make(map[string]string)
	}
	if ctx.AllCharacters == nil {
		ctx.AllCharacters = []models.Character{}
	}

	return ctx, nil
}

// SaveContext 原子写入故事上下文，覆盖旧版本
func (s *ContextService) SaveContext(storyName string, ctx *models.StoryContext) error {
	if err := s.storage.SaveJSONFile(s.storyPath(storyName), ContextFilename, ctx); err != nil {
		return apperrors.NewStorageError("保存故事上下文失败", err)
	}
	utils.GetLogger().Info("故事上下文已保存", map[string]interface{}{
		"story":         storyName,
		"chapter_count": ctx.ChapterCount,
	})
	return nil
}

// AppendChapter 把完成的章节追加到故事文稿
//
// 文稿是只追加的：一旦写入不提供回滚。
func (s *ContextService) AppendChapter(storyName string, chapterNumber int, hindiText string) error {
	block := fmt.Sprintf("\n\n--- अध्याय %d ---\n\n%s", chapterNumber, hindiText)
	if err := s.storage.AppendTextFile(s.storyPath(storyName), TranscriptFilename, []byte(block)); err != nil {
		return apperrors.NewStorageError("追加章节到文稿失败", err)
	}
	utils.GetLogger().Info("章节已追加到文稿", map[string]interface{}{
		"story":   storyName,
		"chapter": chapterNumber,
	})
	return nil
}

// LoadTranscript 读取完整文稿，不存在时返回空串
func (s *ContextService) LoadTranscript(storyName string) (string, error) {
	path := s.storyPath(storyName)
	if !s.storage.FileExists(path, TranscriptFilename) {
		return "", nil
	}

	content, err := s.storage.LoadTextFile(path, TranscriptFilename)
	if err != nil {
		return "", apperrors.NewStorageError("读取故事文稿失败", err)
	}
	return string(content), nil
}
