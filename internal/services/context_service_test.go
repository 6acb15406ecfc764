// internal/services/context_service_test.go
package services

import (
	"strings"
	"testing"

	apperrors "github.com/Corphon/NovelVerseMCP/internal/errors"
	"github.com/Corphon/NovelVerseMCP/internal/models"
	"github.com/Corphon/NovelVerseMCP/internal/storage"
)

func newTestContextService(t *testing.T) *ContextService {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	return NewContextService(fs)
}

func TestSanitizeStoryName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"My Story", "My_Story"},
		{"  spaced  ", "spaced"},
		{"story/with\\slashes", "storywithslashes"},
		{"日本の物語", "日本の物語"}, // \w 匹配Unicode字母
		{"dots.and-dashes", "dots.and-dashes"},
		{"<script>", "script"},
		{"", ""},
		{"///", ""},
	}

	for _, tt := range tests {
		if got := SanitizeStoryName(tt.input); got != tt.expected {
			t.Errorf("SanitizeStoryName(%q) = %q，期望 %q", tt.input, got, tt.expected)
		}
	}
}

func TestCreateStoryAndConflict(t *testing.T) {
	svc := newTestContextService(t)

	name, err := svc.CreateStory("My Novel")
	if err != nil {
		t.Fatalf("创建故事失败: %v", err)
	}
	if name != "My_Novel" {
		t.Errorf("期望整理后的名字My_Novel，得到 %s", name)
	}
	if !svc.StoryExists("My_Novel") {
		t.Error("创建后故事应存在")
	}

	if _, err := svc.CreateStory("My Novel"); !apperrors.IsConflictError(err) {
		t.Errorf("重复创建应返回冲突错误，得到 %v", err)
	}

	if _, err := svc.CreateStory("///"); err == nil {
		t.Error("整理后为空的名字应被拒绝")
	}
}

func TestLoadContextFreshStory(t *testing.T) {
	svc := newTestContextService(t)

	ctx, err := svc.LoadContext("brand_new")
	if err != nil {
		t.Fatalf("加载全新故事失败: %v", err)
	}

	if ctx.ChapterCount != 0 {
		t.Errorf("全新故事章节计数应为0，得到 %d", ctx.ChapterCount)
	}
	if ctx.CumulativeSummary != models.DefaultSummary {
		t.Errorf("全新故事摘要应为默认值: %s", ctx.CumulativeSummary)
	}
	if ctx.NameMapping == nil || ctx.CityMapping == nil {
		t.Error("映射表不应为nil")
	}
	if ctx.PrimaryIndianCity != "" {
		t.Error("全新故事不应有主城")
	}
}

func TestSaveAndReloadContextPreservesUnicode(t *testing.T) {
	svc := newTestContextService(t)

	ctx := models.NewStoryContext()
	ctx.ChapterCount = 2
	ctx.PrimaryIndianCity = "काशी"
	ctx.NameMapping["健治"] = "अर्जुन शर्मा"
	ctx.CityMapping["東京"] = "काशी"
	ctx.CumulativeSummary = "कहानी काशी में शुरू होती है।"
	ctx.AllCharacters = []models.Character{
		{Name: "健治", Role: "protagonist", Gender: "male", Species: "human"},
	}

	if err := svc.SaveContext("unicode_story", ctx); err != nil {
		t.Fatalf("保存上下文失败: %v", err)
	}

	reloaded, err := svc.LoadContext("unicode_story")
	if err != nil {
		t.Fatalf("重新加载失败: %v", err)
	}

	if reloaded.ChapterCount != 2 {
		t.Errorf("章节计数不符: %d", reloaded.ChapterCount)
	}
	if reloaded.NameMapping["健治"] != "अर्जुन शर्मा" {
		t.Errorf("命名映射不符: %v", reloaded.NameMapping)
	}
	if reloaded.CityMapping["東京"] != "काशी" {
		t.Errorf("地点映射不符: %v", reloaded.CityMapping)
	}
	if reloaded.CumulativeSummary != ctx.CumulativeSummary {
		t.Errorf("摘要不符: %s", reloaded.CumulativeSummary)
	}
	if len(reloaded.AllCharacters) != 1 || reloaded.AllCharacters[0].Name != "健治" {
		t.Errorf("名册不符: %v", reloaded.AllCharacters)
	}
}

func TestContextFileIsHumanReadable(t *testing.T) {
	svc := newTestContextService(t)

	ctx := models.NewStoryContext()
	ctx.PrimaryIndianCity = "काशी"
	if err := svc.SaveContext("readable", ctx); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	raw, err := svc.storage.LoadTextFile(svc.storyPath("readable"), ContextFilename)
	if err != nil {
		t.Fatalf("读取原始文件失败: %v", err)
	}

	// 非ASCII内容必须原样写入，不能转义成\uXXXX
	if !strings.Contains(string(raw), "काशी") {
		t.Errorf("上下文文件应包含可读的天城文: %s", raw)
	}
	if strings.Contains(string(raw), "\\u0915") {
		t.Error("非ASCII字符不应被转义")
	}
}

func TestAppendChapterAndTranscript(t *testing.T) {
	svc := newTestContextService(t)

	if err := svc.AppendChapter("story", 1, "पहला अध्याय।"); err != nil {
		t.Fatalf("追加第一章失败: %v", err)
	}
	if err := svc.AppendChapter("story", 2, "दूसरा अध्याय।"); err != nil {
		t.Fatalf("追加第二章失败: %v", err)
	}

	transcript, err := svc.LoadTranscript("story")
	if err != nil {
		t.Fatalf("读取文稿失败: %v", err)
	}

	first := strings.Index(transcript, "--- अध्याय 1 ---")
	second := strings.Index(transcript, "--- अध्याय 2 ---")
	if first < 0 || second < 0 {
		t.Fatalf("文稿缺少章节分隔符: %s", transcript)
	}
	if first > second {
		t.Error("章节顺序不符")
	}
	if !strings.Contains(transcript, "पहला अध्याय।") || !strings.Contains(transcript, "दूसरा अध्याय।") {
		t.Error("文稿缺少章节正文")
	}
}

func TestLoadTranscriptMissingReturnsEmpty(t *testing.T) {
	svc := newTestContextService(t)

	transcript, err := svc.LoadTranscript("no_such_story")
	if err != nil {
		t.Fatalf("不存在的文稿不应报错: %v", err)
	}
	if transcript != "" {
		t.Errorf("不存在的文稿应返回空串，得到 %q", transcript)
	}
}

func TestListStories(t *testing.T) {
	svc := newTestContextService(t)

	stories, err := svc.ListStories()
	if err != nil {
		t.Fatalf("列出故事失败: %v", err)
	}
	if len(stories) != 0 {
		t.Errorf("空目录应返回空列表，得到 %d", len(stories))
	}

	if _, err := svc.CreateStory("alpha"); err != nil {
		t.Fatalf("创建失败: %v", err)
	}
	ctx := models.NewStoryContext()
	ctx.ChapterCount = 5
	ctx.PrimaryIndianCity = "उज्जैन"
	if err := svc.SaveContext("alpha", ctx); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	stories, err = svc.ListStories()
	if err != nil {
		t.Fatalf("列出故事失败: %v", err)
	}
	if len(stories) != 1 {
		t.Fatalf("期望1个故事，得到 %d", len(stories))
	}
	if stories[0].Name != "alpha" || stories[0].ChapterCount != 5 || stories[0].PrimaryCity != "उज्जैन" {
		t.Errorf("故事信息不符: %+v", stories[0])
	}
}
