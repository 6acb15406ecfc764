// cmd/cli/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Corphon/NovelVerseMCP/internal/app"
	"github.com/Corphon/NovelVerseMCP/internal/config"
	"github.com/Corphon/NovelVerseMCP/internal/di"
	"github.com/Corphon/NovelVerseMCP/internal/models"
	"github.com/Corphon/NovelVerseMCP/internal/services"
	"github.com/Corphon/NovelVerseMCP/internal/utils"
)

func main() {
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	if err := utils.InitLogger(filepath.Join(baseConfig.LogDir, "cli.log")); err != nil {
		log.Printf("⚠️ 初始化日志文件失败: %v", err)
	}

	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("初始化配置系统失败: %v", err)
	}

	if err := app.InitServices(); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}

	container := di.GetContainer()
	llmService := container.Get("llm").(*services.LLMService)
	contextService := container.Get("context").(*services.ContextService)
	adapterService := container.Get("adapter").(*services.AdapterService)

	if !llmService.IsReady() {
		log.Fatalf("LLM服务未就绪: %s\n请设置GROQ_API_KEY或GOOGLE_API_KEY环境变量", llmService.GetReadyState())
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("========================================")
	fmt.Println("  NovelVerse — 小说文化改编工作台")
	fmt.Printf("  LLM提供商: %s\n", llmService.GetProviderName())
	fmt.Println("========================================")

	storyName, err := selectStory(reader, contextService)
	if err != nil {
		log.Fatalf("选择故事失败: %v", err)
	}

	storyCtx, err := contextService.LoadContext(storyName)
	if err != nil {
		log.Fatalf("加载故事上下文失败: %v", err)
	}
	fmt.Printf("\n📖 故事: %s（已处理 %d 章）\n", storyName, storyCtx.ChapterCount)
	if storyCtx.PrimaryIndianCity != "" {
		fmt.Printf("🏛  主城: %s\n", storyCtx.PrimaryIndianCity)
	}

	interactor := &terminalInteractor{reader: reader}

	for {
		chapterText, ok := readChapter(reader)
		if !ok {
			fmt.Println("\n再见！")
			return
		}

		result, updatedCtx, err := adapterService.ProcessAndPersist(
			context.Background(), storyName, chapterText, interactor, nil)
		if err != nil {
			fmt.Printf("\n❌ 章节处理失败: %v\n", err)
			fmt.Println("故事状态未改变，可以修正后重试。")
			continue
		}

		printResult(result, updatedCtx)
	}
}

// selectStory 故事选择菜单：选已有的或建新的
func selectStory(reader *bufio.Reader, contextService *services.ContextService) (string, error) {
	stories, err := contextService.ListStories()
	if err != nil {
		return "", err
	}

	if len(stories) > 0 {
		fmt.Println("\n已有的故事:")
		for i, story := range stories {
			line := fmt.Sprintf("  %d. %s（%d 章", i+1, story.Name, story.ChapterCount)
			if story.PrimaryCity != "" {
				line += "，主城 " + story.PrimaryCity
			}
			fmt.Println(line + "）")
		}
		fmt.Println("  0. 创建新故事")

		for {
			fmt.Print("\n选择故事编号: ")
			input, _ := reader.ReadString('\n')
			choice, err := strconv.Atoi(strings.TrimSpace(input))
			if err != nil || choice < 0 || choice > len(stories) {
				fmt.Println("无效的编号，请重新输入。")
				continue
			}
			if choice > 0 {
				return stories[choice-1].Name, nil
			}
			break
		}
	}

	for {
		fmt.Print("\n新故事的名字: ")
		input, _ := reader.ReadString('\n')
		name, err := contextService.CreateStory(input)
		if err != nil {
			fmt.Printf("创建失败: %v\n", err)
			continue
		}
		return name, nil
	}
}

// readChapter 读取多行章节原文，单独一行END结束，空章节视为退出
func readChapter(reader *bufio.Reader) (string, bool) {
	fmt.Println("\n--- 粘贴下一章原文，单独一行输入 END 结束（直接 END 退出）---")

	var lines []string
	for {
		line, err := reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(trimmed) == "END" {
			break
		}
		lines = append(lines, trimmed)
		if err != nil {
			break
		}
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	return text, text != ""
}

// printResult 打印章节结果与上下文摘要
func printResult(result *models.ChapterResult, storyCtx *models.StoryContext) {
	fmt.Printf("\n=============== अध्याय %d ===============\n\n", result.ChapterNumber)
	fmt.Println(result.HindiText)
	fmt.Println("\n========================================")
	fmt.Printf("📝 本章摘要: %s\n", result.Summary)
	fmt.Printf("📚 累积摘要: %s\n", storyCtx.CumulativeSummary)

	if result.Analysis != nil && len(result.Analysis.KeyEvents) > 0 {
		fmt.Println("\n🔑 关键事件:")
		for _, event := range result.Analysis.KeyEvents {
			fmt.Printf("  • %s\n", event)
		}
	}

	if len(storyCtx.NameMapping) > 0 {
		fmt.Println("\n👥 命名映射:")
		for original, mapped := range storyCtx.NameMapping {
			fmt.Printf("  %s → %s\n", original, mapped)
		}
	}
	if storyCtx.PrimaryIndianCity != "" {
		fmt.Printf("\n🏛  主城: %s（已映射地点 %d 个）\n", storyCtx.PrimaryIndianCity, len(storyCtx.CityMapping))
	}
}

// terminalInteractor 终端里的用户选择
type terminalInteractor struct {
	reader *bufio.Reader
}

// ChooseName 展示建议名并读取选择；0保留原名，或直接输入自定义名字
func (t *terminalInteractor) ChooseName(suggestion models.NameSuggestion) (string, error) {
	fmt.Printf("\n🆕 新角色: %s（%s，%s）\n", suggestion.OriginalName, suggestion.Gender, suggestion.Role)
	for i, name := range suggestion.IndianNames {
		fmt.Printf("  %d. %s\n", i+1, name)
	}
	fmt.Println("  0. 保留原名")

	for {
		fmt.Print("选择编号或输入自定义名字: ")
		input, err := t.reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("读取输入失败: %w", err)
		}

		choice := strings.TrimSpace(input)
		if choice == "" {
			continue
		}
		if choice == "0" {
			return suggestion.OriginalName, nil
		}
		if idx, err := strconv.Atoi(choice); err == nil {
			if idx >= 1 && idx <= len(suggestion.IndianNames) {
				return suggestion.IndianNames[idx-1], nil
			}
			fmt.Println("编号超出范围，请重新输入。")
			continue
		}
		return choice, nil
	}
}

// ChooseCity 展示候选城市并读取选择
func (t *terminalInteractor) ChooseCity(cities []string) (string, error) {
	fmt.Println("\n🏛  为这个故事选择唯一的主城（之后不可更改）:")
	for i, city := range cities {
		fmt.Printf("  %2d. %s\n", i+1, city)
	}

	for {
		fmt.Print("选择城市编号: ")
		input, err := t.reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("读取输入失败: %w", err)
		}

		idx, convErr := strconv.Atoi(strings.TrimSpace(input))
		if convErr != nil || idx < 1 || idx > len(cities) {
			fmt.Println("无效的编号，请重新输入。")
			continue
		}
		return cities[idx-1], nil
	}
}
