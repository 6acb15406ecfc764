// internal/models/story.go
package models

// StoryInfo 故事目录的基本信息
type StoryInfo struct {
	Name         string `json:"name"`
	ChapterCount int    `json:"chapter_count"`
	PrimaryCity  string `json:"primary_city,omitempty"`
}

// ChapterResult 一次章节处理的最终产物
type ChapterResult struct {
	ChapterNumber int              `json:"chapter_number"`
	HindiText     string           `json:"hindi_text"`
	Summary       string           `json:"summary"`
	Analysis      *ChapterAnalysis `json:"analysis,omitempty"`
	Appended      bool             `json:"appended"`
}
