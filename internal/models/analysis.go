// internal/models/analysis.go
package models

// ChapterAnalysis 单章分析结果，由LLM输出解析而来
//
// 仅在处理当前章节期间存活，不单独持久化；
// 其角色与摘要会沉淀进 StoryContext。
type ChapterAnalysis struct {
	Characters       []Character    `json:"characters"`
	KeyEvents        []string       `json:"key_events"`
	EmotionalTone    map[string]any `json:"emotional_tone"`
	CulturalElements []string       `json:"cultural_elements"`
	WorldElements    []string       `json:"world_elements"`
	StyleNotes       map[string]any `json:"style_notes"`
	ChapterSummary   string         `json:"chapter_summary"`
	Locations        []string       `json:"locations"`
}

// NameSuggestion 命名工人为单个角色给出的建议
type NameSuggestion struct {
	OriginalName string   `json:"original_name"`
	Gender       string   `json:"gender"`
	Role         string   `json:"role"`
	IndianNames  []string `json:"indian_names"`
}

// NameSuggestions 命名工人的完整响应
type NameSuggestions struct {
	Suggestions []NameSuggestion `json:"name_suggestions"`
}
