// internal/models/context.go
package models

// Character 表示故事中出现过的一个角色
type Character struct {
	Name                      string `json:"name"`
	Role                      string `json:"role"`
	Personality               string `json:"personality"`
	Gender                    string `json:"gender"`
	Species                   string `json:"species"`
	RelationshipToProtagonist string `json:"relationship_to_protagonist"`
}

// StoryContext 每个故事一份的持久化上下文
//
// chapter_count 与成功写入文稿的章节数始终保持一致；
// city_mapping 的所有值都等于 primary_indian_city（单一城市法则）。
type StoryContext struct {
	ChapterCount      int               `json:"chapter_count"`
	NameMapping       map[string]string `json:"name_mapping"`
	PrimaryIndianCity string            `json:"primary_indian_city"`
	CityMapping       map[string]string `json:"city_mapping"`
	CumulativeSummary string            `json:"cumulative_summary"`
	AllCharacters     []Character       `json:"all_characters"`
}

// DefaultSummary 新故事的初始累积摘要
const DefaultSummary = "This is the beginning of the story."

// NewStoryContext 创建一个全新故事的上下文
func NewStoryContext() *StoryContext {
	return &StoryContext{
		ChapterCount:      0,
		NameMapping:       make(map[string]string),
		PrimaryIndianCity: "",
		CityMapping:       make(map[string]string),
		CumulativeSummary: DefaultSummary,
		AllCharacters:     []Character{},
	}
}

// HasCharacter 检查角色名是否已在名册中
func (c *StoryContext) HasCharacter(name string) bool {
	for _, ch := range c.AllCharacters {
		if ch.Name == name {
			return true
		}
	}
	return false
}

// MergeCharacters 按首次出现顺序合并新角色，按名字去重
func (c *StoryContext) MergeCharacters(chars []Character) {
	for _, ch := range chars {
		if ch.Name == "" || c.HasCharacter(ch.Name) {
			continue
		}
		c.AllCharacters = append(c.AllCharacters, ch)
	}
}
