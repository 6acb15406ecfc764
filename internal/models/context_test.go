// internal/models/context_test.go
package models

import (
	"encoding/json"
	"testing"
)

func TestNewStoryContextDefaults(t *testing.T) {
	ctx := NewStoryContext()

	if ctx.ChapterCount != 0 {
		t.Errorf("新上下文章节计数应为0，得到 %d", ctx.ChapterCount)
	}
	if ctx.CumulativeSummary != DefaultSummary {
		t.Errorf("初始摘要不符: %s", ctx.CumulativeSummary)
	}
	if ctx.NameMapping == nil || ctx.CityMapping == nil || ctx.AllCharacters == nil {
		t.Error("映射和名册不应为nil")
	}
}

func TestMergeCharacters(t *testing.T) {
	ctx := NewStoryContext()
	ctx.AllCharacters = []Character{{Name: "Kenji", Species: "human"}}

	ctx.MergeCharacters([]Character{
		{Name: "Kenji", Role: "updated role"}, // 重名，跳过
		{Name: "Yuki", Species: "human"},
		{Name: ""},                            // 空名字，跳过
		{Name: "Shiro", Species: "animal"},
		{Name: "Yuki", Role: "dup"},           // 本批内重名，跳过
	})

	if len(ctx.AllCharacters) != 3 {
		t.Fatalf("期望名册3个角色，得到 %d: %v", len(ctx.AllCharacters), ctx.AllCharacters)
	}
	// 首次出现顺序
	if ctx.AllCharacters[1].Name != "Yuki" || ctx.AllCharacters[2].Name != "Shiro" {
		t.Errorf("合并顺序不符: %v", ctx.AllCharacters)
	}
	// 已有条目不被覆盖
	if ctx.AllCharacters[0].Role != "" {
		t.Errorf("已有角色不应被覆盖: %+v", ctx.AllCharacters[0])
	}
}

func TestStoryContextJSONFieldNames(t *testing.T) {
	ctx := NewStoryContext()
	ctx.ChapterCount = 1
	ctx.PrimaryIndianCity = "काशी"

	data, err := json.Marshal(ctx)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("解析失败: %v", err)
	}

	// 上下文文件的字段名是持久化契约的一部分
	for _, key := range []string{
		"chapter_count", "name_mapping", "primary_indian_city",
		"city_mapping", "cumulative_summary", "all_characters",
	} {
		if _, ok := raw[key]; !ok {
			t.Errorf("缺少字段 %s: %s", key, data)
		}
	}
}

func TestCharacterJSONRoundTrip(t *testing.T) {
	data := []byte(`{"name": "健治", "role": "protagonist", "species": "human", "relationship_to_protagonist": "himself"}`)

	var ch Character
	if err := json.Unmarshal(data, &ch); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if ch.Name != "健治" || ch.RelationshipToProtagonist != "himself" {
		t.Errorf("字段不符: %+v", ch)
	}
}
