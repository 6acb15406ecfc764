// internal/utils/jsonextract.go
package utils

import (
	"encoding/json"
	"regexp"
	"strings"
)

// LLM返回的JSON经常被散文、Markdown围栏或尾随逗号污染，
// 这里集中做宽容解析：围栏检测 → 外层大括号截取 → 尾随逗号修复 → 解析。

var (
	jsonFencePattern    = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	trailingCommaRepair = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON 从任意文本中恢复一个JSON对象
//
// 永不panic也永不返回错误：解析失败时返回空map，
// 由调用方决定重试策略。
func ExtractJSON(text string) map[string]interface{} {
	jsonString, ok := extractCandidate(text)
	if !ok {
		GetLogger().Warn("收到空文本，无法提取JSON", nil)
		return map[string]interface{}{}
	}

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(jsonString), &result); err != nil {
		GetLogger().Error("LLM响应无法解析为JSON", map[string]interface{}{
			"error":   err.Error(),
			"payload": truncate(jsonString, 500),
		})
		return map[string]interface{}{}
	}

	return result
}

// ExtractJSONInto 提取并解码到指定的结构体
//
// 返回false表示没有可解析的JSON（调用方可重试）。
func ExtractJSONInto(text string, v interface{}) bool {
	jsonString, ok := extractCandidate(text)
	if !ok {
		return false
	}

	if err := json.Unmarshal([]byte(jsonString), v); err != nil {
		GetLogger().Error("LLM响应无法解析为目标结构", map[string]interface{}{
			"error":   err.Error(),
			"payload": truncate(jsonString, 500),
		})
		return false
	}

	return true
}

// extractCandidate 定位最可能是JSON的子串并做修复
func extractCandidate(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	var jsonString string
	if m := jsonFencePattern.FindStringSubmatch(text); m != nil {
		jsonString = strings.TrimSpace(m[1])
	} else {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start != -1 && end != -1 && end > start {
			jsonString = text[start : end+1]
		} else {
			jsonString = text
		}
	}

	// 修复尾随逗号：{"a": 1,} / [1, 2,]
	jsonString = trailingCommaRepair.ReplaceAllString(jsonString, "$1")

	return jsonString, true
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
