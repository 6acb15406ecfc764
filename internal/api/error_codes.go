// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// 故事相关错误
	ErrorStoryNotFound     = "STORY_NOT_FOUND"
	ErrorStoryCreateFailed = "STORY_CREATE_FAILED"
	ErrorStoryNameInvalid  = "STORY_NAME_INVALID"
	ErrorStoryBusy         = "STORY_BUSY"

	// 章节处理相关错误
	ErrorChapterAnalysisFailed = "CHAPTER_ANALYSIS_FAILED"
	ErrorChapterEmpty          = "CHAPTER_EMPTY"
	ErrorAdaptationFailed      = "ADAPTATION_FAILED"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"

	// 存储相关错误
	ErrorStorageFailed = "STORAGE_FAILED"
)
