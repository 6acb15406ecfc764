// internal/api/websocket.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/NovelVerseMCP/internal/models"
	"github.com/Corphon/NovelVerseMCP/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

// 等待用户选择的最长时间
const choiceTimeout = 5 * time.Minute

// wsInbound 客户端发来的消息
type wsInbound struct {
	Type   string `json:"type"`             // chapter / choice_response
	Text   string `json:"text,omitempty"`   // 章节原文
	Choice string `json:"choice,omitempty"` // 用户选择
}

// wsSession 一次章节改编的WebSocket会话
//
// 会话期间连接只有一个读者：管线阻塞在选择点时
// 由会话自己读取choice_response，不存在并发读。
// 写入（进度推送与选择请求）用writeMu串行化。
type wsSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *wsSession) send(message interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(message)
}

func (s *wsSession) sendError(code, message string) {
	s.send(gin.H{"type": "error", "code": code, "message": message})
}

// readChoice 阻塞等待一条choice_response
func (s *wsSession) readChoice() (string, error) {
	s.conn.SetReadDeadline(time.Now().Add(choiceTimeout))

	for {
		var msg wsInbound
		if err := s.conn.ReadJSON(&msg); err != nil {
			return "", fmt.Errorf("读取用户选择失败: %w", err)
		}
		if msg.Type == "choice_response" {
			return strings.TrimSpace(msg.Choice), nil
		}
		// 忽略其他消息类型，继续等待
	}
}

// ChooseName 通过WebSocket征求角色命名
//
// 空选择会重新请求；任意非空字符串都接受，
// 用户可以在建议之外输入自定义名字或保留原名。
func (s *wsSession) ChooseName(suggestion models.NameSuggestion) (string, error) {
	for {
		if err := s.send(gin.H{
			"type":       "choice_request",
			"kind":       "name",
			"suggestion": suggestion,
		}); err != nil {
			return "", err
		}

		choice, err := s.readChoice()
		if err != nil {
			return "", err
		}
		if choice != "" {
			return choice, nil
		}
		s.sendError(ErrorBadRequest, "名字不能为空，请重新选择")
	}
}

// ChooseCity 通过WebSocket征求主城选择
//
// 主城必须来自候选列表，无效选择重新请求。
func (s *wsSession) ChooseCity(cities []string) (string, error) {
	valid := make(map[string]bool, len(cities))
	for _, city := range cities {
		valid[city] = true
	}

	for {
		if err := s.send(gin.H{
			"type":    "choice_request",
			"kind":    "city",
			"options": cities,
		}); err != nil {
			return "", err
		}

		choice, err := s.readChoice()
		if err != nil {
			return "", err
		}
		if valid[choice] {
			return choice, nil
		}
		s.sendError(ErrorBadRequest, "主城必须从候选列表中选择")
	}
}

// AdaptChapterWebSocket 处理一次章节改编会话
//
// 协议：客户端连接后发送一条 {type:"chapter", text:"..."}，
// 服务端推送progress，在选择点发送choice_request并等待
// choice_response，最后发送result或error。
func (h *Handler) AdaptChapterWebSocket(c *gin.Context) {
	storyName := c.Param("name")
	logger := utils.GetLogger()

	if !h.ContextService.StoryExists(storyName) {
		h.Response.NotFound(c, "故事")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("WebSocket升级失败", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close()

	session := &wsSession{conn: conn}

	if !h.LLMService.IsReady() {
		session.sendError(ErrorLLMServiceUnavailable, h.LLMService.GetReadyState())
		return
	}

	// 同一故事同时只允许一个改编会话
	if !h.LockService.TryAcquire(storyName) {
		session.sendError(ErrorStoryBusy, "该故事正在处理另一个章节")
		return
	}
	defer h.LockService.Release(storyName)

	// 第一条消息必须是章节
	conn.SetReadDeadline(time.Now().Add(choiceTimeout))
	var first wsInbound
	if err := conn.ReadJSON(&first); err != nil {
		logger.Warn("读取章节消息失败", map[string]interface{}{"error": err.Error()})
		return
	}
	if first.Type != "chapter" || strings.TrimSpace(first.Text) == "" {
		session.sendError(ErrorChapterEmpty, "第一条消息必须是非空的chapter")
		return
	}

	taskID := fmt.Sprintf("%s-%d", storyName, time.Now().UnixNano())
	tracker := h.ProgressService.CreateTracker(taskID)
	defer h.ProgressService.RemoveTracker(taskID)

	// 进度转发协程：tracker -> WebSocket
	updates := tracker.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range updates {
			session.send(gin.H{
				"type":     "progress",
				"progress": update.Progress,
				"message":  update.Message,
				"status":   update.Status,
			})
		}
	}()

	result, storyCtx, err := h.AdapterService.ProcessAndPersist(
		context.Background(), storyName, first.Text, session, tracker)

	if err != nil {
		tracker.Fail(err.Error())
		tracker.Unsubscribe(updates)
		<-done

		logger.Error("章节改编会话失败", map[string]interface{}{
			"story": storyName,
			"error": err.Error(),
		})
		session.sendError(errorCodeFor(err), err.Error())
		return
	}

	tracker.Complete("章节处理完成")
	tracker.Unsubscribe(updates)
	<-done

	session.send(gin.H{
		"type":           "result",
		"chapter_number": result.ChapterNumber,
		"hindi_text":     result.HindiText,
		"summary":        result.Summary,
		"analysis":       result.Analysis,
		"context":        storyCtx,
	})
}
