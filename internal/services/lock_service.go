// internal/services/lock_service.go
package services

import (
	"sync"
)

// LockService 为每个故事提供排他处理锁
//
// 同一故事同一时间只允许一个章节处理会话，
// 避免两个会话同时改写同一份上下文文件。
type LockService struct {
	mutex sync.Mutex
	held  map[string]bool
}

// NewLockService 创建锁服务
func NewLockService() *LockService {
	return &LockService{
		held: make(map[string]bool),
	}
}

// TryAcquire 尝试获取故事锁，已被占用时返回false
func (s *LockService) TryAcquire(storyName string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.held[storyName] {
		return false
	}
	s.held[storyName] = true
	return true
}

// Release 释放故事锁
func (s *LockService) Release(storyName string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.held, storyName)
}

// IsLocked 检查故事是否正在处理中
func (s *LockService) IsLocked(storyName string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.held[storyName]
}
