// internal/services/lock_service_test.go
package services

import (
	"sync"
	"testing"
)

func TestLockServiceExclusivity(t *testing.T) {
	svc := NewLockService()

	if !svc.TryAcquire("story") {
		t.Fatal("首次获取锁应成功")
	}
	if svc.TryAcquire("story") {
		t.Error("重复获取同一故事的锁应失败")
	}
	if !svc.TryAcquire("other") {
		t.Error("不同故事的锁互不影响")
	}
	if !svc.IsLocked("story") {
		t.Error("锁应处于占用状态")
	}

	svc.Release("story")
	if svc.IsLocked("story") {
		t.Error("释放后锁不应占用")
	}
	if !svc.TryAcquire("story") {
		t.Error("释放后应能重新获取")
	}
}

func TestLockServiceConcurrentAcquire(t *testing.T) {
	svc := NewLockService()

	var wg sync.WaitGroup
	acquired := make(chan bool, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired <- svc.TryAcquire("story")
		}()
	}
	wg.Wait()
	close(acquired)

	wins := 0
	for ok := range acquired {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("并发下应只有一个获取成功，得到 %d", wins)
	}
}

func TestProgressTrackerSubscribers(t *testing.T) {
	svc := NewProgressService()
	tracker := svc.CreateTracker("task-1")

	ch := tracker.Subscribe()
	tracker.UpdateProgress(40, "处理中")

	update := <-ch
	if update.Progress != 40 || update.Message != "处理中" || update.Status != "running" {
		t.Errorf("进度更新不符: %+v", update)
	}

	tracker.Complete("完成")
	update = <-ch
	if update.Progress != 100 || update.Status != "completed" {
		t.Errorf("完成状态不符: %+v", update)
	}

	tracker.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Error("取消订阅后通道应关闭")
	}
}

func TestProgressNeverRegresses(t *testing.T) {
	svc := NewProgressService()
	tracker := svc.CreateTracker("task-2")

	tracker.UpdateProgress(60, "")
	tracker.UpdateProgress(30, "回头消息")

	if tracker.Progress != 60 {
		t.Errorf("进度不应倒退，得到 %d", tracker.Progress)
	}
}
