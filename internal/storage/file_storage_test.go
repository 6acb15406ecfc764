// internal/storage/file_storage_test.go
package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	fs, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	return fs
}

func TestSaveAndLoadTextFile(t *testing.T) {
	fs := newTestStorage(t)

	content := []byte("काशी की कहानी")
	if err := fs.SaveTextFile("stories/demo", "note.txt", content); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	loaded, err := fs.LoadTextFile("stories/demo", "note.txt")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if string(loaded) != string(content) {
		t.Errorf("内容不符: %s", loaded)
	}

	// 原子写不应留下临时文件
	entries, err := os.ReadDir(filepath.Join(fs.BaseDir, "stories/demo"))
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("残留临时文件: %s", e.Name())
		}
	}
}

func TestSaveJSONFileKeepsUnicode(t *testing.T) {
	fs := newTestStorage(t)

	data := map[string]string{"city": "पाटलिपुत्र"}
	if err := fs.SaveJSONFile("demo", "data.json", data); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	raw, err := fs.LoadTextFile("demo", "data.json")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if !strings.Contains(string(raw), "पाटलिपुत्र") {
		t.Errorf("JSON文件应保留原始Unicode: %s", raw)
	}

	var loaded map[string]string
	if err := fs.LoadJSONFile("demo", "data.json", &loaded); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if loaded["city"] != "पाटलिपुत्र" {
		t.Errorf("往返后内容不符: %v", loaded)
	}
}

func TestAppendTextFile(t *testing.T) {
	fs := newTestStorage(t)

	if err := fs.AppendTextFile("demo", "log.txt", []byte("first")); err != nil {
		t.Fatalf("追加失败: %v", err)
	}
	if err := fs.AppendTextFile("demo", "log.txt", []byte("|second")); err != nil {
		t.Fatalf("追加失败: %v", err)
	}

	content, err := fs.LoadTextFile("demo", "log.txt")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if string(content) != "first|second" {
		t.Errorf("追加内容不符: %s", content)
	}
}

func TestAppendTextFileConcurrent(t *testing.T) {
	fs := newTestStorage(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fs.AppendTextFile("demo", "concurrent.txt", []byte("x")); err != nil {
				t.Errorf("并发追加失败: %v", err)
			}
		}()
	}
	wg.Wait()

	content, err := fs.LoadTextFile("demo", "concurrent.txt")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(content) != 20 {
		t.Errorf("期望20字节，得到 %d", len(content))
	}
}

func TestDirAndFileExistence(t *testing.T) {
	fs := newTestStorage(t)

	if fs.DirExists("missing") {
		t.Error("不存在的目录不应报告存在")
	}
	if fs.FileExists("missing", "file.txt") {
		t.Error("不存在的文件不应报告存在")
	}

	if err := fs.EnsureDir("created"); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if !fs.DirExists("created") {
		t.Error("创建后目录应存在")
	}
}

func TestListDirs(t *testing.T) {
	fs := newTestStorage(t)

	dirs, err := fs.ListDirs("stories")
	if err != nil {
		t.Fatalf("不存在的根目录不应报错: %v", err)
	}
	if dirs != nil {
		t.Errorf("不存在的根目录应返回nil: %v", dirs)
	}

	fs.EnsureDir("stories/alpha")
	fs.EnsureDir("stories/beta")
	fs.SaveTextFile("stories", "stray.txt", []byte("x"))

	dirs, err = fs.ListDirs("stories")
	if err != nil {
		t.Fatalf("列目录失败: %v", err)
	}
	if len(dirs) != 2 {
		t.Errorf("期望2个子目录（文件被忽略），得到 %v", dirs)
	}
}
