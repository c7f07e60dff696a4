package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lmaocloud/cloudbrowser/pkg/models"
)

var baseTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func remote(id string, modified time.Time) models.FileEntry {
	return models.FileEntry{
		ID:           models.ID(id),
		Name:         id + ".bin",
		Type:         models.TypeFile,
		ModifiedTime: models.Timestamp{Time: modified},
	}
}

func TestCache_PutAndGet(t *testing.T) {
	c, err := New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e := remote("1", baseTime)
	content := []byte("hello world")
	path, err := c.Put(e, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("content mismatch: got %q, want %q", data, content)
	}

	gotPath, ok := c.Get(e)
	if !ok {
		t.Fatal("Get returned not ok")
	}
	if gotPath != path {
		t.Errorf("Get path mismatch: got %q, want %q", gotPath, path)
	}
}

func TestCache_StaleVersionDiscarded(t *testing.T) {
	c, err := New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, err := c.Put(remote("1", baseTime), bytes.NewReader([]byte("v1")), 2)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, ok := c.Get(remote("1", baseTime.Add(time.Minute))); ok {
		t.Fatal("Get returned a copy of an older version")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("stale content still on disk")
	}
	if _, _, count := c.Stats(); count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestCache_Evict(t *testing.T) {
	c, err := New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e := remote("evictme", baseTime)
	path, _ := c.Put(e, bytes.NewReader([]byte("test")), 4)

	if err := c.Evict(e.ID); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if _, ok := c.Get(e); ok {
		t.Error("file still cached after evict")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists on disk after evict")
	}
}

func TestCache_Pinned(t *testing.T) {
	c, err := New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e := remote("pinned", baseTime)
	c.Put(e, bytes.NewReader([]byte("pinme")), 5)

	if err := c.SetPinned(e.ID, true); err != nil {
		t.Fatalf("SetPinned: %v", err)
	}
	if err := c.Evict(e.ID); err == nil {
		t.Error("Evict succeeded on pinned file")
	}
	if err := c.SetPinned(e.ID, false); err != nil {
		t.Fatalf("SetPinned: %v", err)
	}
	if err := c.Evict(e.ID); err != nil {
		t.Errorf("Evict after unpin: %v", err)
	}
	if err := c.SetPinned("missing", true); err == nil {
		t.Error("SetPinned succeeded on uncached file")
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c, err := New(t.TempDir(), 100)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	f1, f2, f3 := remote("file1", baseTime), remote("file2", baseTime), remote("file3", baseTime)

	c.Put(f1, bytes.NewReader(make([]byte, 30)), 30)
	time.Sleep(10 * time.Millisecond)
	c.Put(f2, bytes.NewReader(make([]byte, 30)), 30)
	time.Sleep(10 * time.Millisecond)

	// Touch file1 so file2 becomes least recently used.
	c.Get(f1)

	c.Put(f3, bytes.NewReader(make([]byte, 50)), 50)

	if _, ok := c.Get(f2); ok {
		t.Error("file2 should have been evicted")
	}
	if _, ok := c.Get(f1); !ok {
		t.Error("file1 should not have been evicted")
	}
	if _, ok := c.Get(f3); !ok {
		t.Error("file3 should be cached")
	}
}

func TestCache_UnknownSizeStillBounded(t *testing.T) {
	c, err := New(t.TempDir(), 50)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Put(remote("a", baseTime), bytes.NewReader(make([]byte, 40)), -1)
	time.Sleep(10 * time.Millisecond)
	c.Put(remote("b", baseTime), bytes.NewReader(make([]byte, 40)), -1)

	size, _, count := c.Stats()
	if size > 50 || count != 1 {
		t.Errorf("stats after overflow: size=%d count=%d", size, count)
	}
}

func TestCache_Stats(t *testing.T) {
	maxSize := int64(1 << 20)
	c, err := New(t.TempDir(), maxSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	size, max, count := c.Stats()
	if size != 0 || count != 0 {
		t.Errorf("initial stats wrong: size=%d, count=%d", size, count)
	}
	if max != maxSize {
		t.Errorf("max size wrong: got %d, want %d", max, maxSize)
	}

	c.Put(remote("stats1", baseTime), bytes.NewReader(make([]byte, 100)), 100)

	size, _, count = c.Stats()
	if size != 100 || count != 1 {
		t.Errorf("after Put stats wrong: size=%d, count=%d", size, count)
	}
}

func TestCache_ClearKeepsPinned(t *testing.T) {
	c, err := New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a, b := remote("a", baseTime), remote("b", baseTime)
	c.Put(a, bytes.NewReader([]byte("a")), 1)
	c.Put(b, bytes.NewReader([]byte("b")), 1)
	c.SetPinned(b.ID, true)

	cleared, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if cleared != 1 {
		t.Errorf("Clear returned %d, want 1", cleared)
	}
	if _, ok := c.Get(a); ok {
		t.Error("unpinned file not cleared")
	}
	if _, ok := c.Get(b); !ok {
		t.Error("pinned file was cleared")
	}
}

func TestCache_IndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	kept, lost := remote("kept", baseTime), remote("lost", baseTime)
	c.Put(kept, bytes.NewReader([]byte("keep")), 4)
	lostPath, _ := c.Put(lost, bytes.NewReader([]byte("lose")), 4)
	c.SetPinned(kept.ID, true)
	os.Remove(lostPath)

	reopened, err := New(dir, 1<<20)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := reopened.Get(kept); !ok {
		t.Error("kept entry missing after reopen")
	}
	if _, ok := reopened.Get(lost); ok {
		t.Error("entry without content survived reopen")
	}

	list := reopened.List()
	if len(list) != 1 || !list[0].Pinned {
		t.Errorf("List after reopen = %+v", list)
	}
}

func TestCache_AtomicWrite(t *testing.T) {
	c, err := New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, err := c.Put(remote("atomic", baseTime), bytes.NewReader([]byte("atomic content")), 14)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error(".tmp file should not exist after Put")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("final file should exist: %v", err)
	}
}

func TestNew_CreatesDir(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "subdir", "cache")

	c, err := New(cacheDir, 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Dir() != cacheDir {
		t.Errorf("Dir() = %q, want %q", c.Dir(), cacheDir)
	}
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Error("cache directory was not created")
	}
}

func TestFileName_Sanitized(t *testing.T) {
	if got := fileName("../x/y"); filepath.Base(got) != got {
		t.Errorf("fileName produced a path: %q", got)
	}
}
