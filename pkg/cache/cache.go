// Package cache keeps downloaded file content on local disk, keyed by the
// remote file ID and its modification time.
package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lmaocloud/cloudbrowser/pkg/models"
)

const indexFile = "index.json"

// Entry describes one cached download.
type Entry struct {
	FileID     models.ID `json:"file_id"`
	Name       string    `json:"name"`
	Version    int64     `json:"version"` // remote modification time, unix millis
	LocalPath  string    `json:"local_path"`
	Size       int64     `json:"size"`
	LastAccess time.Time `json:"last_access"`
	Pinned     bool      `json:"pinned"`
}

// Cache manages locally cached downloads.
type Cache struct {
	dir     string
	maxSize int64

	mu      sync.RWMutex
	entries map[models.ID]*Entry
	size    int64
}

// New opens the cache in dir and restores its index. Index entries whose
// content file disappeared are dropped.
func New(dir string, maxSize int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &Cache{
		dir:     dir,
		maxSize: maxSize,
		entries: make(map[models.ID]*Entry),
	}
	if err := c.loadIndex(); err != nil {
		return nil, err
	}
	return c, nil
}

// VersionOf returns the cache version of a remote entry.
func VersionOf(e models.FileEntry) int64 {
	if e.ModifiedTime.IsZero() {
		return e.CreateTime.UnixMilli()
	}
	return e.ModifiedTime.UnixMilli()
}

// Get returns the local path of e if its current version is cached.
// A cached copy of an older version is discarded.
func (c *Cache) Get(e models.FileEntry) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[e.ID]
	if !ok {
		return "", false
	}
	if entry.Version != VersionOf(e) {
		c.remove(e.ID, entry)
		return "", false
	}
	entry.LastAccess = time.Now()
	return entry.LocalPath, true
}

// Put stores the content of e read from r. size is a hint used to make
// room before writing; pass -1 when unknown.
// Content is written atomically (temp file then rename).
func (c *Cache) Put(e models.FileEntry, r io.Reader, size int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[e.ID]; ok {
		c.remove(e.ID, old)
	}
	if size > 0 {
		c.makeRoom(size)
	}

	localPath := filepath.Join(c.dir, fileName(e.ID))
	tempPath := localPath + ".tmp"

	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("write content: %w", err)
	}
	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("rename temp file: %w", err)
	}

	c.entries[e.ID] = &Entry{
		FileID:     e.ID,
		Name:       e.Name,
		Version:    VersionOf(e),
		LocalPath:  localPath,
		Size:       written,
		LastAccess: time.Now(),
	}
	c.size += written
	c.makeRoom(0)

	return localPath, c.saveIndex()
}

// Evict removes a file from the cache. Pinned files are kept.
func (c *Cache) Evict(id models.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil
	}
	if entry.Pinned {
		return fmt.Errorf("cannot evict pinned file: %s", id)
	}
	c.remove(id, entry)
	return c.saveIndex()
}

// SetPinned marks a cached file as never evicted, or releases it.
func (c *Cache) SetPinned(id models.ID, pinned bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return fmt.Errorf("file not cached: %s", id)
	}
	entry.Pinned = pinned
	return c.saveIndex()
}

// Stats returns cache statistics.
func (c *Cache) Stats() (size, maxSize int64, count int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size, c.maxSize, len(c.entries)
}

// List returns all cached entries, most recently used first.
func (c *Cache) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccess.After(out[j].LastAccess)
	})
	return out
}

// Clear removes all non-pinned files and returns how many were removed.
func (c *Cache) Clear() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for id, entry := range c.entries {
		if entry.Pinned {
			continue
		}
		c.remove(id, entry)
		count++
	}
	return count, c.saveIndex()
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// makeRoom evicts least recently used entries until extra more bytes fit.
// Must be called with lock held.
func (c *Cache) makeRoom(extra int64) {
	for c.size+extra > c.maxSize {
		if !c.evictOldest() {
			return
		}
	}
}

// evictOldest removes the least recently used non-pinned file.
// Must be called with lock held.
func (c *Cache) evictOldest() bool {
	var oldest *Entry
	for _, entry := range c.entries {
		if entry.Pinned {
			continue
		}
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
		}
	}
	if oldest == nil {
		return false
	}
	c.remove(oldest.FileID, oldest)
	return true
}

func (c *Cache) remove(id models.ID, entry *Entry) {
	os.Remove(entry.LocalPath)
	c.size -= entry.Size
	delete(c.entries, id)
}

func (c *Cache) saveIndex() error {
	list := make([]*Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		list = append(list, entry)
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	tmp := filepath.Join(c.dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(c.dir, indexFile))
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var list []*Entry
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	for _, entry := range list {
		info, err := os.Stat(entry.LocalPath)
		if err != nil {
			continue
		}
		entry.Size = info.Size()
		c.entries[entry.FileID] = entry
		c.size += entry.Size
	}
	return nil
}

// fileName maps an ID to a safe file name.
func fileName(id models.ID) string {
	return "f_" + strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(id.String())
}
