// Package upload coordinates file uploads and tracks per-file progress.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lmaocloud/cloudbrowser/internal/browser"
	"github.com/lmaocloud/cloudbrowser/internal/metrics"
	"github.com/lmaocloud/cloudbrowser/internal/prefs"
	"github.com/lmaocloud/cloudbrowser/pkg/client"
)

// Status is the state of one uploaded file.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Done reports whether s is final.
func (s Status) Done() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

const (
	// SimulatedCap bounds simulated progress. Only a real completion
	// moves an item past it.
	SimulatedCap = 95.0

	// inFlightMax bounds real progress until the server has answered.
	inFlightMax = 99.0

	defaultTick = 300 * time.Millisecond
)

// Progress is the state of one file in an upload batch.
type Progress struct {
	ID      string
	Batch   string
	Name    string
	Size    int64
	Percent float64
	Status  Status
	Err     error
}

// Uploader sends files to the server.
type Uploader interface {
	UploadFiles(ctx context.Context, dir string, files []client.UploadSource, progress client.ProgressFunc) ([]client.UploadResult, error)
}

// Refresher is told when an upload has finished.
type Refresher interface {
	UploadComplete(ctx context.Context) error
}

// History persists finished uploads.
type History interface {
	AddHistory(ctx context.Context, entries ...prefs.HistoryEntry) error
}

// Config configures a Coordinator.
type Config struct {
	Uploader  Uploader
	Refresher Refresher       // optional
	History   History         // optional
	Notifier  browser.Notifier // optional
	Logger    *zap.Logger

	// Simulate advances progress on a timer instead of waiting for
	// transport events only.
	Simulate bool
	Tick     time.Duration
}

type batch struct {
	cancel    context.CancelFunc
	cancelled bool
}

// Coordinator runs upload batches. All methods are safe for concurrent use.
type Coordinator struct {
	up       Uploader
	refresh  Refresher
	history  History
	notifier browser.Notifier
	log      *zap.Logger
	simulate bool
	tick     time.Duration

	mu      sync.Mutex
	items   map[string]*Progress
	order   []string
	batches map[string]*batch
	subs    map[chan Progress]struct{}
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	return &Coordinator{
		up:       cfg.Uploader,
		refresh:  cfg.Refresher,
		history:  cfg.History,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		simulate: cfg.Simulate,
		tick:     cfg.Tick,
		items:    make(map[string]*Progress),
		batches:  make(map[string]*batch),
		subs:     make(map[chan Progress]struct{}),
	}
}

// Subscribe returns a channel receiving every progress change.
// The caller must call Unsubscribe when done.
func (c *Coordinator) Subscribe() chan Progress {
	ch := make(chan Progress, 64)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (c *Coordinator) Unsubscribe(ch chan Progress) {
	c.mu.Lock()
	if _, ok := c.subs[ch]; ok {
		delete(c.subs, ch)
		close(ch)
	}
	c.mu.Unlock()
}

// publishLocked sends p to all subscribers, dropping it for slow consumers.
func (c *Coordinator) publishLocked(p Progress) {
	for ch := range c.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Items returns all tracked files in the order they were added.
func (c *Coordinator) Items() []Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Progress, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.items[id])
	}
	return out
}

// Item returns the progress of one file.
func (c *Coordinator) Item(id string) (Progress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[id]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// ClearFinished forgets every file whose upload has ended.
func (c *Coordinator) ClearFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.order[:0]
	for _, id := range c.order {
		if c.items[id].Status.Done() {
			delete(c.items, id)
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
}

// Cancel stops the upload containing the file or batch id. All files of a
// batch travel in one request, so the whole batch is cancelled. It reports
// whether anything was in flight.
func (c *Coordinator) Cancel(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.items[id]; ok {
		id = p.Batch
	}
	b, ok := c.batches[id]
	if !ok {
		return false
	}
	b.cancelled = true
	b.cancel()
	return true
}

// Upload sends files to dir as one batch and blocks until it ends. On
// success the refresher is told and the outcome is recorded. The returned
// error is the upload's own failure; a failed refresh is only logged.
func (c *Coordinator) Upload(ctx context.Context, dir string, files []client.UploadSource) ([]client.UploadResult, error) {
	if len(files) == 0 {
		c.notify(browser.LevelWarning, "Upload", "No files selected")
		return nil, client.Validation("upload", "no files selected")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batchID := uuid.NewString()
	ids := make([]string, len(files))
	var total int64

	c.mu.Lock()
	c.batches[batchID] = &batch{cancel: cancel}
	for i, f := range files {
		p := &Progress{ID: uuid.NewString(), Batch: batchID, Name: f.Name, Size: f.Size, Status: StatusPending}
		ids[i] = p.ID
		total += f.Size
		c.items[p.ID] = p
		c.order = append(c.order, p.ID)
		c.publishLocked(*p)
	}
	c.mu.Unlock()

	c.log.Debug("upload started", zap.String("batch", batchID), zap.String("dir", dir), zap.Int("files", len(files)), zap.Int64("bytes", total))
	c.setStatus(ids, StatusUploading, nil)

	if c.simulate {
		stop := c.simulateProgress(ids)
		defer stop()
	}

	results, err := c.up.UploadFiles(ctx, dir, files, c.realProgress(ids, files))

	c.mu.Lock()
	cancelled := c.batches[batchID].cancelled
	delete(c.batches, batchID)
	c.mu.Unlock()

	if err != nil {
		if cancelled || errors.Is(err, context.Canceled) {
			c.finishCancelled(ctx, dir, ids, files)
			return nil, err
		}
		c.finishFailed(ctx, dir, ids, files, total, err)
		return nil, err
	}

	c.finishSucceeded(ctx, dir, ids, files, total, results)
	return results, nil
}

// realProgress spreads the byte count of the multipart stream over the
// files in the order they are written.
func (c *Coordinator) realProgress(ids []string, files []client.UploadSource) client.ProgressFunc {
	offsets := make([]int64, len(files))
	var off int64
	for i, f := range files {
		offsets[i] = off
		off += f.Size
	}
	return func(sent, total int64) {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, id := range ids {
			size := files[i].Size
			if size <= 0 {
				continue
			}
			done := sent - offsets[i]
			if done <= 0 {
				continue
			}
			if done > size {
				done = size
			}
			c.advanceLocked(id, float64(done)*100/float64(size), inFlightMax)
		}
	}
}

// simulateProgress advances every unfinished file on each tick until the
// returned stop function is called.
func (c *Coordinator) simulateProgress(ids []string) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				for _, id := range ids {
					if p, ok := c.items[id]; ok {
						c.advanceLocked(id, NextSimulated(p.Percent), SimulatedCap)
					}
				}
				c.mu.Unlock()
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// NextSimulated returns the next simulated percentage after p. Each step
// covers half of the distance left to SimulatedCap, so the result never
// reaches the cap.
func NextSimulated(p float64) float64 {
	if p < 0 {
		p = 0
	}
	if p >= SimulatedCap {
		return p
	}
	return p + (SimulatedCap-p)/2
}

// advanceLocked raises the percentage of an uploading file to pct,
// bounded by limit. Progress never moves backwards.
func (c *Coordinator) advanceLocked(id string, pct, limit float64) {
	p, ok := c.items[id]
	if !ok || p.Status != StatusUploading {
		return
	}
	if pct > limit {
		pct = limit
	}
	if pct <= p.Percent {
		return
	}
	p.Percent = pct
	c.publishLocked(*p)
}

func (c *Coordinator) setStatus(ids []string, s Status, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		p, ok := c.items[id]
		if !ok {
			continue
		}
		p.Status = s
		p.Err = err
		if s == StatusSuccess {
			p.Percent = 100
		}
		c.publishLocked(*p)
	}
}

func (c *Coordinator) finishSucceeded(ctx context.Context, dir string, ids []string, files []client.UploadSource, total int64, results []client.UploadResult) {
	var ok, failed []string
	entries := make([]prefs.HistoryEntry, 0, len(files))
	for i, id := range ids {
		entry := prefs.HistoryEntry{Name: files[i].Name, Dir: dir, Size: files[i].Size, Status: prefs.HistorySuccess}
		if i < len(results) && !results[i].Success && results[i].Message != "" {
			msg := results[i].Message
			c.setStatus([]string{id}, StatusError, errors.New(msg))
			entry.Status, entry.Message = prefs.HistoryError, msg
			failed = append(failed, files[i].Name)
		} else {
			c.setStatus([]string{id}, StatusSuccess, nil)
			ok = append(ok, files[i].Name)
		}
		entries = append(entries, entry)
	}
	c.record(ctx, entries)
	metrics.RecordUpload(total, len(failed) == 0)
	c.log.Info("upload finished", zap.String("dir", dir), zap.Int("succeeded", len(ok)), zap.Int("failed", len(failed)))

	if len(ok) > 0 {
		c.notify(browser.LevelSuccess, "Upload complete", fmt.Sprintf("Uploaded %d file(s) to %s", len(ok), dir))
	}
	if len(failed) > 0 {
		c.notify(browser.LevelError, "Upload failed", fmt.Sprintf("%d file(s) were rejected: %s", len(failed), failed[0]))
	}

	if c.refresh != nil {
		if err := c.refresh.UploadComplete(ctx); err != nil {
			c.log.Debug("refresh after upload failed", zap.Error(err))
		}
	}
}

func (c *Coordinator) finishFailed(ctx context.Context, dir string, ids []string, files []client.UploadSource, total int64, err error) {
	c.setStatus(ids, StatusError, err)
	msg := browser.Describe(err)
	c.record(ctx, historyFor(dir, files, prefs.HistoryError, msg))
	metrics.RecordUpload(total, false)
	c.log.Warn("upload failed", zap.String("dir", dir), zap.Error(err))
	c.notify(browser.LevelError, "Upload failed", msg)
}

func (c *Coordinator) finishCancelled(ctx context.Context, dir string, ids []string, files []client.UploadSource) {
	c.setStatus(ids, StatusCancelled, context.Canceled)
	// ctx is already cancelled here.
	c.record(context.WithoutCancel(ctx), historyFor(dir, files, prefs.HistoryCancelled, "cancelled"))
	c.notify(browser.LevelWarning, "Upload cancelled", fmt.Sprintf("Cancelled upload of %d file(s)", len(files)))
}

func historyFor(dir string, files []client.UploadSource, status prefs.HistoryStatus, msg string) []prefs.HistoryEntry {
	entries := make([]prefs.HistoryEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, prefs.HistoryEntry{Name: f.Name, Dir: dir, Size: f.Size, Status: status, Message: msg})
	}
	return entries
}

func (c *Coordinator) record(ctx context.Context, entries []prefs.HistoryEntry) {
	if c.history == nil {
		return
	}
	if err := c.history.AddHistory(ctx, entries...); err != nil {
		c.log.Warn("failed to save upload history", zap.Error(err))
	}
}

func (c *Coordinator) notify(level browser.Level, title, msg string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(browser.Notification{Level: level, Title: title, Message: msg})
}
