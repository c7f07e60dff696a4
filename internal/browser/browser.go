// Package browser holds the file browser state and the operations that
// change it: navigation, listing, sort, selection, search and mutations.
//
// A Browser is safe for concurrent use. Readers observe state only
// through Snapshot and Subscribe.
package browser

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/lmaocloud/cloudbrowser/pkg/models"
	"github.com/lmaocloud/cloudbrowser/pkg/tree"
)

// API is the subset of the REST client the browser drives.
type API interface {
	ListFiles(ctx context.Context, dir string, sort models.SortOrder) ([]models.FileEntry, error)
	CreateFolder(ctx context.Context, parent, name string) error
	CreateTextFile(ctx context.Context, parent, name, content string) error
	Delete(ctx context.Context, id models.ID) error
	Rename(ctx context.Context, id models.ID, newName string) error
	Move(ctx context.Context, sourcePath, targetPath string) error
	Share(ctx context.Context, path string, expireHours int) (*models.ShareInfo, error)
	ListTrash(ctx context.Context) ([]models.FileEntry, error)
	Restore(ctx context.Context, id models.ID) error
	PermanentlyDelete(ctx context.Context, id models.ID) error
}

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a fire-and-forget message for the user.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier shows notifications.
type Notifier interface {
	Notify(n Notification)
}

// Confirmer asks the user a yes/no question and blocks until answered.
type Confirmer interface {
	Confirm(ctx context.Context, title, message string) bool
}

// Prefs persists browser preferences across sessions.
type Prefs interface {
	ViewMode(ctx context.Context) (models.ViewMode, error)
	SetViewMode(ctx context.Context, mode models.ViewMode) error
	SetLastPath(ctx context.Context, p string) error
}

// Status is the listing state.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusError:
		return "error"
	}
	return "unknown"
}

var (
	// ErrSuperseded is returned by a listing fetch whose result was
	// discarded because a newer fetch was started.
	ErrSuperseded = errors.New("listing superseded by a newer request")
	// ErrDeclined is returned when the user declined a confirmation.
	ErrDeclined = errors.New("operation declined")
)

// DefaultShareHours is the share link lifetime used when none is given.
const DefaultShareHours = 24

// Config configures a Browser.
type Config struct {
	API       API
	Notifier  Notifier
	Confirmer Confirmer
	Prefs     Prefs // optional
	Logger    *zap.Logger

	// Sort is the initial sort order. Empty means models.DefaultSort.
	Sort models.SortOrder

	// BatchConcurrency bounds parallel calls of batch operations.
	BatchConcurrency int
	ShareHours       int
}

// overlay is a client-side filtered view over the listing.
type overlay struct {
	query    string
	category models.Category
	entries  []models.FileEntry
}

// Browser is the file browser controller. Create one per session with New.
type Browser struct {
	api        API
	notifier   Notifier
	confirmer  Confirmer
	prefs      Prefs
	log        *zap.Logger
	batchLimit int
	shareHours int

	// mutate serializes mutating operations and the refresh they trigger.
	mutate sync.Mutex

	mu         sync.Mutex
	path       string
	sort       models.SortOrder
	view       models.ViewMode
	files      []models.FileEntry
	listedPath string // path that produced files
	selected   map[models.ID]struct{}
	overlay    *overlay
	status     Status
	lastErr    error
	gen        uint64
	cancel     context.CancelFunc
	subs       map[int]func(Snapshot)
	nextSub    int
}

// New creates a browser positioned at the root. No fetch is made until
// Start or a navigation call.
func New(cfg Config) *Browser {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	if cfg.ShareHours <= 0 {
		cfg.ShareHours = DefaultShareHours
	}
	if cfg.Sort == "" {
		cfg.Sort = models.DefaultSort
	}
	return &Browser{
		api:        cfg.API,
		notifier:   cfg.Notifier,
		confirmer:  cfg.Confirmer,
		prefs:      cfg.Prefs,
		log:        cfg.Logger,
		batchLimit: cfg.BatchConcurrency,
		shareHours: cfg.ShareHours,
		path:       tree.Root,
		sort:       cfg.Sort,
		view:       models.DefaultView,
		selected:   make(map[models.ID]struct{}),
		subs:       make(map[int]func(Snapshot)),
	}
}

// Start restores the saved view mode and loads the listing of dir.
func (b *Browser) Start(ctx context.Context, dir string) error {
	if b.prefs != nil {
		mode, err := b.prefs.ViewMode(ctx)
		switch {
		case err != nil:
			b.log.Warn("failed to load view mode", zap.Error(err))
		case mode != "":
			b.mu.Lock()
			b.view = mode
			b.mu.Unlock()
		}
	}
	if tree.Clean(dir) == "" {
		dir = tree.Root
	}
	return b.NavigateTo(ctx, dir)
}

// Close cancels any in-flight listing fetch.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// Snapshot is an immutable copy of the browser state.
type Snapshot struct {
	Path        string
	Sort        models.SortOrder
	View        models.ViewMode
	Status      Status
	Err         error
	Generation  uint64
	Listing     []models.FileEntry // last listing of Path
	Files       []models.FileEntry // displayed entries, overlay applied
	Selected    []models.FileEntry // in displayed order
	Searching   bool
	Query       string
	Category    models.Category
	Breadcrumbs []tree.Crumb
}

// IsSelected reports whether the entry with id is selected.
func (s Snapshot) IsSelected(id models.ID) bool {
	for i := range s.Selected {
		if s.Selected[i].ID == id {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current state.
func (b *Browser) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Browser) snapshotLocked() Snapshot {
	displayed := b.displayedLocked()
	s := Snapshot{
		Path:        b.path,
		Sort:        b.sort,
		View:        b.view,
		Status:      b.status,
		Err:         b.lastErr,
		Generation:  b.gen,
		Listing:     append([]models.FileEntry(nil), b.files...),
		Files:       append([]models.FileEntry(nil), displayed...),
		Breadcrumbs: b.breadcrumbsLocked(),
	}
	for _, e := range displayed {
		if _, ok := b.selected[e.ID]; ok {
			s.Selected = append(s.Selected, e)
		}
	}
	if b.overlay != nil {
		s.Searching = true
		s.Query = b.overlay.query
		s.Category = b.overlay.category
	}
	return s
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that made the change. The returned function
// removes the subscription.
func (b *Browser) Subscribe(fn func(Snapshot)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// publish sends the current snapshot to subscribers. Must be called
// without the lock held.
func (b *Browser) publish() {
	b.mu.Lock()
	if len(b.subs) == 0 {
		b.mu.Unlock()
		return
	}
	snap := b.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// displayedLocked returns the entries currently shown.
func (b *Browser) displayedLocked() []models.FileEntry {
	if b.overlay != nil {
		return b.overlay.entries
	}
	return b.files
}

// SetView switches between grid and list layout and saves the choice.
func (b *Browser) SetView(ctx context.Context, mode models.ViewMode) error {
	if _, err := models.ParseViewMode(string(mode)); err != nil {
		return b.invalid("Change view", err.Error())
	}

	b.mu.Lock()
	b.view = mode
	b.mu.Unlock()
	b.publish()

	if b.prefs != nil {
		if err := b.prefs.SetViewMode(ctx, mode); err != nil {
			b.log.Warn("failed to save view mode", zap.Error(err))
		}
	}
	return nil
}

func (b *Browser) notify(level Level, title, message string) {
	b.notifier.Notify(Notification{Level: level, Title: title, Message: message})
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}
