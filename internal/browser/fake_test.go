package browser

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lmaocloud/cloudbrowser/pkg/client"
	"github.com/lmaocloud/cloudbrowser/pkg/models"
	"github.com/lmaocloud/cloudbrowser/pkg/protocol"
	"github.com/lmaocloud/cloudbrowser/pkg/tree"
)

// fakeAPI is an in-memory backend keyed by folder path.
type fakeAPI struct {
	mu      sync.Mutex
	dirs    map[string][]models.FileEntry
	trash   []models.FileEntry
	nextID  int
	calls   []string
	listErr error
	failIDs map[models.ID]error

	// listHook, when set, replaces the listing behavior.
	listHook func(ctx context.Context, dir string, order models.SortOrder) ([]models.FileEntry, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{dirs: map[string][]models.FileEntry{"/": {}}, nextID: 100, failIDs: map[models.ID]error{}}
}

func (f *fakeAPI) add(dir, name string, typ models.EntryType, size int64) models.FileEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e := models.FileEntry{
		ID:   models.ID(strconv.Itoa(f.nextID)),
		Name: name,
		Path: tree.BuildChildPath(dir, name),
		Type: typ,
		Size: size,
	}
	f.dirs[dir] = append(f.dirs[dir], e)
	if typ == models.TypeFolder {
		if _, ok := f.dirs[e.Path]; !ok {
			f.dirs[e.Path] = []models.FileEntry{}
		}
	}
	return e
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) countCalls(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) ListFiles(ctx context.Context, dir string, order models.SortOrder) ([]models.FileEntry, error) {
	f.mu.Lock()
	f.record("list " + dir + " " + string(order))
	hook, listErr := f.listHook, f.listErr
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, dir, order)
	}
	if listErr != nil {
		return nil, listErr
	}
	return f.snapshot(dir, order)
}

func (f *fakeAPI) snapshot(dir string, order models.SortOrder) ([]models.FileEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, ok := f.dirs[dir]
	if !ok {
		return nil, &client.Error{Op: "list", Kind: client.KindApplication, Status: 200, Code: protocol.CodeFileNotFound, Message: "directory not found"}
	}
	out := append([]models.FileEntry(nil), entries...)
	sortEntries(out, order)
	return out, nil
}

func sortEntries(entries []models.FileEntry, order models.SortOrder) {
	less := func(a, b models.FileEntry) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	switch order {
	case models.SortNameDesc:
		less = func(a, b models.FileEntry) bool { return strings.ToLower(a.Name) > strings.ToLower(b.Name) }
	case models.SortSizeAsc:
		less = func(a, b models.FileEntry) bool { return a.Size < b.Size }
	case models.SortSizeDesc:
		less = func(a, b models.FileEntry) bool { return a.Size > b.Size }
	case models.SortDateAsc:
		less = func(a, b models.FileEntry) bool { return a.ID < b.ID }
	case models.SortDateDesc:
		less = func(a, b models.FileEntry) bool { return a.ID > b.ID }
	}
	sort.SliceStable(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
}

func (f *fakeAPI) failFor(id models.ID) error {
	return f.failIDs[id]
}

func (f *fakeAPI) CreateFolder(ctx context.Context, parent, name string) error {
	f.mu.Lock()
	f.record("mkdir " + parent + " " + name)
	for _, e := range f.dirs[parent] {
		if e.Name == name {
			f.mu.Unlock()
			return &client.Error{Op: "create-folder", Kind: client.KindApplication, Status: 200, Code: protocol.CodeFileExists, Message: "file already exists"}
		}
	}
	f.mu.Unlock()
	f.add(parent, name, models.TypeFolder, 0)
	return nil
}

func (f *fakeAPI) CreateTextFile(ctx context.Context, parent, name, content string) error {
	f.mu.Lock()
	f.record("touch " + parent + " " + name)
	f.mu.Unlock()
	f.add(parent, name, models.TypeFile, int64(len(content)))
	return nil
}

func (f *fakeAPI) Delete(ctx context.Context, id models.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete " + string(id))
	if err := f.failFor(id); err != nil {
		return err
	}
	for dir, entries := range f.dirs {
		if i := tree.FindByID(entries, id); i >= 0 {
			f.trash = append(f.trash, entries[i])
			f.dirs[dir] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return &client.Error{Op: "delete", Kind: client.KindApplication, Code: protocol.CodeFileNotFound, Message: "file not found"}
}

func (f *fakeAPI) Rename(ctx context.Context, id models.ID, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("rename " + string(id) + " " + newName)
	for dir, entries := range f.dirs {
		if i := tree.FindByID(entries, id); i >= 0 {
			entries[i].Name = newName
			entries[i].Path = tree.BuildChildPath(dir, newName)
			return nil
		}
	}
	return &client.Error{Op: "rename", Kind: client.KindApplication, Code: protocol.CodeFileNotFound, Message: "file not found"}
}

func (f *fakeAPI) Move(ctx context.Context, sourcePath, targetPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("move " + sourcePath + " " + targetPath)
	dir := tree.Parent(sourcePath)
	entries := f.dirs[dir]
	i := tree.FindByName(entries, tree.Base(sourcePath))
	if i < 0 {
		return &client.Error{Op: "move", Kind: client.KindApplication, Code: protocol.CodeFileNotFound, Message: "file not found"}
	}
	if err := f.failFor(entries[i].ID); err != nil {
		return err
	}
	e := entries[i]
	f.dirs[dir] = append(entries[:i:i], entries[i+1:]...)
	e.Path = tree.BuildChildPath(targetPath, e.Name)
	f.dirs[targetPath] = append(f.dirs[targetPath], e)
	return nil
}

func (f *fakeAPI) Share(ctx context.Context, path string, hours int) (*models.ShareInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("share " + path)
	return &models.ShareInfo{Path: path, URL: "https://share.example/" + tree.Base(path), ExpireHours: hours}, nil
}

func (f *fakeAPI) ListTrash(ctx context.Context) ([]models.FileEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("trash")
	return append([]models.FileEntry(nil), f.trash...), nil
}

func (f *fakeAPI) Restore(ctx context.Context, id models.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("restore " + string(id))
	i := tree.FindByID(f.trash, id)
	if i < 0 {
		return &client.Error{Op: "restore", Kind: client.KindApplication, Code: protocol.CodeFileNotFound, Message: "file not found"}
	}
	e := f.trash[i]
	f.trash = append(f.trash[:i:i], f.trash[i+1:]...)
	dir := tree.Parent(e.Path)
	f.dirs[dir] = append(f.dirs[dir], e)
	return nil
}

func (f *fakeAPI) PermanentlyDelete(ctx context.Context, id models.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("purge " + string(id))
	i := tree.FindByID(f.trash, id)
	if i < 0 {
		return &client.Error{Op: "purge", Kind: client.KindApplication, Code: protocol.CodeFileNotFound, Message: "file not found"}
	}
	f.trash = append(f.trash[:i:i], f.trash[i+1:]...)
	return nil
}

// recorder collects notifications.
type recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

func (r *recorder) list() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

func (r *recorder) byLevel(l Level) []Notification {
	var out []Notification
	for _, n := range r.list() {
		if n.Level == l {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = nil
}

// answer is a Confirmer with a fixed reply.
type answer struct {
	yes   bool
	asked int
}

func (a *answer) Confirm(context.Context, string, string) bool {
	a.asked++
	return a.yes
}

// memPrefs is an in-memory Prefs.
type memPrefs struct {
	mu   sync.Mutex
	view models.ViewMode
	last string
}

func (p *memPrefs) ViewMode(context.Context) (models.ViewMode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view, nil
}

func (p *memPrefs) SetViewMode(_ context.Context, m models.ViewMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view = m
	return nil
}

func (p *memPrefs) SetLastPath(_ context.Context, s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = s
	return nil
}
