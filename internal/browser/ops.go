package browser

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lmaocloud/cloudbrowser/pkg/models"
	"github.com/lmaocloud/cloudbrowser/pkg/tree"
)

// Mutations never patch the listing in place. On success they notify and
// re-fetch the current folder; on failure they notify and leave the state
// untouched. They are serialized against each other.

// CreateFolder creates a folder in the current folder.
func (b *Browser) CreateFolder(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return b.invalid("Create folder", "Folder name is required")
	}

	b.mutate.Lock()
	defer b.mutate.Unlock()

	if err := b.api.CreateFolder(ctx, b.CurrentPath(), name); err != nil {
		return b.fail("Create folder failed", err)
	}
	b.notify(LevelSuccess, "Folder created", fmt.Sprintf("Created folder %s", name))
	b.refreshAfter(ctx)
	return nil
}

// CreateTextFile creates a text file in the current folder.
func (b *Browser) CreateTextFile(ctx context.Context, name, content string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return b.invalid("Create file", "File name is required")
	}

	b.mutate.Lock()
	defer b.mutate.Unlock()

	if err := b.api.CreateTextFile(ctx, b.CurrentPath(), name, content); err != nil {
		return b.fail("Create file failed", err)
	}
	b.notify(LevelSuccess, "File created", fmt.Sprintf("Created file %s", name))
	b.refreshAfter(ctx)
	return nil
}

// RenamedName returns the name e gets when renamed to newBase: files keep
// their extension, folders take newBase as is.
func RenamedName(e models.FileEntry, newBase string) string {
	if e.IsFolder() {
		return newBase
	}
	_, ext := tree.SplitExt(e.Name)
	return newBase + ext
}

// Rename renames e. For files the extension is kept and newBase replaces
// only the part before it.
func (b *Browser) Rename(ctx context.Context, e models.FileEntry, newBase string) error {
	newBase = strings.TrimSpace(newBase)
	if newBase == "" {
		return b.invalid("Rename", "Name cannot be empty")
	}
	newName := RenamedName(e, newBase)

	b.mutate.Lock()
	defer b.mutate.Unlock()

	if err := b.api.Rename(ctx, e.ID, newName); err != nil {
		return b.fail("Rename failed", err)
	}
	b.notify(LevelSuccess, "Renamed", fmt.Sprintf("Renamed %s to %s", e.Name, newName))
	b.refreshAfter(ctx)
	return nil
}

// Move moves entries into target, one backend call per entry.
func (b *Browser) Move(ctx context.Context, entries []models.FileEntry, target string) error {
	if len(entries) == 0 {
		return b.invalid("Move", "No items selected")
	}
	target = tree.Clean(target)
	if target == "" {
		return b.invalid("Move", "Target folder is required")
	}
	for _, e := range entries {
		if e.IsFolder() && tree.IsWithin(target, entryPath(e, b.CurrentPath())) {
			return b.invalid("Move", fmt.Sprintf("Cannot move %s into itself", e.Name))
		}
	}

	b.mutate.Lock()
	defer b.mutate.Unlock()

	dir := b.CurrentPath()
	done, err := b.batch(ctx, "move", entries, func(ctx context.Context, e models.FileEntry) error {
		return b.api.Move(ctx, entryPath(e, dir), target)
	})
	if done > 0 {
		b.notify(LevelSuccess, "Moved", fmt.Sprintf("Moved %d item(s) to %s", done, target))
		b.refreshAfter(ctx)
	}
	if err != nil {
		return b.fail("Move failed", err)
	}
	return nil
}

// Delete moves entries to the trash after the user confirms.
func (b *Browser) Delete(ctx context.Context, entries []models.FileEntry) error {
	if len(entries) == 0 {
		return b.invalid("Delete", "No items selected")
	}
	if !b.confirm(ctx, "Confirm delete", fmt.Sprintf("Move %d item(s) to the trash?", len(entries))) {
		return ErrDeclined
	}

	b.mutate.Lock()
	defer b.mutate.Unlock()

	done, err := b.batch(ctx, "delete", entries, func(ctx context.Context, e models.FileEntry) error {
		return b.api.Delete(ctx, e.ID)
	})
	if done > 0 {
		b.notify(LevelSuccess, "Deleted", fmt.Sprintf("Moved %d file(s) to the trash", done))
		b.refreshAfter(ctx)
	}
	if err != nil {
		return b.fail("Delete failed", err)
	}
	return nil
}

// Share creates a share link for e. hours <= 0 uses the configured default.
// Sharing does not change the listing, so nothing is re-fetched.
func (b *Browser) Share(ctx context.Context, e models.FileEntry, hours int) (*models.ShareInfo, error) {
	if hours <= 0 {
		hours = b.shareHours
	}

	info, err := b.api.Share(ctx, entryPath(e, b.CurrentPath()), hours)
	if err != nil {
		return nil, b.fail("Share failed", err)
	}
	b.notify(LevelSuccess, "Share link created", info.URL)
	return info, nil
}

// Trash returns the entries in the trash.
func (b *Browser) Trash(ctx context.Context) ([]models.FileEntry, error) {
	entries, err := b.api.ListTrash(ctx)
	if err != nil {
		return nil, b.fail("Failed to load trash", err)
	}
	return entries, nil
}

// Restore moves trash entries back to where they were deleted from.
func (b *Browser) Restore(ctx context.Context, entries []models.FileEntry) error {
	if len(entries) == 0 {
		return b.invalid("Restore", "No items selected")
	}

	b.mutate.Lock()
	defer b.mutate.Unlock()

	done, err := b.batch(ctx, "restore", entries, func(ctx context.Context, e models.FileEntry) error {
		return b.api.Restore(ctx, e.ID)
	})
	if done > 0 {
		b.notify(LevelSuccess, "Restored", fmt.Sprintf("Restored %d item(s)", done))
		b.refreshAfter(ctx)
	}
	if err != nil {
		return b.fail("Restore failed", err)
	}
	return nil
}

// PermanentlyDelete removes trash entries for good after the user confirms.
func (b *Browser) PermanentlyDelete(ctx context.Context, entries []models.FileEntry) error {
	if len(entries) == 0 {
		return b.invalid("Delete permanently", "No items selected")
	}
	if !b.confirm(ctx, "Confirm permanent delete", fmt.Sprintf("Permanently delete %d item(s)? This cannot be undone.", len(entries))) {
		return ErrDeclined
	}

	b.mutate.Lock()
	defer b.mutate.Unlock()

	done, err := b.batch(ctx, "permanent-delete", entries, func(ctx context.Context, e models.FileEntry) error {
		return b.api.PermanentlyDelete(ctx, e.ID)
	})
	if done > 0 {
		b.notify(LevelSuccess, "Deleted", fmt.Sprintf("Permanently deleted %d item(s)", done))
	}
	if err != nil {
		return b.fail("Delete failed", err)
	}
	return nil
}

// UploadComplete is called by the upload coordinator when an upload ends.
func (b *Browser) UploadComplete(ctx context.Context) error {
	b.mutate.Lock()
	defer b.mutate.Unlock()
	return b.Refresh(ctx)
}

// batch runs fn for every entry with bounded concurrency. It returns the
// number of successes and a *BatchError when any entry failed.
func (b *Browser) batch(ctx context.Context, op string, entries []models.FileEntry, fn func(context.Context, models.FileEntry) error) (int, error) {
	errs := make([]error, len(entries))

	var g errgroup.Group
	g.SetLimit(b.batchLimit)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			errs[i] = fn(ctx, e)
			return nil
		})
	}
	g.Wait()

	be := &BatchError{Op: op}
	for i, err := range errs {
		if err != nil {
			be.Failed = append(be.Failed, ItemError{Name: entries[i].Name, Err: err})
		} else {
			be.Succeeded++
		}
	}
	if len(be.Failed) > 0 {
		b.log.Debug("batch partially failed", zap.String("op", op), zap.Int("succeeded", be.Succeeded), zap.Int("failed", len(be.Failed)))
		return be.Succeeded, be
	}
	return be.Succeeded, nil
}

func (b *Browser) confirm(ctx context.Context, title, message string) bool {
	if b.confirmer == nil {
		return false
	}
	return b.confirmer.Confirm(ctx, title, message)
}

// refreshAfter re-fetches after a successful mutation. Its own failure is
// reported by the refresh and does not fail the mutation.
func (b *Browser) refreshAfter(ctx context.Context) {
	if err := b.Refresh(ctx); err != nil {
		b.log.Debug("refresh after mutation failed", zap.Error(err))
	}
}

// entryPath returns the full path of e, deriving it from dir when the
// backend did not send one.
func entryPath(e models.FileEntry, dir string) string {
	if tree.IsAbs(e.Path) {
		return e.Path
	}
	return tree.BuildChildPath(dir, e.Name)
}
