package browser

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lmaocloud/cloudbrowser/internal/metrics"
	"github.com/lmaocloud/cloudbrowser/pkg/models"
	"github.com/lmaocloud/cloudbrowser/pkg/tree"
)

// NavigateTo shows the folder at p. A blank p is ignored. The path changes
// before the fetch completes and is kept when the fetch fails.
func (b *Browser) NavigateTo(ctx context.Context, p string) error {
	p = tree.Clean(p)
	if p == "" {
		return nil
	}

	b.mu.Lock()
	b.overlay = nil
	b.path = p
	b.clearSelectionLocked()
	b.mu.Unlock()

	return b.load(ctx)
}

// NavigateIntoFolder opens a folder entry of the current listing.
func (b *Browser) NavigateIntoFolder(ctx context.Context, e models.FileEntry) error {
	if !e.IsFolder() {
		return b.invalid("Open folder", fmt.Sprintf("%s is not a folder", e.Name))
	}
	target := e.Path
	if !tree.IsAbs(target) {
		target = tree.BuildChildPath(b.CurrentPath(), e.Name)
	}
	return b.NavigateTo(ctx, target)
}

// NavigateUp shows the parent of the current folder.
func (b *Browser) NavigateUp(ctx context.Context) error {
	return b.NavigateTo(ctx, tree.Parent(b.CurrentPath()))
}

// CurrentPath returns the folder being shown.
func (b *Browser) CurrentPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.path
}

// Refresh re-fetches the current folder with the current sort order.
// An active search is exited first.
func (b *Browser) Refresh(ctx context.Context) error {
	b.mu.Lock()
	b.overlay = nil
	b.clearSelectionLocked()
	b.mu.Unlock()

	return b.load(ctx)
}

// Sort changes the sort order and re-fetches.
func (b *Browser) Sort(ctx context.Context, order models.SortOrder) error {
	if _, err := models.ParseSortOrder(string(order)); err != nil || order == "" {
		return b.invalid("Sort", fmt.Sprintf("unknown sort order %q", order))
	}

	b.mu.Lock()
	b.overlay = nil
	b.sort = order
	b.clearSelectionLocked()
	b.mu.Unlock()

	return b.load(ctx)
}

// Breadcrumbs returns the trail for the current folder, or a single search
// indicator while a search or category filter is shown.
func (b *Browser) Breadcrumbs() []tree.Crumb {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.breadcrumbsLocked()
}

func (b *Browser) breadcrumbsLocked() []tree.Crumb {
	if b.overlay != nil {
		if b.overlay.category != "" {
			return []tree.Crumb{
				{Label: tree.RootLabel, Path: tree.Root},
				{Label: b.overlay.category.Label(), Path: tree.Root},
			}
		}
		return []tree.Crumb{{Label: fmt.Sprintf("Search results for %q", b.overlay.query), Path: b.path}}
	}
	return tree.Breadcrumbs(b.path)
}

// load fetches the listing of the current path and sort order. Every call
// takes a new generation and cancels the fetch it supersedes; a response
// is applied only while its generation is still the latest.
func (b *Browser) load(ctx context.Context) error {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.gen++
	gen := b.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	p, order := b.path, b.sort
	b.status = StatusLoading
	b.mu.Unlock()
	defer cancel()
	b.publish()

	b.log.Debug("loading listing", zap.String("path", p), zap.String("sort", string(order)), zap.Uint64("generation", gen))
	files, err := b.api.ListFiles(fetchCtx, p, order)

	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		metrics.RecordListingDiscarded()
		b.log.Debug("discarded stale listing", zap.String("path", p), zap.Uint64("generation", gen))
		return ErrSuperseded
	}
	b.cancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			b.status = b.settledStatusLocked()
			b.mu.Unlock()
			b.publish()
			return err
		}
		b.status = StatusError
		b.lastErr = err
		b.mu.Unlock()
		b.publish()
		return b.fail("Failed to load files", err)
	}

	if files == nil {
		files = []models.FileEntry{}
	}
	b.files = files
	b.listedPath = p
	// An overlay filtered the listing being replaced.
	b.overlay = nil
	b.clearSelectionLocked()
	b.status = StatusLoaded
	b.lastErr = nil
	b.mu.Unlock()

	metrics.SetListingSize(len(files))
	b.publish()

	if b.prefs != nil {
		if err := b.prefs.SetLastPath(ctx, p); err != nil {
			b.log.Warn("failed to save last path", zap.Error(err))
		}
	}
	return nil
}

// settledStatusLocked is the status to return to when a fetch is
// abandoned without a result.
func (b *Browser) settledStatusLocked() Status {
	switch {
	case b.lastErr != nil:
		return StatusError
	case b.files != nil:
		return StatusLoaded
	}
	return StatusIdle
}
