package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/lmaocloud/cloudbrowser/pkg/models"
	"github.com/lmaocloud/cloudbrowser/pkg/tree"
)

// Search shows the entries of the current listing whose name contains q,
// ignoring case, in listing order. Subfolders and the backend are not
// searched. A blank q exits search. While the listing of the current
// folder is not loaded there is nothing to search and nil is returned.
func (b *Browser) Search(q string) []models.FileEntry {
	q = strings.TrimSpace(q)
	if q == "" {
		b.ExitSearch()
		return b.Snapshot().Files
	}

	needle := strings.ToLower(q)
	b.mu.Lock()
	if b.listedPath != b.path {
		b.mu.Unlock()
		b.notify(LevelWarning, "Search", "The folder has not finished loading")
		return nil
	}
	matches := make([]models.FileEntry, 0)
	for _, e := range b.files {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			matches = append(matches, e)
		}
	}
	b.overlay = &overlay{query: q, entries: matches}
	b.clearSelectionLocked()
	b.mu.Unlock()
	b.publish()

	if len(matches) > 0 {
		b.notify(LevelInfo, "Search results", fmt.Sprintf("Found %d matching item(s)", len(matches)))
	} else {
		b.notify(LevelWarning, "Search results", "No matching items found")
	}
	return matches
}

// ExitSearch leaves search or category mode and shows the current listing
// again without fetching it.
func (b *Browser) ExitSearch() {
	b.mu.Lock()
	active := b.overlay != nil
	b.overlay = nil
	cleared := len(b.selected) > 0
	b.clearSelectionLocked()
	b.mu.Unlock()

	if active || cleared {
		b.publish()
	}
}

// FilterCategory loads the root listing and shows only its files of
// category c.
func (b *Browser) FilterCategory(ctx context.Context, c models.Category) error {
	c, ok := models.ParseCategory(string(c))
	if !ok {
		return b.invalid("Filter", fmt.Sprintf("unknown category %q", c))
	}
	if err := b.NavigateTo(ctx, tree.Root); err != nil {
		return err
	}

	b.mu.Lock()
	if b.path != tree.Root || b.listedPath != tree.Root {
		b.mu.Unlock()
		return ErrSuperseded
	}
	matches := make([]models.FileEntry, 0)
	for _, e := range b.files {
		if c.Matches(e) {
			matches = append(matches, e)
		}
	}
	b.overlay = &overlay{category: c, entries: matches}
	b.clearSelectionLocked()
	b.mu.Unlock()
	b.publish()
	return nil
}
