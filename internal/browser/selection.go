package browser

import (
	"github.com/lmaocloud/cloudbrowser/pkg/models"
	"github.com/lmaocloud/cloudbrowser/pkg/tree"
)

// Selection is keyed by entry ID and only ever refers to entries that are
// displayed for the listing of the current path. Entries from any other
// listing are ignored.

// Select adds e to the selection.
func (b *Browser) Select(e models.FileEntry) {
	b.changeSelection(func() bool {
		if !b.selectableLocked(e.ID) {
			return false
		}
		if _, ok := b.selected[e.ID]; ok {
			return false
		}
		b.selected[e.ID] = struct{}{}
		return true
	})
}

// Deselect removes e from the selection.
func (b *Browser) Deselect(e models.FileEntry) {
	b.changeSelection(func() bool {
		if _, ok := b.selected[e.ID]; !ok {
			return false
		}
		delete(b.selected, e.ID)
		return true
	})
}

// Toggle inverts the membership of e.
func (b *Browser) Toggle(e models.FileEntry) {
	b.changeSelection(func() bool {
		if _, ok := b.selected[e.ID]; ok {
			delete(b.selected, e.ID)
			return true
		}
		if !b.selectableLocked(e.ID) {
			return false
		}
		b.selected[e.ID] = struct{}{}
		return true
	})
}

// SelectOnly replaces the selection with e.
func (b *Browser) SelectOnly(e models.FileEntry) {
	b.changeSelection(func() bool {
		if !b.selectableLocked(e.ID) {
			return false
		}
		b.clearSelectionLocked()
		b.selected[e.ID] = struct{}{}
		return true
	})
}

// SelectRange replaces the selection with the displayed entries between
// anchor and target, both inclusive, in displayed order.
func (b *Browser) SelectRange(anchor, target models.FileEntry) {
	b.changeSelection(func() bool {
		if b.listedPath != b.path {
			return false
		}
		displayed := b.displayedLocked()
		from := tree.FindByID(displayed, anchor.ID)
		to := tree.FindByID(displayed, target.ID)
		if from < 0 || to < 0 {
			return false
		}
		if from > to {
			from, to = to, from
		}
		b.clearSelectionLocked()
		for _, e := range displayed[from : to+1] {
			b.selected[e.ID] = struct{}{}
		}
		return true
	})
}

// SelectAll selects every displayed entry.
func (b *Browser) SelectAll() {
	b.changeSelection(func() bool {
		if b.listedPath != b.path {
			return false
		}
		for _, e := range b.displayedLocked() {
			b.selected[e.ID] = struct{}{}
		}
		return true
	})
}

// ClearSelection empties the selection.
func (b *Browser) ClearSelection() {
	b.changeSelection(func() bool {
		if len(b.selected) == 0 {
			return false
		}
		b.clearSelectionLocked()
		return true
	})
}

// Selected returns the selected entries in displayed order.
func (b *Browser) Selected() []models.FileEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selectedLocked()
}

// SingleSelected returns the only selected entry. Operations that work on
// one entry use it; zero or several selected entries is a validation error.
func (b *Browser) SingleSelected(op string) (models.FileEntry, error) {
	sel := b.Selected()
	switch len(sel) {
	case 1:
		return sel[0], nil
	case 0:
		return models.FileEntry{}, b.invalid(op, "No item selected")
	}
	return models.FileEntry{}, b.invalid(op, "Select a single item for this operation")
}

func (b *Browser) changeSelection(fn func() bool) {
	b.mu.Lock()
	changed := fn()
	b.mu.Unlock()
	if changed {
		b.publish()
	}
}

func (b *Browser) selectableLocked(id models.ID) bool {
	return b.listedPath == b.path && tree.FindByID(b.displayedLocked(), id) >= 0
}

func (b *Browser) selectedLocked() []models.FileEntry {
	var out []models.FileEntry
	for _, e := range b.displayedLocked() {
		if _, ok := b.selected[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (b *Browser) clearSelectionLocked() {
	if len(b.selected) > 0 {
		b.selected = make(map[models.ID]struct{})
	}
}
