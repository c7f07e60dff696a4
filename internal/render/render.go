// Package render draws browser state for a terminal.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/lmaocloud/cloudbrowser/internal/browser"
	"github.com/lmaocloud/cloudbrowser/internal/upload"
	"github.com/lmaocloud/cloudbrowser/pkg/models"
)

const (
	gridColumns = 4
	gridCell    = 24
	nameColumn  = 36
	sizeColumn  = 10
	barWidth    = 20
	dateLayout  = "2006-01-02 15:04"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize formats a byte count with a 1024 base and at most two
// decimals, dropping trailing zeros.
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s + " " + sizeUnits[i]
}

type styles struct {
	crumb    lipgloss.Style
	crumbSep lipgloss.Style
	search   lipgloss.Style
	folder   lipgloss.Style
	file     lipgloss.Style
	selected lipgloss.Style
	dim      lipgloss.Style
	header   lipgloss.Style
	err      lipgloss.Style
	levels   map[browser.Level]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		crumb:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF80")),
		crumbSep: r.NewStyle().Foreground(lipgloss.Color("#808080")),
		search:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFF00")),
		folder:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#4A90E2")),
		file:     r.NewStyle().Foreground(lipgloss.Color("#FFFFFF")),
		selected: r.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#4A90E2")),
		dim:      r.NewStyle().Foreground(lipgloss.Color("#808080")),
		header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FFFF")),
		err:      r.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		levels: map[browser.Level]lipgloss.Style{
			browser.LevelInfo:    r.NewStyle().Foreground(lipgloss.Color("#00FFFF")),
			browser.LevelSuccess: r.NewStyle().Foreground(lipgloss.Color("#00FF80")),
			browser.LevelWarning: r.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
			browser.LevelError:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000")),
		},
	}
}

// Renderer draws to one writer. Colors are used only when the writer is a
// terminal that supports them.
type Renderer struct {
	mu sync.Mutex // one block of output at a time
	w  io.Writer
	st styles
}

// New creates a Renderer for w.
func New(w io.Writer) *Renderer {
	return &Renderer{w: w, st: newStyles(lipgloss.NewRenderer(w))}
}

// Render draws s to w.
func Render(w io.Writer, s browser.Snapshot) error {
	return New(w).Snapshot(s)
}

// Snapshot draws the breadcrumb trail, the listing in the snapshot's view
// mode and a status line.
func (r *Renderer) Snapshot(s browser.Snapshot) error {
	var b strings.Builder
	b.WriteString(r.breadcrumbs(s))
	b.WriteString("\n\n")

	switch {
	case len(s.Files) == 0 && s.Status == browser.StatusLoading:
		b.WriteString(r.st.dim.Render("Loading..."))
		b.WriteString("\n")
	case len(s.Files) == 0:
		b.WriteString(r.st.dim.Render(emptyMessage(s)))
		b.WriteString("\n")
	case s.View == models.ViewList:
		r.list(&b, s)
	default:
		r.grid(&b, s)
	}

	b.WriteString("\n")
	b.WriteString(r.statusLine(s))
	b.WriteString("\n")
	return r.write(b.String())
}

func emptyMessage(s browser.Snapshot) string {
	if s.Searching {
		return "No matching items"
	}
	return "This folder is empty"
}

func (r *Renderer) breadcrumbs(s browser.Snapshot) string {
	if s.Searching && s.Category == "" {
		return r.st.search.Render(s.Breadcrumbs[0].Label)
	}
	parts := make([]string, 0, len(s.Breadcrumbs))
	for _, c := range s.Breadcrumbs {
		parts = append(parts, r.st.crumb.Render(c.Label))
	}
	return strings.Join(parts, r.st.crumbSep.Render(" / "))
}

func (r *Renderer) grid(b *strings.Builder, s browser.Snapshot) {
	for i, e := range s.Files {
		cell := marker(s, e) + " " + displayName(e)
		cell = r.entryStyle(s, e).Render(pad(truncate(cell, gridCell-1), gridCell-1))
		b.WriteString(cell)
		if (i+1)%gridColumns == 0 || i == len(s.Files)-1 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}
}

func (r *Renderer) list(b *strings.Builder, s browser.Snapshot) {
	header := fmt.Sprintf("    %s %s  %s", pad("Name", nameColumn), padLeft("Size", sizeColumn), "Modified")
	b.WriteString(r.st.header.Render(header))
	b.WriteString("\n")
	for _, e := range s.Files {
		size := ""
		if !e.IsFolder() {
			size = FormatSize(e.Size)
		}
		modified := ""
		if t := e.ModifiedTime.Time; !t.IsZero() {
			modified = t.Local().Format(dateLayout)
		} else if t := e.CreateTime.Time; !t.IsZero() {
			modified = t.Local().Format(dateLayout)
		}
		line := fmt.Sprintf("%s %s %s  %s", marker(s, e), pad(truncate(displayName(e), nameColumn), nameColumn), padLeft(size, sizeColumn), modified)
		b.WriteString(r.entryStyle(s, e).Render(line))
		b.WriteString("\n")
	}
}

func (r *Renderer) entryStyle(s browser.Snapshot, e models.FileEntry) lipgloss.Style {
	switch {
	case s.IsSelected(e.ID):
		return r.st.selected
	case e.IsFolder():
		return r.st.folder
	}
	return r.st.file
}

func (r *Renderer) statusLine(s browser.Snapshot) string {
	folders := 0
	for _, e := range s.Files {
		if e.IsFolder() {
			folders++
		}
	}
	line := fmt.Sprintf("%d folder(s), %d file(s)", folders, len(s.Files)-folders)
	if n := len(s.Selected); n > 0 {
		line += fmt.Sprintf(", %d selected", n)
	}
	line += fmt.Sprintf("  sort: %s  view: %s", s.Sort, s.View)

	switch s.Status {
	case browser.StatusLoading:
		return r.st.dim.Render(line + "  loading...")
	case browser.StatusError:
		return r.st.dim.Render(line) + "  " + r.st.err.Render(browser.Describe(s.Err))
	}
	return r.st.dim.Render(line)
}

// Uploads draws one progress bar per upload item.
func (r *Renderer) Uploads(items []upload.Progress) error {
	var b strings.Builder
	for _, p := range items {
		filled := int(p.Percent / 100 * barWidth)
		if filled > barWidth {
			filled = barWidth
		}
		bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
		line := fmt.Sprintf("%s [%s] %5.1f%% %s", pad(truncate(p.Name, gridCell), gridCell), bar, p.Percent, p.Status)
		switch p.Status {
		case upload.StatusSuccess:
			line = r.st.levels[browser.LevelSuccess].Render(line)
		case upload.StatusError:
			line = r.st.levels[browser.LevelError].Render(line)
			if p.Err != nil {
				line += " " + r.st.err.Render(browser.Describe(p.Err))
			}
		case upload.StatusCancelled:
			line = r.st.dim.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return r.write(b.String())
}

// Notify prints a notification on a single line.
func (r *Renderer) Notify(n browser.Notification) {
	style, ok := r.st.levels[n.Level]
	if !ok {
		style = r.st.levels[browser.LevelInfo]
	}
	label := style.Render(fmt.Sprintf("[%s] %s", n.Level, n.Title))
	if n.Message != "" {
		label += ": " + n.Message
	}
	r.write(label + "\n")
}

// write emits text as a whole so concurrent callers never split a line.
func (r *Renderer) write(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := io.WriteString(r.w, text)
	return err
}

func marker(s browser.Snapshot, e models.FileEntry) string {
	if s.IsSelected(e.ID) {
		return "[x]"
	}
	return "[ ]"
}

func displayName(e models.FileEntry) string {
	if e.IsFolder() {
		return e.Name + "/"
	}
	return e.Name
}

func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

func pad(s string, n int) string {
	if w := lipgloss.Width(s); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s
}

func padLeft(s string, n int) string {
	if w := lipgloss.Width(s); w < n {
		return strings.Repeat(" ", n-w) + s
	}
	return s
}
