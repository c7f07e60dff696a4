package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/lmaocloud/cloudbrowser/internal/browser"
	"github.com/lmaocloud/cloudbrowser/internal/metrics"
	"github.com/lmaocloud/cloudbrowser/internal/prefs"
	"github.com/lmaocloud/cloudbrowser/internal/render"
	"github.com/lmaocloud/cloudbrowser/internal/upload"
	"github.com/lmaocloud/cloudbrowser/pkg/cache"
	"github.com/lmaocloud/cloudbrowser/pkg/client"
	"github.com/lmaocloud/cloudbrowser/pkg/models"
	"github.com/lmaocloud/cloudbrowser/pkg/tree"
)

func cmdList(args []string) error {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	opts := commonFlags(fs)
	sortFlag := fs.String("sort", "", "Sort order: name-asc, name-desc, size-asc, size-desc, date-asc, date-desc")
	view := fs.String("view", "list", "Layout: grid or list")
	search := fs.String("search", "", "Show only names containing this text")
	category := fs.String("category", "", "Show only root files of a category: images, documents, videos, music, others")
	fs.Parse(args)

	order, err := models.ParseSortOrder(*sortFlag)
	if err != nil {
		return err
	}
	mode, err := models.ParseViewMode(*view)
	if err != nil {
		return err
	}

	e, err := setup(opts, true)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	r := render.New(os.Stdout)
	b := browser.New(browser.Config{
		API:      e.api,
		Notifier: quietNotifier{r},
		Logger:   e.log.Named("browser"),
		Sort:     order,
	})
	defer b.Close()

	dir := fs.Arg(0)
	if *category != "" {
		err = b.FilterCategory(ctx, models.Category(*category))
	} else {
		err = b.Start(ctx, dir)
	}
	if err != nil {
		return err
	}
	if *search != "" {
		b.Search(*search)
	}
	if err := b.SetView(ctx, mode); err != nil {
		return err
	}
	return r.Snapshot(b.Snapshot())
}

// quietNotifier shows only warnings. One-shot commands report errors
// through their exit status.
type quietNotifier struct {
	r *render.Renderer
}

func (q quietNotifier) Notify(n browser.Notification) {
	if n.Level == browser.LevelWarning {
		q.r.Notify(n)
	}
}

func cmdUpload(args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	opts := commonFlags(fs)
	dir := fs.String("dir", tree.Root, "Remote folder to upload into")
	simulate := fs.Bool("simulate", false, "Show estimated progress while the server is busy")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return errors.New("usage: cloudbrowser upload [-dir /remote/folder] <files...>")
	}

	e, err := setup(opts, true)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	sources := make([]client.UploadSource, 0, fs.NArg())
	for _, p := range fs.Args() {
		src, err := client.FileSource(p)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	store, err := e.openPrefs(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	r := render.New(os.Stdout)
	coord := upload.New(upload.Config{
		Uploader: e.api,
		History:  store,
		Notifier: r,
		Logger:   e.log.Named("upload"),
		Simulate: *simulate || e.cfg.SimulateProgress,
	})
	return runUpload(ctx, coord, r, tree.Clean(*dir), sources)
}

// runUpload prints a line for every file whose state or tenth of progress
// changes while the batch runs.
func runUpload(ctx context.Context, coord *upload.Coordinator, r *render.Renderer, dir string, sources []client.UploadSource) error {
	events := coord.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		last := map[string]string{}
		for p := range events {
			key := fmt.Sprintf("%s/%d", p.Status, int(p.Percent)/10)
			if last[p.ID] == key || p.Status.Done() {
				continue
			}
			last[p.ID] = key
			r.Uploads([]upload.Progress{p})
		}
	}()

	_, err := coord.Upload(ctx, dir, sources)
	coord.Unsubscribe(events)
	<-done
	r.Uploads(coord.Items())
	return err
}

func cmdDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	opts := commonFlags(fs)
	out := fs.String("o", "", "Output file (default: remote name in the current directory, - for stdout)")
	noCache := fs.Bool("no-cache", false, "Bypass the local download cache")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: cloudbrowser download [-o file] <remote path>")
	}

	e, err := setup(opts, true)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	remote := tree.Clean(fs.Arg(0))
	entries, err := e.api.ListFiles(ctx, tree.Parent(remote), models.DefaultSort)
	if err != nil {
		return err
	}
	i := tree.FindByName(entries, tree.Base(remote))
	if i < 0 {
		return fmt.Errorf("%s: no such file", remote)
	}

	var c *cache.Cache
	if !*noCache {
		if c, err = cache.New(e.cfg.CacheDir(), e.cfg.CacheMaxSize); err != nil {
			return err
		}
	}
	return download(ctx, e, c, entries[i], *out)
}

// download writes the content of entry to out, serving it from c when the
// cached copy is current. c may be nil.
func download(ctx context.Context, e *env, c *cache.Cache, entry models.FileEntry, out string) error {
	if entry.IsFolder() {
		return fmt.Errorf("%s is a folder", entry.Name)
	}
	if out == "" {
		out = entry.Name
	}

	start := time.Now()
	var src io.ReadCloser
	if c != nil {
		if local, ok := c.Get(entry); ok {
			metrics.RecordCacheLookup(true)
			f, err := os.Open(local)
			if err != nil {
				return err
			}
			src = f
		} else {
			metrics.RecordCacheLookup(false)
		}
	}
	if src == nil {
		body, size, err := e.api.Download(ctx, entry.ID)
		if err != nil {
			return err
		}
		if c == nil {
			src = body
		} else {
			local, err := c.Put(entry, body, size)
			body.Close()
			if err != nil {
				return fmt.Errorf("cache download: %w", err)
			}
			if src, err = os.Open(local); err != nil {
				return err
			}
		}
	}
	defer src.Close()

	var dst io.Writer = os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		dst = f
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	metrics.RecordDownload(n)
	e.log.Debug("download finished", zap.String("file", entry.Name), zap.Int64("bytes", n), zap.Duration("took", time.Since(start)))
	if out != "-" {
		fmt.Fprintf(os.Stderr, "Saved %s (%s)\n", out, render.FormatSize(n))
	}
	return nil
}

func cmdCache(args []string) error {
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	opts := commonFlags(fs)
	fs.Parse(args)

	e, err := setup(opts, false)
	if err != nil {
		return err
	}
	c, err := cache.New(e.cfg.CacheDir(), e.cfg.CacheMaxSize)
	if err != nil {
		return err
	}

	sub := "status"
	if fs.NArg() > 0 {
		sub = fs.Arg(0)
	}
	switch sub {
	case "status":
		size, maxSize, count := c.Stats()
		fmt.Printf("Cache directory: %s\n", c.Dir())
		fmt.Printf("Cached files:    %d\n", count)
		fmt.Printf("Cache size:      %s\n", render.FormatSize(size))
		fmt.Printf("Max size:        %s\n", render.FormatSize(maxSize))
	case "list":
		for _, entry := range c.List() {
			pin := ""
			if entry.Pinned {
				pin = " (pinned)"
			}
			fmt.Printf("%-12s  %10s  %s%s\n", entry.FileID, render.FormatSize(entry.Size), entry.Name, pin)
		}
	case "clear":
		n, err := c.Clear()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d cached file(s).\n", n)
	case "pin", "unpin":
		if fs.NArg() < 2 {
			return fmt.Errorf("usage: cloudbrowser cache %s <file-id>", sub)
		}
		id := models.ID(fs.Arg(1))
		if err := c.SetPinned(id, sub == "pin"); err != nil {
			return err
		}
		fmt.Printf("%sned %s\n", sub, id)
	default:
		return fmt.Errorf("unknown cache command %q (status, list, clear, pin, unpin)", sub)
	}
	return nil
}

func cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	opts := commonFlags(fs)
	limit := fs.Int("n", 20, "Number of entries to show")
	wipe := fs.Bool("clear", false, "Forget the upload history")
	fs.Parse(args)

	e, err := setup(opts, false)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	store, err := e.openPrefs(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if *wipe {
		return store.ClearHistory(ctx)
	}
	entries, err := store.History(ctx, *limit)
	if err != nil {
		return err
	}
	printHistory(os.Stdout, entries)
	return nil
}

func printHistory(w io.Writer, entries []prefs.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No uploads yet.")
		return
	}
	for _, h := range entries {
		line := fmt.Sprintf("%s  %-9s  %10s  %s", h.CreatedAt.Local().Format("2006-01-02 15:04"), h.Status, render.FormatSize(h.Size), filepath.ToSlash(tree.BuildChildPath(h.Dir, h.Name)))
		if h.Message != "" && h.Status != prefs.HistorySuccess {
			line += "  (" + h.Message + ")"
		}
		fmt.Fprintln(w, line)
	}
}
