package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lmaocloud/cloudbrowser/internal/browser"
	"github.com/lmaocloud/cloudbrowser/internal/prefs"
	"github.com/lmaocloud/cloudbrowser/internal/render"
	"github.com/lmaocloud/cloudbrowser/internal/upload"
	"github.com/lmaocloud/cloudbrowser/pkg/cache"
	"github.com/lmaocloud/cloudbrowser/pkg/client"
	"github.com/lmaocloud/cloudbrowser/pkg/models"
	"github.com/lmaocloud/cloudbrowser/pkg/tree"
)

const browseHelp = `Commands:
  ls | refresh               reload the current folder
  cd <path|..>               go to a folder
  open <name>                open a folder of the listing
  up                         go to the parent folder
  sort <order>               name-asc, name-desc, size-asc, size-desc, date-asc, date-desc
  view <grid|list>           change the layout
  search <text>              filter the listing by name
  category <name>            images, documents, videos, music, others
  clear                      leave search or category mode
  select <name...>           add entries to the selection
  unselect <name...>         remove entries from the selection
  range <from> <to>          select a range of entries
  all | none                 select everything or nothing
  mkdir <name>               create a folder
  touch <name> [text...]     create a text file
  rename <name> <new>        rename (files keep their extension)
  mv <target>                move the selection
  rm                         move the selection to the trash
  share [hours]              share the single selected file
  trash                      show the trash
  restore <name...>          restore entries from the trash
  purge <name...>            delete trash entries for good
  put <local files...>       upload into the current folder
  get <name> [local]         download a file
  uploads                    show upload progress
  history                    show recent uploads
  help                       this text
  quit`

func cmdBrowse(args []string) error {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	opts := commonFlags(fs)
	fs.Parse(args)

	e, err := setup(opts, true)
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

	order, err := store.SortOrder(ctx)
	if err != nil {
		e.log.Warn("failed to load sort order", zap.Error(err))
	}

	r := render.New(os.Stdout)
	prompt := render.NewPrompter(os.Stdin, os.Stdout)
	b := browser.New(browser.Config{
		API:              e.api,
		Notifier:         r,
		Confirmer:        prompt,
		Prefs:            store,
		Logger:           e.log.Named("browser"),
		Sort:             order,
		BatchConcurrency: e.cfg.BatchConcurrency,
		ShareHours:       e.cfg.ShareExpireHours,
	})
	defer b.Close()

	dc, err := cache.New(e.cfg.CacheDir(), e.cfg.CacheMaxSize)
	if err != nil {
		e.log.Warn("download cache unavailable", zap.Error(err))
		dc = nil
	}

	s := &session{
		env:    e,
		b:      b,
		r:      r,
		prompt: prompt,
		prefs:  store,
		cache:  dc,
		uploads: upload.New(upload.Config{
			Uploader:  e.api,
			Refresher: b,
			History:   store,
			Notifier:  r,
			Logger:    e.log.Named("upload"),
			Simulate:  e.cfg.SimulateProgress,
		}),
	}

	start := fs.Arg(0)
	if start == "" {
		if last, err := store.LastPath(ctx); err == nil {
			start = last
		}
	}
	if err := b.Start(ctx, start); err != nil && !errors.Is(err, context.Canceled) {
		e.log.Debug("initial listing failed", zap.Error(err))
	}
	r.Snapshot(b.Snapshot())
	fmt.Println(`Type "help" for commands.`)

	for {
		line, err := prompt.Ask(ctx, "> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				fmt.Println()
				return nil
			}
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		show, err := s.run(ctx, fields[0], fields[1:])
		if err != nil {
			// Failures were already shown as notifications.
			e.log.Debug("command failed", zap.String("cmd", fields[0]), zap.Error(err))
		}
		if show {
			r.Snapshot(b.Snapshot())
		}
	}
}

type session struct {
	env     *env
	b       *browser.Browser
	r       *render.Renderer
	prompt  *render.Prompter
	prefs   *prefs.Store
	cache   *cache.Cache
	uploads *upload.Coordinator
	trash   []models.FileEntry
}

// run executes one command and reports whether the listing should be
// drawn again.
func (s *session) run(ctx context.Context, cmd string, args []string) (bool, error) {
	b := s.b
	switch cmd {
	case "help", "?":
		fmt.Println(browseHelp)
		return false, nil
	case "ls", "refresh":
		return true, b.Refresh(ctx)
	case "cd":
		if len(args) == 0 {
			return true, b.NavigateTo(ctx, tree.Root)
		}
		if args[0] == ".." {
			return true, b.NavigateUp(ctx)
		}
		target := strings.Join(args, " ")
		if !tree.IsAbs(target) {
			target = tree.BuildChildPath(b.CurrentPath(), target)
		}
		return true, b.NavigateTo(ctx, target)
	case "open":
		e, err := s.entry(strings.Join(args, " "))
		if err != nil {
			return false, err
		}
		return true, b.NavigateIntoFolder(ctx, e)
	case "up":
		return true, b.NavigateUp(ctx)
	case "sort":
		if len(args) != 1 {
			return false, s.usage("sort <order>")
		}
		if err := b.Sort(ctx, models.SortOrder(args[0])); err != nil {
			return true, err
		}
		if err := s.prefs.SetSortOrder(ctx, models.SortOrder(args[0])); err != nil {
			s.env.log.Warn("failed to save sort order", zap.Error(err))
		}
		return true, nil
	case "view":
		if len(args) != 1 {
			return false, s.usage("view <grid|list>")
		}
		return true, b.SetView(ctx, models.ViewMode(args[0]))
	case "search":
		b.Search(strings.Join(args, " "))
		return true, nil
	case "category":
		if len(args) != 1 {
			return false, s.usage("category <name>")
		}
		return true, b.FilterCategory(ctx, models.Category(args[0]))
	case "clear":
		b.ExitSearch()
		return true, nil
	case "select", "unselect":
		for _, name := range args {
			e, err := s.entry(name)
			if err != nil {
				return true, err
			}
			if cmd == "select" {
				b.Select(e)
			} else {
				b.Deselect(e)
			}
		}
		return true, nil
	case "range":
		if len(args) != 2 {
			return false, s.usage("range <from> <to>")
		}
		from, err := s.entry(args[0])
		if err != nil {
			return false, err
		}
		to, err := s.entry(args[1])
		if err != nil {
			return false, err
		}
		b.SelectRange(from, to)
		return true, nil
	case "all":
		b.SelectAll()
		return true, nil
	case "none":
		b.ClearSelection()
		return true, nil
	case "mkdir":
		return true, b.CreateFolder(ctx, strings.Join(args, " "))
	case "touch":
		if len(args) == 0 {
			return false, s.usage("touch <name> [text...]")
		}
		return true, b.CreateTextFile(ctx, args[0], strings.Join(args[1:], " "))
	case "rename":
		if len(args) != 2 {
			return false, s.usage("rename <name> <new>")
		}
		e, err := s.entry(args[0])
		if err != nil {
			return false, err
		}
		return true, b.Rename(ctx, e, args[1])
	case "mv":
		if len(args) != 1 {
			return false, s.usage("mv <target>")
		}
		return true, b.Move(ctx, b.Selected(), args[0])
	case "rm":
		return true, b.Delete(ctx, b.Selected())
	case "share":
		e, err := b.SingleSelected("Share")
		if err != nil {
			return false, err
		}
		hours := 0
		if len(args) > 0 {
			if hours, err = strconv.Atoi(args[0]); err != nil {
				return false, s.usage("share [hours]")
			}
		}
		_, err = b.Share(ctx, e, hours)
		return false, err
	case "trash":
		entries, err := b.Trash(ctx)
		if err != nil {
			return false, err
		}
		s.trash = entries
		if len(entries) == 0 {
			fmt.Println("The trash is empty.")
		}
		for _, e := range entries {
			fmt.Printf("  %s  (%s)\n", e.Name, render.FormatSize(e.Size))
		}
		return false, nil
	case "restore", "purge":
		entries, err := s.trashEntries(args)
		if err != nil {
			return false, err
		}
		if cmd == "restore" {
			return true, b.Restore(ctx, entries)
		}
		return false, b.PermanentlyDelete(ctx, entries)
	case "put":
		sources := make([]client.UploadSource, 0, len(args))
		for _, p := range args {
			src, err := client.FileSource(p)
			if err != nil {
				s.r.Notify(browser.Notification{Level: browser.LevelWarning, Title: "Upload", Message: err.Error()})
				return false, err
			}
			sources = append(sources, src)
		}
		return true, runUpload(ctx, s.uploads, s.r, b.CurrentPath(), sources)
	case "get":
		if len(args) == 0 {
			return false, s.usage("get <name> [local]")
		}
		e, err := s.entry(args[0])
		if err != nil {
			return false, err
		}
		out := ""
		if len(args) > 1 {
			out = args[1]
		}
		if err := download(ctx, s.env, s.cache, e, out); err != nil {
			s.r.Notify(browser.Notification{Level: browser.LevelError, Title: "Download failed", Message: browser.Describe(err)})
			return false, err
		}
		return false, nil
	case "uploads":
		return false, s.r.Uploads(s.uploads.Items())
	case "history":
		entries, err := s.prefs.History(ctx, 0)
		if err != nil {
			return false, err
		}
		printHistory(os.Stdout, entries)
		return false, nil
	}
	return false, s.usage("help")
}

// entry finds name among the displayed entries.
func (s *session) entry(name string) (models.FileEntry, error) {
	files := s.b.Snapshot().Files
	if i := tree.FindByName(files, name); i >= 0 {
		return files[i], nil
	}
	err := client.Validation("lookup", fmt.Sprintf("%s: no such entry", name))
	s.r.Notify(browser.Notification{Level: browser.LevelWarning, Title: "Not found", Message: err.Error()})
	return models.FileEntry{}, err
}

// trashEntries resolves names against the last trash listing.
func (s *session) trashEntries(names []string) ([]models.FileEntry, error) {
	if len(s.trash) == 0 {
		return nil, s.usage(`trash" first, then "restore|purge <name...>`)
	}
	out := make([]models.FileEntry, 0, len(names))
	for _, name := range names {
		i := tree.FindByName(s.trash, name)
		if i < 0 {
			err := client.Validation("trash", fmt.Sprintf("%s is not in the trash", name))
			s.r.Notify(browser.Notification{Level: browser.LevelWarning, Title: "Not found", Message: err.Error()})
			return nil, err
		}
		out = append(out, s.trash[i])
	}
	return out, nil
}

func (s *session) usage(text string) error {
	msg := fmt.Sprintf(`Usage: %s (type "help" for commands)`, text)
	s.r.Notify(browser.Notification{Level: browser.LevelWarning, Title: "Usage", Message: msg})
	return client.Validation("usage", msg)
}
