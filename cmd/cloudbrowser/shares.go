package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lmaocloud/cloudbrowser/internal/render"
	"github.com/lmaocloud/cloudbrowser/pkg/client"
	"github.com/lmaocloud/cloudbrowser/pkg/models"
)

// cmdShares manages share links: list (default), received, create, cancel.
func cmdShares(args []string) error {
	fs := flag.NewFlagSet("shares", flag.ExitOnError)
	opts := commonFlags(fs)
	hours := fs.Int("hours", 0, "Link lifetime for create (default from config)")
	fs.Parse(args)

	e, err := setup(opts, true)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	sub := fs.Arg(0)
	switch sub {
	case "", "list":
		shares, err := e.api.ListShares(ctx)
		if err != nil {
			return err
		}
		printShares(os.Stdout, shares)
	case "received":
		entries, err := e.api.SharedWithMe(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Nothing has been shared with you.")
		}
		for _, entry := range entries {
			fmt.Printf("  %-40s %10s\n", entry.Path, render.FormatSize(entry.Size))
		}
	case "create":
		if fs.NArg() != 2 {
			return fmt.Errorf("usage: cloudbrowser shares create [-hours N] <path>")
		}
		h := *hours
		if h == 0 {
			h = e.cfg.ShareExpireHours
		}
		info, err := e.api.Share(ctx, fs.Arg(1), h)
		if err != nil {
			return err
		}
		fmt.Printf("%s  (expires in %dh)\n", info.URL, h)
	case "cancel":
		if fs.NArg() < 2 {
			return fmt.Errorf("usage: cloudbrowser shares cancel <id...>")
		}
		return cancelShares(ctx, e.api, fs.Args()[1:])
	default:
		return fmt.Errorf("unknown shares command %q", sub)
	}
	return nil
}

func cancelShares(ctx context.Context, api *client.Client, ids []string) error {
	for _, id := range ids {
		if err := api.CancelShare(ctx, models.ID(id)); err != nil {
			return fmt.Errorf("cancel %s: %w", id, err)
		}
		fmt.Printf("Cancelled share %s\n", id)
	}
	return nil
}

func printShares(w io.Writer, shares []models.ShareInfo) {
	if len(shares) == 0 {
		fmt.Fprintln(w, "No share links.")
		return
	}
	for _, s := range shares {
		expires := "never"
		if !s.ExpiresAt.IsZero() {
			expires = s.ExpiresAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "  %-8s %-32s %s  expires %s\n", s.ID, s.Path, s.URL, expires)
	}
}

// cmdStatus checks that the server answers.
func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	opts := commonFlags(fs)
	fs.Parse(args)

	e, err := setup(opts, false)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if err := e.api.Ping(ctx); err != nil {
		fmt.Printf("%s: offline (%v)\n", e.api.BaseURL(), err)
		return err
	}
	fmt.Printf("%s: online, %s\n", e.api.BaseURL(), time.Since(start).Round(time.Millisecond))
	return nil
}
