package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/lmaocloud/cloudbrowser/internal/render"
)

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	opts := commonFlags(fs)
	username := fs.String("user", "", "Username (prompted when empty)")
	fs.Parse(args)

	e, err := setup(opts, false)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if *username == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Username: ")
		line, _ := reader.ReadString('\n')
		*username = strings.TrimSpace(line)
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	tf, err := e.api.Login(ctx, *username, password)
	if err != nil {
		return err
	}
	if err := e.tokens.Save(tf); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save token: %v\n", err)
	}
	fmt.Printf("Logged in as %s. Token saved to %s\n", tf.Username, e.tokens.Path())
	return nil
}

func cmdLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	opts := commonFlags(fs)
	fs.Parse(args)

	e, err := setup(opts, false)
	if err != nil {
		return err
	}
	if err := e.api.Logout(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func cmdRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	opts := commonFlags(fs)
	username := fs.String("user", "", "Username (prompted when empty)")
	email := fs.String("email", "", "Email address")
	fs.Parse(args)

	e, err := setup(opts, false)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if *username == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Username: ")
		line, _ := reader.ReadString('\n')
		*username = strings.TrimSpace(line)
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return err
	}

	if err := e.api.Register(ctx, *username, password, confirm, *email); err != nil {
		return err
	}
	fmt.Printf("Account %s created. Run 'cloudbrowser login' to sign in.\n", *username)
	return nil
}

func cmdWhoami(args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	opts := commonFlags(fs)
	fs.Parse(args)

	e, err := setup(opts, true)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	user, err := e.api.UserInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("User:     %s\n", user.Username)
	if user.Email != "" {
		fmt.Printf("Email:    %s\n", user.Email)
	}
	if user.Role != "" {
		fmt.Printf("Role:     %s\n", user.Role)
	}
	fmt.Printf("Server:   %s\n", e.api.BaseURL())

	quota, err := e.api.CloudInfo(ctx, user.Username)
	if err != nil {
		e.log.Debug("quota unavailable")
		return nil
	}
	fmt.Printf("Storage:  %s / %s (%.1f%%)\n",
		render.FormatSize(quota.UsedCapacity), render.FormatSize(quota.TotalCapacity), quota.UsedPercent())
	return nil
}
