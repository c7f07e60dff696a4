// cloudbrowser is a terminal client for the cloud storage service.
//
// Sub-commands:
//
//	cloudbrowser login                 Log in and save the session token
//	cloudbrowser logout                Forget the saved session
//	cloudbrowser register              Create an account
//	cloudbrowser whoami                Show the current user and quota
//	cloudbrowser ls [path]             List a folder
//	cloudbrowser browse [path]         Interactive file browser (default)
//	cloudbrowser upload <files...>     Upload local files
//	cloudbrowser download <path>       Download a file through the local cache
//	cloudbrowser cache <cmd>           Inspect or clear the download cache
//	cloudbrowser history               Show recent uploads
//	cloudbrowser shares [cmd]          List, create or cancel share links
//	cloudbrowser status                Check that the server answers
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lmaocloud/cloudbrowser/internal/config"
	"github.com/lmaocloud/cloudbrowser/internal/logging"
	"github.com/lmaocloud/cloudbrowser/internal/metrics"
	"github.com/lmaocloud/cloudbrowser/internal/prefs"
	"github.com/lmaocloud/cloudbrowser/pkg/client"
)

func main() {
	cmd, args := "browse", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	commands := map[string]func([]string) error{
		"login":    cmdLogin,
		"logout":   cmdLogout,
		"register": cmdRegister,
		"whoami":   cmdWhoami,
		"ls":       cmdList,
		"browse":   cmdBrowse,
		"upload":   cmdUpload,
		"download": cmdDownload,
		"cache":    cmdCache,
		"history":  cmdHistory,
		"shares":   cmdShares,
		"status":   cmdStatus,
	}
	run, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", cmd)
		os.Exit(2)
	}

	err := run(args)
	logging.Sync()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// options are the flags shared by every sub-command.
type options struct {
	server   *string
	token    *string
	dataDir  *string
	logLevel *string
}

func commonFlags(fs *flag.FlagSet) *options {
	return &options{
		server:   fs.String("server", "", "API root URL (default $CLOUDBROWSER_SERVER)"),
		token:    fs.String("token", "", "Session token (default: saved token)"),
		dataDir:  fs.String("data", "", "Local state directory (default $CLOUDBROWSER_DATA_DIR)"),
		logLevel: fs.String("log-level", "", "Log level: debug, info, warn, error"),
	}
}

// env is the state shared by sub-commands once flags are parsed.
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	tokens *client.TokenStore
	api    *client.Client
}

// setup loads configuration, applies flag overrides and builds the API
// client. With needAuth a missing or expired token is an error.
func setup(opts *options, needAuth bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if *opts.server != "" {
		cfg.ServerURL = *opts.server
	}
	if *opts.dataDir != "" {
		cfg.DataDir = *opts.dataDir
	}
	if *opts.logLevel != "" {
		cfg.LogLevel = *opts.logLevel
	}
	if *opts.token != "" {
		cfg.Token = *opts.token
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: cfg.LogPath()}); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	log := logging.L()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	tokens := client.NewTokenStore(cfg.TokenPath())
	token := cfg.Token
	if token == "" {
		tf, err := tokens.Load()
		switch {
		case err == nil && tf.IsExpired(0):
			if needAuth {
				return nil, errors.New("saved token has expired, run 'cloudbrowser login'")
			}
		case err == nil:
			token = tf.Token
			if tf.Server != "" && *opts.server == "" && os.Getenv("CLOUDBROWSER_SERVER") == "" {
				cfg.ServerURL = tf.Server
			}
			log.Debug("using saved token", zap.String("user", tf.Username), zap.String("server", tf.Server))
		case !client.IsNoToken(err):
			log.Warn("failed to read saved token", zap.Error(err))
		}
	}
	if needAuth && token == "" {
		return nil, errors.New("not logged in, run 'cloudbrowser login' or set CLOUDBROWSER_TOKEN")
	}

	api := client.New(client.Config{
		BaseURL:   cfg.ServerURL,
		Timeout:   cfg.Timeout,
		AuthToken: token,
		Logger:    log.Named("client"),
		Observer:  metrics.RecordAPIRequest,
		Tokens:    tokens,
		OnUnauthorized: func() {
			metrics.RecordForcedLogout()
			fmt.Fprintln(os.Stderr, "Session expired, run 'cloudbrowser login' to sign in again.")
		},
	})
	return &env{cfg: cfg, log: log, tokens: tokens, api: api}, nil
}

func (e *env) openPrefs(ctx context.Context) (*prefs.Store, error) {
	return prefs.Open(ctx, e.cfg.PrefsPath())
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
