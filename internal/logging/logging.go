// Package logging sets up the zap logger shared by the client components.
//
// Logs never go to stdout by default: the browser draws its listing there.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	global *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.WarnLevel)
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // stderr, stdout, or a file path
}

// Init replaces the global logger. An unknown level falls back to warn.
// Parent directories of a log file are created.
func Init(cfg Config) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		lvl = zapcore.WarnLevel
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
		zc.Sampling = nil
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}

	out := cfg.OutputPath
	switch out {
	case "":
		out = "stderr"
	case "stderr", "stdout":
	default:
		if err := os.MkdirAll(filepath.Dir(out), 0700); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}

	level.SetLevel(lvl)
	zc.Level = level
	zc.OutputPaths = []string{out}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	global = logger
	mu.Unlock()
	return nil
}

// InitNop discards all logs.
func InitNop() {
	mu.Lock()
	global = zap.NewNop()
	mu.Unlock()
}

// L returns the global logger, a warn-level stderr logger if Init was
// never called.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		logger, err := zap.NewDevelopmentConfig().Build(zap.IncreaseLevel(level))
		if err != nil {
			logger = zap.NewNop()
		}
		global = logger
	}
	return global
}

// Named returns the logger of one component, such as "client" or "upload".
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// SetLevel changes the level at runtime. Unknown levels are ignored.
func SetLevel(s string) bool {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return false
	}
	level.SetLevel(lvl)
	return true
}

// Level returns the current level.
func Level() string {
	return level.Level().String()
}

// Sync flushes buffered entries.
func Sync() error {
	mu.Lock()
	logger := global
	mu.Unlock()
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
