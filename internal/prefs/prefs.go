// Package prefs persists user preferences and the upload history in a
// local SQLite database.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/lmaocloud/cloudbrowser/internal/prefs/migrations"
	"github.com/lmaocloud/cloudbrowser/pkg/models"
)

// HistoryLimit is the number of upload history entries kept.
const HistoryLimit = 50

const (
	keyViewMode = "view_mode"
	keyLastPath = "last_path"
	keySort     = "sort_order"
)

// HistoryStatus is the outcome of one uploaded file.
type HistoryStatus string

const (
	HistorySuccess   HistoryStatus = "success"
	HistoryError     HistoryStatus = "error"
	HistoryCancelled HistoryStatus = "cancelled"
)

// HistoryEntry is one uploaded file.
type HistoryEntry struct {
	ID        int64
	Name      string
	Dir       string
	Size      int64
	Status    HistoryStatus
	Message   string
	CreatedAt time.Time
}

// Store is the preference database.
type Store struct {
	db *sql.DB
}

// RunMigrations applies the embedded schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open prefs db: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate prefs db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

// ViewMode returns the saved view mode, DefaultView when unset or invalid.
func (s *Store) ViewMode(ctx context.Context) (models.ViewMode, error) {
	v, _, err := s.Get(ctx, keyViewMode)
	if err != nil {
		return models.DefaultView, err
	}
	mode, err := models.ParseViewMode(v)
	if err != nil {
		return models.DefaultView, nil
	}
	return mode, nil
}

// SetViewMode saves the view mode.
func (s *Store) SetViewMode(ctx context.Context, mode models.ViewMode) error {
	if _, err := models.ParseViewMode(string(mode)); err != nil {
		return err
	}
	return s.Set(ctx, keyViewMode, string(mode))
}

// SortOrder returns the saved sort order, DefaultSort when unset or invalid.
func (s *Store) SortOrder(ctx context.Context) (models.SortOrder, error) {
	v, _, err := s.Get(ctx, keySort)
	if err != nil {
		return models.DefaultSort, err
	}
	order, err := models.ParseSortOrder(v)
	if err != nil {
		return models.DefaultSort, nil
	}
	return order, nil
}

// SetSortOrder saves the sort order.
func (s *Store) SetSortOrder(ctx context.Context, order models.SortOrder) error {
	return s.Set(ctx, keySort, string(order))
}

// LastPath returns the last visited folder, "/" when unset.
func (s *Store) LastPath(ctx context.Context) (string, error) {
	v, ok, err := s.Get(ctx, keyLastPath)
	if err != nil || !ok || v == "" {
		return "/", err
	}
	return v, nil
}

// SetLastPath saves the last visited folder.
func (s *Store) SetLastPath(ctx context.Context, p string) error {
	return s.Set(ctx, keyLastPath, p)
}

// AddHistory records uploaded files and trims the history to HistoryLimit.
func (s *Store) AddHistory(ctx context.Context, entries ...HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		created := e.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO upload_history (name, dir, size, status, message, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.Name, e.Dir, e.Size, string(e.Status), e.Message, created.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM upload_history WHERE id NOT IN (
			SELECT id FROM upload_history ORDER BY created_at DESC, id DESC LIMIT ?
		)
	`, HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return tx.Commit()
}

// History returns up to limit entries, newest first. limit <= 0 means HistoryLimit.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, dir, size, status, message, created_at
		FROM upload_history ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var status string
		var created int64
		if err := rows.Scan(&e.ID, &e.Name, &e.Dir, &e.Size, &status, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Status = HistoryStatus(status)
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return out, nil
}

// ClearHistory removes every history entry.
func (s *Store) ClearHistory(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM upload_history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
