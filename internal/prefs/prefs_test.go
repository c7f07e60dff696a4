package prefs

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmaocloud/cloudbrowser/pkg/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RunsMigrations(t *testing.T) {
	s := openStore(t)

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='upload_history'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "p.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
}

func TestGetSet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "old"))
	require.NoError(t, s.Set(ctx, "k", "new"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestViewMode(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	mode, err := s.ViewMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ViewGrid, mode)

	require.NoError(t, s.SetViewMode(ctx, models.ViewList))
	mode, err = s.ViewMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ViewList, mode)

	assert.Error(t, s.SetViewMode(ctx, "table"))

	// A corrupted value falls back to the default.
	require.NoError(t, s.Set(ctx, keyViewMode, "bogus"))
	mode, err = s.ViewMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ViewGrid, mode)
}

func TestSortOrderAndLastPath(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	order, err := s.SortOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SortNameAsc, order)
	require.NoError(t, s.SetSortOrder(ctx, models.SortSizeDesc))
	order, _ = s.SortOrder(ctx)
	assert.Equal(t, models.SortSizeDesc, order)

	p, err := s.LastPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/", p)
	require.NoError(t, s.SetLastPath(ctx, "/docs"))
	p, _ = s.LastPath(ctx)
	assert.Equal(t, "/docs", p)
}

func TestHistory_NewestFirstAndTrimmed(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < HistoryLimit+5; i++ {
		require.NoError(t, s.AddHistory(ctx, HistoryEntry{
			Name:      fmt.Sprintf("f%02d.txt", i),
			Dir:       "/",
			Status:    HistorySuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := s.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, HistoryLimit)
	assert.Equal(t, fmt.Sprintf("f%02d.txt", HistoryLimit+4), all[0].Name)
	assert.Equal(t, "f05.txt", all[len(all)-1].Name)

	few, err := s.History(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, few, 3)

	require.NoError(t, s.ClearHistory(ctx))
	all, err = s.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHistory_BatchKeepsStatus(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddHistory(ctx,
		HistoryEntry{Name: "a", Status: HistorySuccess, Size: 10},
		HistoryEntry{Name: "b", Status: HistoryError, Message: "quota exhausted"},
	))
	require.NoError(t, s.AddHistory(ctx))

	h, err := s.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, h, 2)

	byName := map[string]HistoryEntry{}
	for _, e := range h {
		byName[e.Name] = e
	}
	assert.Equal(t, HistoryError, byName["b"].Status)
	assert.Equal(t, "quota exhausted", byName["b"].Message)
	assert.Equal(t, int64(10), byName["a"].Size)
	assert.False(t, byName["a"].CreatedAt.IsZero())
}
