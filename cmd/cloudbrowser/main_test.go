package main

import (
	"bytes"
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmaocloud/cloudbrowser/internal/prefs"
	"github.com/lmaocloud/cloudbrowser/pkg/client"
	"github.com/lmaocloud/cloudbrowser/pkg/models"
)

func parseOpts(t *testing.T, args ...string) *options {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	opts := commonFlags(fs)
	require.NoError(t, fs.Parse(args))
	return opts
}

func TestSetup_RequiresLogin(t *testing.T) {
	t.Setenv("CLOUDBROWSER_DATA_DIR", t.TempDir())
	t.Setenv("CLOUDBROWSER_TOKEN", "")

	_, err := setup(parseOpts(t), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	e, err := setup(parseOpts(t), false)
	require.NoError(t, err)
	assert.Empty(t, e.api.AuthToken())
}

func TestSetup_UsesSavedToken(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CLOUDBROWSER_DATA_DIR", dir)
	t.Setenv("CLOUDBROWSER_TOKEN", "")
	t.Setenv("CLOUDBROWSER_SERVER", "")

	e, err := setup(parseOpts(t), false)
	require.NoError(t, err)
	require.NoError(t, e.tokens.Save(&client.TokenFile{Token: "abc", Server: "http://files.example:9000/api", Username: "alice"}))

	e, err = setup(parseOpts(t), true)
	require.NoError(t, err)
	assert.Equal(t, "abc", e.api.AuthToken())
	assert.Equal(t, "http://files.example:9000/api", e.api.BaseURL())

	e, err = setup(parseOpts(t, "-server", "http://other.example/api"), true)
	require.NoError(t, err)
	assert.Equal(t, "http://other.example/api", e.api.BaseURL(), "the flag wins over the saved server")
}

func TestSetup_ExpiredToken(t *testing.T) {
	t.Setenv("CLOUDBROWSER_DATA_DIR", t.TempDir())
	t.Setenv("CLOUDBROWSER_TOKEN", "")

	e, err := setup(parseOpts(t), false)
	require.NoError(t, err)
	require.NoError(t, e.tokens.Save(&client.TokenFile{Token: "old", ExpiresAt: time.Now().Add(-time.Hour)}))

	_, err = setup(parseOpts(t), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSetup_InvalidServer(t *testing.T) {
	t.Setenv("CLOUDBROWSER_DATA_DIR", t.TempDir())
	_, err := setup(parseOpts(t, "-server", "not a url"), false)
	assert.Error(t, err)
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "No uploads yet.\n", buf.String())

	buf.Reset()
	printHistory(&buf, []prefs.HistoryEntry{
		{Name: "a.txt", Dir: "/docs", Size: 2048, Status: prefs.HistorySuccess, Message: "ok", CreatedAt: time.Now()},
		{Name: "b.bin", Dir: "/", Size: 1, Status: prefs.HistoryError, Message: "quota exceeded", CreatedAt: time.Now()},
	})
	out := buf.String()
	assert.Contains(t, out, "/docs/a.txt")
	assert.Contains(t, out, "2 KB")
	assert.NotContains(t, out, "(ok)")
	assert.Contains(t, out, "/b.bin  (quota exceeded)")
}

func TestPrintShares(t *testing.T) {
	var buf bytes.Buffer
	printShares(&buf, nil)
	assert.Equal(t, "No share links.\n", buf.String())

	buf.Reset()
	printShares(&buf, []models.ShareInfo{{ID: "7", Path: "/docs/a.txt", URL: "https://files.example/s/abc"}})
	out := buf.String()
	assert.Contains(t, out, "/docs/a.txt")
	assert.Contains(t, out, "https://files.example/s/abc")
	assert.Contains(t, out, "expires never")
}
