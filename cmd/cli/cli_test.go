package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddmbot/internal/database"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ddmbot.db")
	db, err := database.Open(context.Background(), database.Options{Path: path, CreditCap: 3})
	require.NoError(t, err)
	_, err = db.EnsureSong(context.Background(), database.Track{UURI: "yt:aaaaaaaaaaa", Title: "First song", Duration: 125})
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSongsCommand(t *testing.T) {
	path := seedDB(t)

	out, err := execute(t, "--database", path, "songs")
	require.NoError(t, err)
	assert.Contains(t, out, "First song")
	assert.Contains(t, out, "2:05")
	assert.Contains(t, out, "never")

	out, err = execute(t, "--database", path, "songs", "--failed")
	require.NoError(t, err)
	assert.Contains(t, out, "No songs found")
}

func TestBlacklistCommand(t *testing.T) {
	path := seedDB(t)

	out, err := execute(t, "--database", path, "song", "blacklist", "1")
	require.NoError(t, err)
	assert.Equal(t, "Song [1] First song was blacklisted\n", out)

	out, err = execute(t, "--database", path, "songs")
	require.NoError(t, err)
	assert.Regexp(t, `│ B\s+│`, out)

	_, err = execute(t, "--database", path, "song", "blacklist", "x")
	assert.EqualError(t, err, `invalid song id "x"`)

	_, err = execute(t, "--database", path, "song", "unblacklist", "99")
	assert.ErrorIs(t, err, database.ErrSongNotFound)
}

func TestIgnoreAndStats(t *testing.T) {
	path := seedDB(t)

	out, err := execute(t, "--database", path, "user", "ignore", "1234")
	require.NoError(t, err)
	assert.Equal(t, "User 1234 was ignored\n", out)

	out, err = execute(t, "--database", path, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Ignored")
	assert.Contains(t, out, "Songs")
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "A")
	assert.Empty(t, renderTable(nil, nil, nil))
}
