package datastore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "store.json"))
	cfg.AutoSaveInterval = time.Hour
	cfg.Logger = zerolog.Nop()
	return cfg
}

func TestPutGetPersistsAcrossReopen(t *testing.T) {
	cfg := testConfig(t)
	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)

	require.NoError(t, ds.Put("a", sample{Name: "first", Count: 2}))
	require.NoError(t, ds.Close())

	reopened, err := NewWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	var got sample
	ok, err := reopened.Get("a", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sample{Name: "first", Count: 2}, got)

	ok, err = reopened.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteAndKeys(t *testing.T) {
	ds, err := NewWithConfig(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	require.NoError(t, ds.Put("b", 1))
	require.NoError(t, ds.Put("a", 2))
	assert.Equal(t, []string{"a", "b"}, ds.Keys())

	ds.Delete("a")
	assert.Equal(t, []string{"b"}, ds.Keys())
	assert.Equal(t, 1, ds.Stats()["keys"])
}

func TestMemoryLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxMemorySize = 8
	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	assert.ErrorIs(t, ds.Put("big", "this value is too long"), ErrMemoryLimit)
	assert.NoError(t, ds.Put("ok", 1))
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	ds, err := NewWithConfig(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	assert.ErrorIs(t, ds.Put("a", 1), ErrClosed)
	assert.ErrorIs(t, ds.SaveToFile(), ErrClosed)
}

func TestBackupsAreRotated(t *testing.T) {
	cfg := testConfig(t)
	cfg.BackupCount = 2
	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	for i := 0; i < 5; i++ {
		require.NoError(t, ds.Put("n", i))
		require.NoError(t, ds.SaveToFile())
		time.Sleep(2 * time.Millisecond)
	}

	matches, err := filepath.Glob(cfg.FilePath + ".backup.*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)

	_, err = os.Stat(cfg.FilePath)
	assert.NoError(t, err)
}
