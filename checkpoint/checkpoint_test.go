package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dselans/ripgzip/checkpoint/types"
	"github.com/dselans/ripgzip/config"
)

func TestFileStoreRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cp.json")
	store := NewFileStore(file)

	cp, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, cp.Len())

	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cp.MarkDone(&types.Entry{Path: "/data/a.gz", Size: 100, ModTime: mtime, Members: 2, Written: 400})

	require.NoError(t, store.Save(cp))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.True(t, loaded.IsDone("/data/a.gz", 100, mtime))
	assert.False(t, loaded.IsDone("/data/a.gz", 101, mtime))
	assert.False(t, loaded.IsDone("/data/b.gz", 100, mtime))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(file))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	fresh, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, fresh.Len())
}

func TestFileStoreRejectsCorrupt(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cp.json")
	store := NewFileStore(file)

	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0644))
	_, err := store.Load()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(file, []byte(`{"completed":{"a.gz":{"path":"b.gz"}}}`), 0644))
	_, err = store.Load()
	assert.Error(t, err)
}

func TestFileStoreSaveToMissingDir(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope", "cp.json"))
	assert.Error(t, store.Save(types.New()))
}

func TestNew(t *testing.T) {
	cfg := config.Default()

	cfg.TOML.Config.CheckpointStore = config.CheckpointStoreFile
	store, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	cfg.TOML.Config.CheckpointStore = config.CheckpointStoreNone
	store, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &NoopStore{}, store)

	cfg.TOML.Config.CheckpointStore = "tape"
	_, err = New(cfg)
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(&config.TOMLRedis{Address: "127.0.0.1:1", Key: "k"})
	assert.Error(t, err)

	_, err = NewRedisStore(nil)
	assert.Error(t, err)
}

func TestNoopStore(t *testing.T) {
	store := &NoopStore{}

	cp, err := store.Load()
	require.NoError(t, err)

	cp.MarkDone(&types.Entry{Path: "x"})
	require.NoError(t, store.Save(cp))

	again, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, again.Len())
	assert.NoError(t, store.Clear())
	assert.NoError(t, store.Close())
}
