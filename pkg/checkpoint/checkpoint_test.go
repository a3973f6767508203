package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "eoscraper/pkg/errors"
	"eoscraper/pkg/logger"
	"eoscraper/pkg/models"
	"eoscraper/pkg/storage"
)

type failingBackend struct {
	storage.Backend
	saveErr error
}

func (f *failingBackend) Save(ctx context.Context, snap models.Snapshot) error {
	return f.saveErr
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	backend, err := storage.NewJSONFile(path)
	require.NoError(t, err)
	return NewStore(backend, logger.NewNopLogger()), path
}

func rec(pairs ...string) models.Record {
	var r models.Record
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadMissingIsEmpty", func(t *testing.T) {
		store, _ := newTestStore(t)
		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, snap)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("DisjointMergesAddUp", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.Load(ctx)
		require.NoError(t, err)

		first := models.Snapshot{"A": rec("n", "1"), "B": rec("n", "2")}
		second := models.Snapshot{"C": rec("n", "3"), "D": rec("n", "4"), "E": rec("n", "5")}

		assert.Equal(t, 2, store.Merge(first))
		assert.Equal(t, 3, store.Merge(second))
		assert.Equal(t, len(first)+len(second), store.Len())
	})

	t.Run("MergeNeverOverwrites", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.Load(ctx)
		require.NoError(t, err)

		store.Merge(models.Snapshot{"A": rec("name", "original")})
		added := store.Merge(models.Snapshot{"A": rec("name", "replacement"), "B": rec("name", "new")})

		assert.Equal(t, 1, added)
		got, ok := store.Get("A")
		require.True(t, ok)
		assert.Equal(t, rec("name", "original"), got)
		assert.True(t, store.Contains("B"))
		assert.False(t, store.Contains("Z"))
	})

	t.Run("FlushAndReload", func(t *testing.T) {
		store, path := newTestStore(t)
		_, err := store.Load(ctx)
		require.NoError(t, err)

		want := models.Snapshot{
			"DE-MF-1": rec("Name", "Acme", "City", "Berlin", "Actor URL", "https://example.test/#/screen/eo/1"),
			"FR-IM-2": rec("Name", "Dupont", "Phone", "-"),
		}
		store.Merge(want)
		require.NoError(t, store.Flush(ctx))
		assert.False(t, store.LastFlush().IsZero())

		backend, err := storage.NewJSONFile(path)
		require.NoError(t, err)
		reloaded := NewStore(backend, logger.NewNopLogger())
		got, err := reloaded.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("FlushBeforeLoadRefused", func(t *testing.T) {
		store, _ := newTestStore(t)
		err := store.Flush(ctx)
		require.Error(t, err)
		assert.Equal(t, errs.ErrorTypeStorage, errs.Classify(err))
	})

	t.Run("FlushErrorIsStorageError", func(t *testing.T) {
		backend, err := storage.NewJSONFile(filepath.Join(t.TempDir(), "cp.json"))
		require.NoError(t, err)
		store := NewStore(&failingBackend{Backend: backend, saveErr: errors.New("disk full")}, logger.NewNopLogger())
		_, err = store.Load(ctx)
		require.NoError(t, err)

		err = store.Flush(ctx)
		require.Error(t, err)
		assert.Equal(t, errs.ErrorTypeStorage, errs.Classify(err))
	})

	t.Run("SnapshotIsACopy", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.Load(ctx)
		require.NoError(t, err)
		store.Merge(models.Snapshot{"A": rec("k", "v")})

		snap := store.Snapshot()
		snap["A"][0].Value = "mutated"
		got, _ := store.Get("A")
		assert.Equal(t, "v", got[0].Value)
	})
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src, err := storage.NewJSONFile(filepath.Join(dir, "cp.json"))
	require.NoError(t, err)
	want := models.Snapshot{"A": rec("x", "1"), "B": rec("y", "2")}
	require.NoError(t, src.Save(ctx, want))

	dst, err := storage.OpenSQLite(filepath.Join(dir, "cp.db"))
	require.NoError(t, err)
	defer dst.Close()

	n, err := Migrate(ctx, src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := dst.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
