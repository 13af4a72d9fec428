package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndGet(t *testing.T) {
	r := openTestRegistry(t)

	saved := time.Date(2026, 8, 24, 14, 30, 0, 0, time.UTC)
	require.NoError(t, r.Record(Entry{
		Path:           "/home/user/app",
		Name:           "app",
		LastSnapshotAt: saved,
		SnapshotCount:  3,
	}))

	got, err := r.Get("/home/user/app")
	require.NoError(t, err)
	assert.Equal(t, "app", got.Name)
	assert.Equal(t, 3, got.SnapshotCount)
	assert.True(t, got.LastSnapshotAt.Equal(saved))
}

func TestRecordUpserts(t *testing.T) {
	r := openTestRegistry(t)

	require.NoError(t, r.Record(Entry{Path: "/p", Name: "old", SnapshotCount: 1}))
	require.NoError(t, r.Record(Entry{Path: "/p", Name: "renamed", SnapshotCount: 2}))

	entries, err := r.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "renamed", entries[0].Name)
	assert.Equal(t, 2, entries[0].SnapshotCount)
}

func TestGetMissing(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.Get("/nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	r := openTestRegistry(t)

	require.NoError(t, r.Record(Entry{Path: "/p", Name: "app"}))
	require.NoError(t, r.Remove("/p"))

	_, err := r.Get("/p")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, r.Remove("/p"), ErrNotFound)
}

func TestListOrdersByLastSnapshot(t *testing.T) {
	r := openTestRegistry(t)

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.Record(Entry{Path: "/a", Name: "a", LastSnapshotAt: base}))
	require.NoError(t, r.Record(Entry{Path: "/b", Name: "b", LastSnapshotAt: base.Add(time.Hour)}))
	require.NoError(t, r.Record(Entry{Path: "/c", Name: "c"})) // never snapshotted

	entries, err := r.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "b", entries[0].Name)
	assert.Equal(t, "a", entries[1].Name)
	assert.Equal(t, "c", entries[2].Name)
	assert.True(t, entries[2].LastSnapshotAt.IsZero())
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")

	r1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, r1.Record(Entry{Path: "/p", Name: "app"}))
	require.NoError(t, r1.Close())

	r2, err := Open(path)
	require.NoError(t, err)
	defer r2.Close()

	got, err := r2.Get("/p")
	require.NoError(t, err)
	assert.Equal(t, "app", got.Name)
}
