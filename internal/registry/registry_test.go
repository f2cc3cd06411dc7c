package registry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/artifact"
	"scrapeforge/internal/registry"
)

func openTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func sampleSession(id string, state artifact.State, updatedAt time.Time) *artifact.Session {
	return &artifact.Session{
		ProjectID:  id,
		URL:        "https://example.com/" + id,
		ProjectDir: "/projects/" + id,
		State:      state,
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
	}
}

func TestUpsertThenGet(t *testing.T) {
	r := openTestRegistry(t)
	session := sampleSession("p1", artifact.StateTest, time.Now())

	require.NoError(t, r.Upsert(session))

	entry, err := r.Get("p1")
	require.NoError(t, err)
	require.Equal(t, "p1", entry.ProjectID)
	require.Equal(t, session.URL, entry.URL)
	require.Equal(t, artifact.StateTest, entry.State)
}

func TestUpsertOverwritesExistingRow(t *testing.T) {
	r := openTestRegistry(t)
	now := time.Now()
	require.NoError(t, r.Upsert(sampleSession("p1", artifact.StateInit, now)))
	require.NoError(t, r.Upsert(sampleSession("p1", artifact.StateDone, now.Add(time.Minute))))

	entry, err := r.Get("p1")
	require.NoError(t, err)
	require.Equal(t, artifact.StateDone, entry.State)
}

func TestListOrdersByUpdatedAtDescending(t *testing.T) {
	r := openTestRegistry(t)
	base := time.Now()
	require.NoError(t, r.Upsert(sampleSession("older", artifact.StateDone, base)))
	require.NoError(t, r.Upsert(sampleSession("newer", artifact.StateDone, base.Add(time.Hour))))

	entries, err := r.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "newer", entries[0].ProjectID)
	require.Equal(t, "older", entries[1].ProjectID)
}

func TestGetUnknownProjectErrors(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.Get("nonexistent")
	require.Error(t, err)
}

func TestRemoveDeletesRow(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.Upsert(sampleSession("p1", artifact.StateInit, time.Now())))
	require.NoError(t, r.Remove("p1"))

	_, err := r.Get("p1")
	require.Error(t, err)
}

func TestRebuildReplacesAllRows(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.Upsert(sampleSession("stale", artifact.StateInit, time.Now())))

	require.NoError(t, r.Rebuild([]*artifact.Session{
		sampleSession("fresh1", artifact.StateTest, time.Now()),
		sampleSession("fresh2", artifact.StateDone, time.Now()),
	}))

	entries, err := r.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	_, err = r.Get("stale")
	require.Error(t, err)
}

func TestDiscoverSessionsWalksOneLevelDeep(t *testing.T) {
	root := t.TempDir()
	store1, err := artifact.New(filepath.Join(root, "project_a"))
	require.NoError(t, err)
	require.NoError(t, store1.SaveSession(sampleSession("a", artifact.StateInit, time.Now())))

	store2, err := artifact.New(filepath.Join(root, "project_b"))
	require.NoError(t, err)
	require.NoError(t, store2.SaveSession(sampleSession("b", artifact.StateDone, time.Now())))

	sessions, err := registry.DiscoverSessions(root)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
}

func TestDiscoverSessionsReturnsNilForMissingRoot(t *testing.T) {
	sessions, err := registry.DiscoverSessions(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.Nil(t, sessions)
}

func TestDiscoverSessionsSkipsDirsWithoutSession(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not_a_project"), 0o755))

	sessions, err := registry.DiscoverSessions(root)
	require.NoError(t, err)
	require.Empty(t, sessions)
}
