package artifact_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"scrapeforge/internal/artifact"
)

func TestSessionAdvanceAppendsHistory(t *testing.T) {
	sess := &artifact.Session{State: artifact.StateInit}
	now := time.Now()

	sess.Advance(artifact.StateRecon, "probe completed", now)

	require.Equal(t, artifact.StateRecon, sess.State)
	require.Equal(t, now, sess.UpdatedAt)
	require.Len(t, sess.History, 1)
	require.Equal(t, artifact.StateInit, sess.History[0].From)
	require.Equal(t, artifact.StateRecon, sess.History[0].To)
	require.Equal(t, "probe completed", sess.History[0].Note)
}

func TestStateTerminal(t *testing.T) {
	require.True(t, artifact.StateDone.Terminal())
	require.True(t, artifact.StateFailed.Terminal())
	require.False(t, artifact.StateRecon.Terminal())
	require.False(t, artifact.StateTest.Terminal())
}

func TestStoreSaveLoadSessionRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	sess := &artifact.Session{
		ProjectID: "abc-123",
		URL:       "https://example.com/products",
		State:     artifact.StateInit,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.SaveSession(sess))

	loaded, err := store.LoadSession()
	require.NoError(t, err)
	require.Equal(t, sess.ProjectID, loaded.ProjectID)
	require.Equal(t, sess.URL, loaded.URL)
	require.Equal(t, sess.State, loaded.State)
}

// TestStoreSessionRoundTripIsFieldForField exercises spec §8's round-trip
// invariant directly: saving then loading a Session with history and flags
// populated must reproduce every field, not just the ones the earlier
// smoke test happens to check.
func TestStoreSessionRoundTripIsFieldForField(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	created := time.Now().UTC().Truncate(time.Second)
	sess := &artifact.Session{
		ProjectID: "abc-123",
		URL:       "https://example.com/products",
		State:     artifact.StateUserConfig,
		CreatedAt: created,
		UpdatedAt: created,
		History: []artifact.HistoryEntry{
			{From: artifact.StateInit, To: artifact.StateRecon, Note: "probe completed", Timestamp: created},
		},
		Flags: artifact.SessionFlags{LoginPerformed: true, FixColumns: []string{"price"}},
	}
	require.NoError(t, store.SaveSession(sess))

	loaded, err := store.LoadSession()
	require.NoError(t, err)
	if diff := cmp.Diff(sess, loaded); diff != "" {
		t.Fatalf("session round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreCreatesExpectedSubdirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)
	require.DirExists(t, store.Path("logs"))
	require.DirExists(t, store.Path("llm_logs"))
	require.DirExists(t, store.Path("output"))

	require.NoError(t, store.WriteLLMLog("call1_response.json", `{"ok":true}`))
	require.FileExists(t, store.Path("llm_logs/call1_response.json"))
}

func TestStoreLoadMissingArtifactErrors(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	_, err = store.LoadScanProfile()
	require.Error(t, err)
	require.False(t, store.Exists("scan_profile.json"))
}

func TestStoreSaveOverwritesWholeFile(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	first := &artifact.ScanProfile{HostilityScore: 10}
	second := &artifact.ScanProfile{HostilityScore: 90}

	require.NoError(t, store.SaveScanProfile(first))
	require.NoError(t, store.SaveScanProfile(second))

	loaded, err := store.LoadScanProfile()
	require.NoError(t, err)
	require.Equal(t, 90, loaded.HostilityScore)
}

func TestReadOutputPreviewRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	records := make([]map[string]interface{}, 0, 20)
	for i := 0; i < 20; i++ {
		records = append(records, map[string]interface{}{"id": i})
	}
	require.NoError(t, store.SaveJSON("output/data.json", records))

	preview, total, err := store.ReadOutputPreview(5)
	require.NoError(t, err)
	require.Equal(t, 20, total)
	require.Len(t, preview, 5)
}

func TestOutputNonEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	require.False(t, store.OutputNonEmpty())

	require.NoError(t, store.SaveJSON("output/data.json", []map[string]interface{}{{"id": 1}}))
	require.True(t, store.OutputNonEmpty())
}
