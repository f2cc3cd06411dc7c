package logging_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/logging"
)

func TestNewEventLogCreatesBothFiles(t *testing.T) {
	dir := t.TempDir()
	log, err := logging.NewEventLog(dir)
	require.NoError(t, err)
	defer log.Close()

	require.FileExists(t, filepath.Join(dir, "logs", "events.json"))
	require.FileExists(t, filepath.Join(dir, "logs", "master.log"))
}

func TestEventLogInfoWarnErrorAppendJSONLines(t *testing.T) {
	dir := t.TempDir()
	log, err := logging.NewEventLog(dir)
	require.NoError(t, err)

	log.Info(logging.CategoryEngine, "entering state", map[string]string{"state": "INIT"})
	log.Warn(logging.CategoryRepair, "retrying", nil)
	log.Error(logging.CategoryBrowser, "navigation failed", map[string]string{"error": "timeout"})
	require.NoError(t, log.Close())

	f, err := os.Open(filepath.Join(dir, "logs", "events.json"))
	require.NoError(t, err)
	defer f.Close()

	var entries []logging.Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e logging.Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, entries, 3)
	require.Equal(t, logging.CategoryEngine, entries[0].Category)
	require.Equal(t, "info", entries[0].Level)
	require.Equal(t, "warn", entries[1].Level)
	require.Equal(t, "error", entries[2].Level)
}

func TestEventLogAppendsAcrossReopens(t *testing.T) {
	dir := t.TempDir()
	first, err := logging.NewEventLog(dir)
	require.NoError(t, err)
	first.Info(logging.CategoryEngine, "first", nil)
	require.NoError(t, first.Close())

	second, err := logging.NewEventLog(dir)
	require.NoError(t, err)
	second.Info(logging.CategoryEngine, "second", nil)
	require.NoError(t, second.Close())

	data, err := os.ReadFile(filepath.Join(dir, "logs", "master.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "first")
	require.Contains(t, string(data), "second")
}

func TestNewZapLoggerProductionAndDebugModes(t *testing.T) {
	prod, err := logging.NewZapLogger(false)
	require.NoError(t, err)
	require.NotNil(t, prod)

	debug, err := logging.NewZapLogger(true)
	require.NoError(t, err)
	require.NotNil(t, debug)
}
