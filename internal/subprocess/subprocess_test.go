package subprocess_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/subprocess"
)

// writeScript writes a shell script the Executor runs via "sh <name>" in
// place of a real Python interpreter, letting these tests exercise the
// process-spawning, timeout, and output-gating logic without a Python
// toolchain present.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestRunSucceedsWhenOutputDataIsWritten(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "output"), 0o755))
	script := writeScript(t, dir, "scraper.py", "#!/bin/sh\necho working\nprintf '[{\"a\":1}]' > output/data.json\n")

	exec := subprocess.New("sh")
	ok, output, err := exec.Run(context.Background(), script, dir, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, output, "working")
}

func TestRunFailsGateWhenOutputDataMissing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "output"), 0o755))
	script := writeScript(t, dir, "scraper.py", "#!/bin/sh\necho no data produced\n")

	exec := subprocess.New("sh")
	ok, output, err := exec.Run(context.Background(), script, dir, 5*time.Second)
	require.NoError(t, err)
	require.False(t, ok)
	require.Contains(t, output, "missing or empty")
}

func TestRunFailsGateWhenOutputDataIsEmptyArray(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "output"), 0o755))
	script := writeScript(t, dir, "scraper.py", "#!/bin/sh\nprintf '[]' > output/data.json\n")

	exec := subprocess.New("sh")
	ok, _, err := exec.Run(context.Background(), script, dir, 5*time.Second)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRunReportsNonZeroExitAsFailureNotError(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "scraper.py", "#!/bin/sh\necho boom >&2\nexit 1\n")

	exec := subprocess.New("sh")
	ok, output, err := exec.Run(context.Background(), script, dir, 5*time.Second)
	require.NoError(t, err)
	require.False(t, ok)
	require.Contains(t, output, "boom")
}

func TestRunTimesOutAsClassificationNotError(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "scraper.py", "#!/bin/sh\nsleep 5\n")

	exec := subprocess.New("sh")
	ok, output, err := exec.Run(context.Background(), script, dir, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "timed out", output)
}

func TestNewDefaultsToPython3(t *testing.T) {
	exec := subprocess.New("")
	require.Equal(t, "python3", exec.PythonBin)
}

func TestCheckInterpreterSucceedsForBinaryOnPath(t *testing.T) {
	exec := subprocess.New("sh")
	require.NoError(t, exec.CheckInterpreter())
}

func TestCheckInterpreterErrorsForMissingBinary(t *testing.T) {
	exec := subprocess.New("definitely-not-a-real-interpreter-binary")
	require.Error(t, exec.CheckInterpreter())
}
