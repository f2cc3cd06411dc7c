// Package subprocess implements the default Script Executor capability
// named in spec §6: run a generated scraper in an isolated Python process,
// capture combined output unbuffered, and gate success on both a zero exit
// code and a non-empty output/data.json. Adapted from the teacher's
// exec.Command + CombinedOutput usage throughout cmd/nerd (e.g.
// dom_apply_cmd.go's testCmd.CombinedOutput()), generalized to a
// context-bounded, timeout-enforced executor.
package subprocess

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Executor runs a Python script in a given working directory. pythonBin
// defaults to "python3" if empty.
type Executor struct {
	PythonBin string
}

// New constructs an Executor. pythonBin may be empty to use "python3".
func New(pythonBin string) *Executor {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	return &Executor{PythonBin: pythonBin}
}

// Run executes scriptPath with cwd as its working directory, bounded by
// timeout. It returns (false, "timed out", nil) on timeout per spec §5 —
// this is a classification outcome, not a Go error — and (false,
// combinedOutput, nil) on any non-zero exit. A non-nil error is reserved
// for failures to even start the process.
func (e *Executor) Run(ctx context.Context, scriptPath, cwd string, timeout time.Duration) (ok bool, output string, err error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.PythonBin, filepath.Base(scriptPath))
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(),
		"PYTHONUNBUFFERED=1",
		"PYTHONPATH="+pythonPathWith(cwd),
	)

	combined, runErr := cmd.CombinedOutput()
	text := string(combined)

	if runCtx.Err() == context.DeadlineExceeded {
		return false, "timed out", nil
	}
	if runErr != nil {
		return false, text, nil
	}
	return e.gateOnOutput(cwd, text)
}

// gateOnOutput applies spec §6's additional success gate: a zero exit is
// not enough, output/data.json must exist and be non-empty.
func (e *Executor) gateOnOutput(cwd, text string) (bool, string, error) {
	info, statErr := os.Stat(filepath.Join(cwd, "output", "data.json"))
	if statErr != nil || info.Size() <= 2 {
		return false, text + "\n[executor] output/data.json missing or empty", nil
	}
	return true, text, nil
}

func pythonPathWith(cwd string) string {
	existing := os.Getenv("PYTHONPATH")
	if existing == "" {
		return cwd
	}
	return cwd + string(os.PathListSeparator) + existing
}

// CheckInterpreter verifies the configured Python interpreter is on PATH,
// the core of the `doctor` CLI verb's external-capability check.
func (e *Executor) CheckInterpreter() error {
	if _, err := exec.LookPath(e.PythonBin); err != nil {
		return fmt.Errorf("python interpreter %q not found on PATH: %w", e.PythonBin, err)
	}
	return nil
}
