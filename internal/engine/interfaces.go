package engine

import (
	"context"
	"time"

	"scrapeforge/internal/artifact"
	"scrapeforge/internal/browser"
)

// TestDecision is the operator's verdict after reviewing a TEST preview,
// driving TEST's fan-out transition in spec §4.1's state table.
type TestDecision string

const (
	TestAccept      TestDecision = "accept"
	TestFixColumns  TestDecision = "fix_columns"
	TestRegenerate  TestDecision = "regenerate"
	TestReconfigure TestDecision = "reconfigure"
	TestManual      TestDecision = "manual"
	TestAbort       TestDecision = "abort"
)

// OperatorPrompt is the external interactive-terminal-UI capability spec §1
// names as deliberately out of core scope. The Engine depends only on this
// interface; the thin CLI layer supplies the real implementation (huh
// forms), and CI mode supplies a non-interactive implementation that
// always picks the documented defaults.
type OperatorPrompt interface {
	// ConfirmGuidedReady blocks until the operator signals the guided
	// browser window is ready (spec §4.1: "GUIDED_ACCESS -> RECON (always,
	// after the operator confirms 'ready')").
	ConfirmGuidedReady(ctx context.Context) error

	// ConfirmInteractiveSolve blocks until the operator either solves the
	// challenge (solved=true) or cancels/closes the browser (solved=false).
	ConfirmInteractiveSolve(ctx context.Context) (solved bool, err error)

	// ConfirmLowConfidenceOverride asks the operator whether to proceed
	// despite a low-confidence or infeasible Understanding verdict (interactive
	// non-CI runs only; CI mode never calls this — it fails hard per spec §4.1).
	ConfirmLowConfidenceOverride(ctx context.Context, u *artifact.Understanding) (proceed bool, err error)

	// ChooseFields lets the operator pick which proposed fields to keep.
	ChooseFields(ctx context.Context, available []artifact.AvailableField) ([]artifact.AvailableField, error)

	// ChoosePagination lets the operator pick a page-coverage policy.
	ChoosePagination(ctx context.Context, signal artifact.UnderstandingPagination) (artifact.PaginationChoice, error)

	// ChooseFormat lets the operator pick an output serialization.
	ChooseFormat(ctx context.Context) (artifact.OutputFormat, error)

	// ChooseBrowserMode lets the operator override the recommended mode.
	ChooseBrowserMode(ctx context.Context, recommended artifact.BrowserMode) (artifact.BrowserMode, error)

	// ReviewTest presents the test preview (row count and sample) and
	// returns the operator's decision, plus flagged column names when the
	// decision is TestFixColumns.
	ReviewTest(ctx context.Context, recordCount int, sample []map[string]interface{}) (TestDecision, []string, error)
}

// ProgressReporter is the wizard-mode emoji-tagged progress sink (spec §7:
// "Wizard mode emits short, emoji-tagged progress lines per stage"). The
// expert-mode CLI implementation instead emits structured log lines; the
// Engine is agnostic to which.
type ProgressReporter interface {
	Stage(state artifact.State)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// NullProgress discards everything, used by tests and CI mode.
type NullProgress struct{}

func (NullProgress) Stage(artifact.State) {}
func (NullProgress) Info(string)          {}
func (NullProgress) Warn(string)          {}
func (NullProgress) Error(string)         {}

// ScriptExecutor is the Script Executor capability of spec §6.
type ScriptExecutor interface {
	Run(ctx context.Context, scriptPath, cwd string, timeout time.Duration) (ok bool, output string, err error)
}

// BrowserFactory constructs a fresh, unstarted browser.Manager for one
// handler's exclusive use (spec §5: "no event loop outlives a handler" —
// every handler that needs a browser calls this, Start()s it, does its
// work, and Close()s it before returning).
type BrowserFactory func(headed bool) *browser.Manager
