// Package repair implements the bounded self-healing Repair Loop of spec
// §4.3: alternate test/repair, classify each failure, and terminate with a
// boolean outcome. Adapted from the teacher's internal/autopoiesis's
// generate-validate-retry shape (ouroboros.go), narrowed to the single
// execute/repair alternation this domain needs instead of a general
// tool-synthesis loop.
package repair

import (
	"context"
	"fmt"
	"strings"

	"scrapeforge/internal/logging"
)

// FailureKind classifies a test runner's failure output by substring match,
// a pure function of the stderr/stdout text (spec §9: "the classifier a
// pure function of the stderr text").
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout_error"
	FailureSyntax    FailureKind = "syntax_error"
	FailureSelector  FailureKind = "selector_error"
	FailureNetwork   FailureKind = "network_error"
	FailureGeneral   FailureKind = "general_error"
)

// Recoverable reports whether a classified failure is considered
// recoverable by a code change. Network and general errors are still
// attempted (spec §4.3 step 3 / §9's documented-but-unendorsed behavior);
// this only affects logging, not control flow.
func (k FailureKind) Recoverable() bool {
	return k != FailureNetwork && k != FailureGeneral
}

// Classify applies spec §4.3's case-insensitive substring matching ladder.
func Classify(output string) FailureKind {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return FailureTimeout
	case strings.Contains(lower, "syntaxerror") || strings.Contains(lower, "syntax error"):
		return FailureSyntax
	case strings.Contains(lower, "selector") || strings.Contains(lower, "no such element") || strings.Contains(lower, "waiting for selector"):
		return FailureSelector
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection") || strings.Contains(lower, "dns"):
		return FailureNetwork
	default:
		return FailureGeneral
	}
}

// TestRunner invokes the generated scraper and reports whether it
// succeeded, plus its combined output text for classification.
type TestRunner func(ctx context.Context) (success bool, output string, err error)

// RepairAgent invokes the Repair agent against the current failure. It
// replaces the scraper source in place; the loop does not re-read it back
// (the next TestRunner call reads the file itself).
type RepairAgent func(ctx context.Context, output string, attempt int, columnHints []string) error

// Loop bounds the execute/repair alternation to AttemptBudget repairs
// (AttemptBudget+1 total test_runner invocations), matching spec §4.3's
// "attempt budget is 2 (i.e., up to 3 tests total)".
type Loop struct {
	AttemptBudget int
	events        *logging.EventLog
}

// New constructs a Loop. events may be nil.
func New(attemptBudget int, events *logging.EventLog) *Loop {
	return &Loop{AttemptBudget: attemptBudget, events: events}
}

func (l *Loop) log(level, msg string, fields map[string]string) {
	if l.events == nil {
		return
	}
	switch level {
	case "warn":
		l.events.Warn(logging.CategoryRepair, msg, fields)
	case "error":
		l.events.Error(logging.CategoryRepair, msg, fields)
	default:
		l.events.Info(logging.CategoryRepair, msg, fields)
	}
}

// Run executes spec §4.3's algorithm. If the Repair agent itself returns an
// error, the loop returns false immediately (no further attempts).
func (l *Loop) Run(ctx context.Context, runner TestRunner, repairAgent RepairAgent, columnHints []string) (bool, error) {
	attempt := 0
	for {
		success, output, err := runner(ctx)
		if err != nil {
			return false, fmt.Errorf("test runner: %w", err)
		}
		if success {
			l.log("info", "test passed", map[string]string{"attempt": fmt.Sprint(attempt)})
			return true, nil
		}

		if attempt >= l.AttemptBudget {
			l.log("warn", "repair budget exhausted", map[string]string{"attempts": fmt.Sprint(attempt)})
			return false, nil
		}

		kind := Classify(output)
		l.log("info", "classified failure", map[string]string{
			"kind":        string(kind),
			"recoverable": fmt.Sprint(kind.Recoverable()),
			"attempt":     fmt.Sprint(attempt),
		})

		if err := repairAgent(ctx, output, attempt, columnHints); err != nil {
			l.log("error", "repair agent failed", map[string]string{"error": err.Error()})
			return false, nil
		}

		attempt++
	}
}
