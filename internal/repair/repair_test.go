package repair_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/repair"
)

func TestClassify(t *testing.T) {
	cases := map[string]repair.FailureKind{
		"Error: navigation timeout exceeded":            repair.FailureTimeout,
		"operation timed out after 120s":                repair.FailureTimeout,
		"SyntaxError: unexpected token":                 repair.FailureSyntax,
		"line 12: syntax error near 'def'":              repair.FailureSyntax,
		"waiting for selector `.item` failed":           repair.FailureSelector,
		"NoSuchElementException: no such element":       repair.FailureSelector,
		"ConnectionError: failed to resolve dns":        repair.FailureNetwork,
		"KeyError: 'price'":                             repair.FailureGeneral,
	}
	for output, want := range cases {
		require.Equal(t, want, repair.Classify(output), "input: %s", output)
	}
}

func TestFailureKindRecoverable(t *testing.T) {
	require.True(t, repair.FailureTimeout.Recoverable())
	require.True(t, repair.FailureSyntax.Recoverable())
	require.True(t, repair.FailureSelector.Recoverable())
	require.False(t, repair.FailureNetwork.Recoverable())
	require.False(t, repair.FailureGeneral.Recoverable())
}

func TestLoopRunSucceedsOnFirstPass(t *testing.T) {
	loop := repair.New(2, nil)

	runner := func(ctx context.Context) (bool, string, error) { return true, "", nil }
	repairAgent := func(ctx context.Context, output string, attempt int, columnHints []string) error {
		t.Fatal("repair agent should not be called when the test passes immediately")
		return nil
	}

	ok, err := loop.Run(context.Background(), runner, repairAgent, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoopRunRepairsThenSucceeds(t *testing.T) {
	loop := repair.New(2, nil)

	calls := 0
	runner := func(ctx context.Context) (bool, string, error) {
		calls++
		if calls < 2 {
			return false, "SyntaxError: bad token", nil
		}
		return true, "", nil
	}
	repaired := 0
	repairAgent := func(ctx context.Context, output string, attempt int, columnHints []string) error {
		repaired++
		return nil
	}

	ok, err := loop.Run(context.Background(), runner, repairAgent, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, repaired)
}

func TestLoopRunExhaustsBudget(t *testing.T) {
	loop := repair.New(1, nil)

	runner := func(ctx context.Context) (bool, string, error) { return false, "timeout", nil }
	repairCalls := 0
	repairAgent := func(ctx context.Context, output string, attempt int, columnHints []string) error {
		repairCalls++
		return nil
	}

	ok, err := loop.Run(context.Background(), runner, repairAgent, nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, repairCalls)
}

func TestLoopRunStopsWhenRepairAgentErrors(t *testing.T) {
	loop := repair.New(2, nil)

	runner := func(ctx context.Context) (bool, string, error) { return false, "selector not found", nil }
	repairAgent := func(ctx context.Context, output string, attempt int, columnHints []string) error {
		return fmt.Errorf("llm call failed")
	}

	ok, err := loop.Run(context.Background(), runner, repairAgent, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoopRunPropagatesTestRunnerError(t *testing.T) {
	loop := repair.New(2, nil)

	runner := func(ctx context.Context) (bool, string, error) { return false, "", fmt.Errorf("subprocess spawn failed") }
	repairAgent := func(ctx context.Context, output string, attempt int, columnHints []string) error { return nil }

	ok, err := loop.Run(context.Background(), runner, repairAgent, nil)
	require.Error(t, err)
	require.False(t, ok)
}
