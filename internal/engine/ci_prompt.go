package engine

import (
	"context"
	"fmt"

	"scrapeforge/internal/artifact"
)

// CIPrompt is the non-interactive OperatorPrompt CI mode wires in: spec
// §4.1's "CI mode collapses interactive choices to defaults" means most
// handlers never call it, but GUIDED_ACCESS and INTERACTIVE_SOLVE can still
// be reached (a hostile site forces guided access regardless of mode), and
// there is no operator to drive them in a CI run.
type CIPrompt struct{}

func (CIPrompt) ConfirmGuidedReady(context.Context) error { return nil }

func (CIPrompt) ConfirmInteractiveSolve(context.Context) (bool, error) {
	return false, fmt.Errorf("no operator available to solve interactive challenge in CI mode")
}

func (CIPrompt) ConfirmLowConfidenceOverride(context.Context, *artifact.Understanding) (bool, error) {
	return false, nil
}

func (CIPrompt) ChooseFields(_ context.Context, available []artifact.AvailableField) ([]artifact.AvailableField, error) {
	return available, nil
}

func (CIPrompt) ChoosePagination(context.Context, artifact.UnderstandingPagination) (artifact.PaginationChoice, error) {
	return artifact.PaginationFirstPage, nil
}

func (CIPrompt) ChooseFormat(context.Context) (artifact.OutputFormat, error) {
	return artifact.FormatJSON, nil
}

func (CIPrompt) ChooseBrowserMode(_ context.Context, recommended artifact.BrowserMode) (artifact.BrowserMode, error) {
	return recommended, nil
}

func (CIPrompt) ReviewTest(context.Context, int, []map[string]interface{}) (TestDecision, []string, error) {
	return TestAccept, nil, nil
}
