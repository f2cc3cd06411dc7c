package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"scrapeforge/internal/artifact"
	"scrapeforge/internal/engine"
)

// huhPrompt is the interactive OperatorPrompt implementation, grounded on
// the huh form-per-question style seen throughout the retrieved pack:
// build one huh.Form per decision point, run it, and translate the result.
type huhPrompt struct{}

func newHuhPrompt() *huhPrompt { return &huhPrompt{} }

func (huhPrompt) ConfirmGuidedReady(ctx context.Context) error {
	var ready bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("A browser window is open. Log in / solve any challenge, then confirm.").
			Affirmative("Ready").
			Negative("Cancel").
			Value(&ready),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("guided access cancelled by operator")
	}
	return nil
}

func (huhPrompt) ConfirmInteractiveSolve(ctx context.Context) (bool, error) {
	var solved bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("The target page appears to be showing a challenge. Solve it in the open browser, then confirm.").
			Affirmative("Solved").
			Negative("Give up").
			Value(&solved),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return solved, nil
}

func (huhPrompt) ConfirmLowConfidenceOverride(ctx context.Context, u *artifact.Understanding) (bool, error) {
	var proceed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Analysis confidence is low (%.2f). Proceed anyway?", u.Confidence)).
			Affirmative("Proceed").
			Negative("Abort").
			Value(&proceed),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return proceed, nil
}

func (huhPrompt) ChooseFields(ctx context.Context, available []artifact.AvailableField) ([]artifact.AvailableField, error) {
	opts := make([]huh.Option[string], len(available))
	for i, f := range available {
		label := f.Name
		if f.Description != "" {
			label = fmt.Sprintf("%s — %s", f.Name, f.Description)
		}
		opts[i] = huh.NewOption(label, f.Name).Selected(true)
	}

	var selected []string
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Which fields should the scraper extract?").
			Options(opts...).
			Value(&selected),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return nil, err
	}

	chosen := make(map[string]bool, len(selected))
	for _, name := range selected {
		chosen[name] = true
	}
	var out []artifact.AvailableField
	for _, f := range available {
		if chosen[f.Name] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (huhPrompt) ChoosePagination(ctx context.Context, signal artifact.UnderstandingPagination) (artifact.PaginationChoice, error) {
	var choice string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("Pagination detected: %s. How much should be collected?", signal.Strategy)).
			Options(
				huh.NewOption("Just the first page", string(artifact.PaginationFirstPage)),
				huh.NewOption("First 5 pages", string(artifact.PaginationLimit5)),
				huh.NewOption("All pages", string(artifact.PaginationAllPages)),
			).
			Value(&choice),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	return artifact.PaginationChoice(choice), nil
}

func (huhPrompt) ChooseFormat(ctx context.Context) (artifact.OutputFormat, error) {
	var format string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Output format").
			Options(
				huh.NewOption("JSON", string(artifact.FormatJSON)),
				huh.NewOption("CSV", string(artifact.FormatCSV)),
				huh.NewOption("Excel (.xlsx)", string(artifact.FormatXLSX)),
			).
			Value(&format),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	return artifact.OutputFormat(format), nil
}

func (huhPrompt) ChooseBrowserMode(ctx context.Context, recommended artifact.BrowserMode) (artifact.BrowserMode, error) {
	var mode string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("Browser mode (recommended: %s)", recommended)).
			Options(
				huh.NewOption(fmt.Sprintf("Use recommended (%s)", recommended), string(recommended)),
				huh.NewOption("Headless", string(artifact.BrowserHeadless)),
				huh.NewOption("Headed", string(artifact.BrowserHeaded)),
			).
			Value(&mode),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	return artifact.BrowserMode(mode), nil
}

func (huhPrompt) ReviewTest(ctx context.Context, recordCount int, sample []map[string]interface{}) (engine.TestDecision, []string, error) {
	fmt.Printf("\ntest run produced %d record(s):\n", recordCount)
	for i, row := range sample {
		fmt.Printf("  [%d] %v\n", i, row)
	}

	var decision string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("How does this look?").
			Options(
				huh.NewOption("Accept", string(engine.TestAccept)),
				huh.NewOption("Some columns are wrong", string(engine.TestFixColumns)),
				huh.NewOption("Regenerate from scratch", string(engine.TestRegenerate)),
				huh.NewOption("Reconfigure (fields/pagination/format)", string(engine.TestReconfigure)),
				huh.NewOption("I'll fix the code myself", string(engine.TestManual)),
				huh.NewOption("Abort", string(engine.TestAbort)),
			).
			Value(&decision),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return "", nil, err
	}

	td := engine.TestDecision(decision)
	if td != engine.TestFixColumns {
		return td, nil, nil
	}

	var columnsRaw string
	colForm := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Which columns are wrong? (comma-separated)").
			Value(&columnsRaw),
	))
	if err := colForm.RunWithContext(ctx); err != nil {
		return td, nil, err
	}
	return td, splitAndTrim(columnsRaw), nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field != "" {
			out = append(out, field)
		}
	}
	return out
}
