package agents

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"scrapeforge/internal/artifact"
	"scrapeforge/internal/llmclient"
)

const repairSystemPrompt = `You are repairing a broken Python web scraper. You will be given the current
source, the test runner's failure output, and the original configuration it
was generated from. Fix the failure without rewriting the file from scratch.
You MUST preserve the trailing "if __name__ == \"__main__\":" block exactly
as given and MUST NOT remove the BaseScraper subclass. Respond with the
complete corrected Python source in a single fenced code block.`

// Repair calls the Repair agent: given the current scraper source and the
// failure text, it asks the LLM for a corrected file, logs the raw reply as
// llm_logs/repair_response_<unix-seconds>.py, applies the same parse/fix
// ladder CodeGen uses, and replaces generated_scraper.py in place. columnHints, when non-empty, is folded into the prompt as a
// single textual instruction line (confirmed against
// scrapewizard/healing/repair_loop.py — see SPEC_FULL §3).
func Repair(ctx context.Context, client llmclient.Client, store *artifact.Store, currentSource, failureOutput string, columnHints []string, attempt int) (*SafetyReport, error) {
	userPrompt := buildRepairPrompt(currentSource, failureOutput, columnHints)

	raw, err := client.Call(ctx, repairSystemPrompt, userPrompt, false)
	if err != nil {
		return nil, fmt.Errorf("call repair agent: %w", err)
	}
	logName := "repair_response_" + strconv.FormatInt(time.Now().Unix(), 10) + ".py"
	if err := store.WriteLLMLog(logName, raw); err != nil {
		return nil, fmt.Errorf("log repair response: %w", err)
	}

	repaired := ParseCode(raw)
	if !HasMainBlock(repaired) {
		// The model dropped the __main__ guard despite instructions; fall
		// back to the prior source's trailing block rather than emit a
		// file the runtime can't invoke.
		repaired = repaired + "\n" + extractMainBlock(currentSource)
	}

	report := CheckSafety(repaired)
	if err := store.SaveScraperSource(repaired); err != nil {
		return report, fmt.Errorf("write repaired generated_scraper.py: %w", err)
	}
	return report, nil
}

// HasMainBlock reports whether code contains a __main__ guard at all
// (a looser check than runtime.HasRequiredMainBlock, used here only to
// decide whether the fallback-reattach branch is needed).
func HasMainBlock(code string) bool {
	return strings.Contains(code, `if __name__ == "__main__"`) || strings.Contains(code, `if __name__ == '__main__'`)
}

func extractMainBlock(code string) string {
	m := mainBlockPattern.FindString(code)
	return m
}

func buildRepairPrompt(currentSource, failureOutput string, columnHints []string) string {
	var b strings.Builder
	b.WriteString("## Current source\n```python\n")
	b.WriteString(currentSource)
	b.WriteString("\n```\n\n## Failure output\n```\n")
	b.WriteString(failureOutput)
	b.WriteString("\n```\n")
	if len(columnHints) > 0 {
		fmt.Fprintf(&b, "\n## Operator feedback\nFocus the fix on these fields, which the operator flagged as incorrect: %s.\n", strings.Join(columnHints, ", "))
	}
	return b.String()
}
