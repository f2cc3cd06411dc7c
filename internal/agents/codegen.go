package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"scrapeforge/internal/artifact"
	"scrapeforge/internal/llmclient"
	"scrapeforge/internal/runtime"
)

const codegenSystemPrompt = `You are a web scraper code generator. Given a finalized field/pagination/format
configuration and a description of the target page's structure, emit a single
Python source file implementing the scraper. The file MUST:
  - subclass BaseScraper (imported as "from runtime import BaseScraper")
  - implement navigate(self, page), get_items(self, page), and parse_item(self, item)
  - never import selenium, playwright, or pyppeteer directly — the runtime owns the browser
  - never open files directly — the runtime's save step owns all file I/O
  - never target selectors that look like randomized class hashes or per-item dynamic IDs
  - end with the exact __main__ block provided to you verbatim
Respond with the Python source only, in a single fenced code block.`

// CodeGen calls the CodeGen agent: it loads the finalized RunConfig and the
// AnalysisSnapshot, asks the LLM to emit a scraper body, appends the
// Go-rendered __main__ block (never left to the model), checks the result
// against the safety invariants of spec §4.4, logs the raw reply, and
// writes generated_scraper.py plus the runtime library it depends on.
func CodeGen(ctx context.Context, client llmclient.Client, store *artifact.Store, snapshot *artifact.AnalysisSnapshot, understanding *artifact.Understanding, cfg *artifact.RunConfig) (*SafetyReport, error) {
	userPrompt, err := marshalCodegenPrompt(snapshot, understanding, cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal codegen prompt: %w", err)
	}

	raw, err := client.Call(ctx, codegenSystemPrompt, userPrompt, false)
	if err != nil {
		return nil, fmt.Errorf("call codegen agent: %w", err)
	}
	if err := store.WriteLLMLog("codegen_response.py", raw); err != nil {
		return nil, fmt.Errorf("log codegen response: %w", err)
	}

	body := ParseCode(raw)
	final := assembleScraperSource(body, cfg)

	report := CheckSafety(final)

	if err := store.SaveScraperSource(final); err != nil {
		return report, fmt.Errorf("write generated_scraper.py: %w", err)
	}
	if err := writeRuntimeLibrary(store); err != nil {
		return report, fmt.Errorf("write runtime library: %w", err)
	}

	return report, nil
}

// assembleScraperSource strips any __main__ block the model produced on
// its own and appends the Go-rendered one, so the exact invocation shape
// spec §4.4 requires is never left to chance.
func assembleScraperSource(body string, cfg *artifact.RunConfig) string {
	trimmed := stripExistingMain(body)
	return trimmed + "\n" + runtime.Render(cfg)
}

func writeRuntimeLibrary(store *artifact.Store) error {
	path := store.Path("runtime.py")
	return writeFileIfDiffers(path, runtime.BaseScraperSource)
}

func marshalCodegenPrompt(snapshot *artifact.AnalysisSnapshot, understanding *artifact.Understanding, cfg *artifact.RunConfig) (string, error) {
	payload := struct {
		Snapshot      *artifact.AnalysisSnapshot `json:"analysis_snapshot"`
		Understanding *artifact.Understanding    `json:"understanding"`
		RunConfig     *artifact.RunConfig        `json:"run_config"`
	}{snapshot, understanding, cfg}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
