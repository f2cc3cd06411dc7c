package agents_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/agents"
	"scrapeforge/internal/artifact"
	"scrapeforge/internal/llmclient"
)

func testRunConfig() *artifact.RunConfig {
	return &artifact.RunConfig{
		Fields: []artifact.AvailableField{
			{Name: "title", Description: "product title", SelectorGuess: "h2.title"},
		},
		Pagination:       artifact.PaginationFirstPage,
		PaginationConfig: artifact.PaginationConfig{Mode: artifact.PaginationModeFirstPage},
		Format:           artifact.FormatJSON,
		BrowserMode:      artifact.BrowserHeadless,
	}
}

func TestCodeGenAppendsRenderedMainBlock(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	client := &llmclient.FakeClient{Responses: []string{
		"```python\nclass Scraper(BaseScraper):\n    def navigate(self, page):\n        pass\n    def get_items(self, page):\n        return []\n    def parse_item(self, item):\n        return {}\n```",
	}}

	report, err := agents.CodeGen(context.Background(), client, store, &artifact.AnalysisSnapshot{}, &artifact.Understanding{}, testRunConfig())
	require.NoError(t, err)
	require.NotNil(t, report)

	source, err := store.LoadScraperSource()
	require.NoError(t, err)
	require.Contains(t, source, "class Scraper(BaseScraper)")
	require.Contains(t, source, `if __name__ == "__main__"`)
	require.FileExists(t, store.Path("runtime.py"))
	require.FileExists(t, store.Path("llm_logs/codegen_response.py"))
}

func TestCodeGenStripsModelEmittedMainBlock(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	client := &llmclient.FakeClient{Responses: []string{
		"```python\nclass Scraper(BaseScraper):\n    def navigate(self, page):\n        pass\n    def get_items(self, page):\n        return []\n    def parse_item(self, item):\n        return {}\n\nif __name__ == '__main__':\n    print('do not keep this')\n```",
	}}

	_, err = agents.CodeGen(context.Background(), client, store, &artifact.AnalysisSnapshot{}, &artifact.Understanding{}, testRunConfig())
	require.NoError(t, err)

	source, err := store.LoadScraperSource()
	require.NoError(t, err)
	require.NotContains(t, source, "do not keep this")
}

func TestCodeGenReportsSafetyViolationsButStillWritesFile(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	client := &llmclient.FakeClient{Responses: []string{
		"```python\nimport selenium\nclass Scraper(BaseScraper):\n    def navigate(self, page):\n        pass\n```",
	}}

	report, err := agents.CodeGen(context.Background(), client, store, &artifact.AnalysisSnapshot{}, &artifact.Understanding{}, testRunConfig())
	require.NoError(t, err)
	require.False(t, report.Safe)
	require.FileExists(t, store.Path("generated_scraper.py"))
}
