package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/artifact"
	"scrapeforge/internal/runtime"
)

func TestRenderIncludesFinalizedConfigValues(t *testing.T) {
	cfg := &artifact.RunConfig{
		BrowserMode:      artifact.BrowserHeaded,
		Format:           artifact.FormatCSV,
		PaginationConfig: artifact.PaginationConfig{Mode: artifact.PaginationModeAll, MaxPages: 5},
	}

	out := runtime.Render(cfg)
	require.Contains(t, out, `if __name__ == "__main__":`)
	require.Contains(t, out, `mode="headed"`)
	require.Contains(t, out, `output_format="csv"`)
	require.Contains(t, out, `"mode": "all"`)
	require.Contains(t, out, `"max_pages": 5`)
	require.Contains(t, out, "scraper.run()")
}

func TestRenderThreadsNextButtonSelectorIntoPaginationMeta(t *testing.T) {
	cfg := &artifact.RunConfig{
		BrowserMode:        artifact.BrowserHeadless,
		Format:             artifact.FormatJSON,
		PaginationConfig:   artifact.PaginationConfig{Mode: artifact.PaginationModeAll, MaxPages: 5},
		NextButtonSelector: "button.next-page",
	}

	out := runtime.Render(cfg)
	require.Contains(t, out, `pagination_meta={"next_button_selector": "button.next-page"}`)
}

func TestRenderOmitsNextButtonSelectorWhenUnset(t *testing.T) {
	cfg := &artifact.RunConfig{BrowserMode: artifact.BrowserHeadless, Format: artifact.FormatJSON}

	out := runtime.Render(cfg)
	require.Contains(t, out, "pagination_meta={},")
}

func TestHasRequiredMainBlockAcceptsRenderedOutput(t *testing.T) {
	cfg := &artifact.RunConfig{BrowserMode: artifact.BrowserHeadless, Format: artifact.FormatJSON}
	code := "class Scraper(BaseScraper):\n    pass\n" + runtime.Render(cfg)
	require.True(t, runtime.HasRequiredMainBlock(code))
}

func TestHasRequiredMainBlockRejectsMissingGuard(t *testing.T) {
	require.False(t, runtime.HasRequiredMainBlock("class Scraper(BaseScraper):\n    pass\n"))
}

func TestHasRequiredMainBlockRejectsGuardMissingKeywordArgs(t *testing.T) {
	code := "if __name__ == \"__main__\":\n    Scraper().run()\n"
	require.False(t, runtime.HasRequiredMainBlock(code))
}

func TestBaseScraperSourceDeclaresRequiredAbstractMethods(t *testing.T) {
	require.Contains(t, runtime.BaseScraperSource, "class BaseScraper(ABC):")
	require.Contains(t, runtime.BaseScraperSource, "def navigate(self, page):")
	require.Contains(t, runtime.BaseScraperSource, "def get_items(self, page):")
	require.Contains(t, runtime.BaseScraperSource, "def parse_item(self, item):")
	require.Contains(t, runtime.BaseScraperSource, "def run(self):")
}
