package agents_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/agents"
)

const validScraper = `
class Scraper(BaseScraper):
    def navigate(self, page):
        page.goto(self.url)

    def get_items(self, page):
        return page.query_selector_all("div.card")

    def parse_item(self, item):
        return {"title": item.inner_text()}

if __name__ == "__main__":
    Scraper().run()
`

func TestCheckSafetyAcceptsValidScraper(t *testing.T) {
	report := agents.CheckSafety(validScraper)
	require.True(t, report.Safe)
	require.Empty(t, report.Violations)
}

func TestCheckSafetyFlagsMissingBaseClass(t *testing.T) {
	code := `
class Scraper:
    def extract(self, page):
        return []

if __name__ == "__main__":
    Scraper().run()
`
	report := agents.CheckSafety(code)
	require.False(t, report.Safe)
	require.Contains(t, violationTypes(report), agents.ViolationMissingBaseClass)
}

func TestCheckSafetyFlagsMissingMain(t *testing.T) {
	code := `
class Scraper(BaseScraper):
    def extract(self, page):
        return []
`
	report := agents.CheckSafety(code)
	require.False(t, report.Safe)
	require.Contains(t, violationTypes(report), agents.ViolationMissingMain)
}

func TestCheckSafetyFlagsDirectBrowserImport(t *testing.T) {
	code := validScraper + "\nfrom playwright.sync_api import sync_playwright\n"
	report := agents.CheckSafety(code)
	require.False(t, report.Safe)
	require.Contains(t, violationTypes(report), agents.ViolationDirectBrowserImport)
}

func TestCheckSafetyFlagsDirectFileIO(t *testing.T) {
	code := validScraper + "\nopen('out.txt', 'w').write('x')\n"
	report := agents.CheckSafety(code)
	require.False(t, report.Safe)
	require.Contains(t, violationTypes(report), agents.ViolationDirectFileIO)
}

func TestCheckSafetyFlagsUnstableSelector(t *testing.T) {
	code := `
class Scraper(BaseScraper):
    def extract(self, page):
        return page.query_selector_all("div.css-1a2b3c4d > span")

if __name__ == "__main__":
    Scraper().run()
`
	report := agents.CheckSafety(code)
	require.False(t, report.Safe)
	require.Contains(t, violationTypes(report), agents.ViolationUnstableSelector)
}

func violationTypes(r *agents.SafetyReport) []agents.ViolationType {
	var out []agents.ViolationType
	for _, v := range r.Violations {
		out = append(out, v.Type)
	}
	return out
}
