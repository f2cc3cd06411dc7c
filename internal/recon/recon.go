// Package recon builds the AnalysisSnapshot the Understanding agent consumes:
// a scored list of candidate extractable sections, a pagination guess, and a
// handful of page metadata fields. Adapted from the teacher's
// internal/browser DOM-querying helpers, generalized from "find honeypots"
// to "find repeating content blocks."
package recon

import (
	"sort"
	"strings"

	"scrapeforge/internal/artifact"
	"scrapeforge/internal/browser"
)

// candidateBlock is what the in-page probe script returns per selector
// candidate before Go-side scoring and sorting.
type candidateBlock struct {
	Selector   string `json:"selector"`
	Count      int    `json:"count"`
	AvgTextLen int    `json:"avg_text_len"`
	SampleHTML string `json:"sample_html"`
}

// Build runs the reconnaissance probe against page and returns the
// resulting AnalysisSnapshot. interactionUsed records whether a prior
// INTERACTIVE_SOLVE/GUIDED_ACCESS stage touched the page before this call.
func Build(page *browser.Page, url string, interactionUsed bool) (*artifact.AnalysisSnapshot, error) {
	var title string
	if err := page.Eval(`() => document.title`, &title); err != nil {
		title = ""
	}

	var scriptSrcs []string
	_ = page.Eval(`() => Array.from(document.scripts).map(s => s.src).filter(Boolean)`, &scriptSrcs)

	var hosts []string
	_ = page.Eval(`() => [location.hostname]`, &hosts)

	candidates, err := findRepeatingUnits(page)
	if err != nil {
		return nil, err
	}

	sections := scoreCandidates(candidates)
	sort.Slice(sections, func(i, j int) bool { return sections[i].Score > sections[j].Score })

	pagination, err := detectPagination(page)
	if err != nil {
		pagination = artifact.PaginationSignal{}
	}

	return &artifact.AnalysisSnapshot{
		Sections:        sections,
		Pagination:      pagination,
		URL:             url,
		Title:           title,
		DetectedTech:    classifyFramework(scriptSrcs, hostOf(hosts)),
		InteractionUsed: interactionUsed,
	}, nil
}

func hostOf(hosts []string) string {
	if len(hosts) > 0 {
		return hosts[0]
	}
	return ""
}

// classifyFramework is a pure function mirroring the scanner package's
// fingerprinting, but scoped to reconnaissance's own script/host inputs so
// this package has no dependency on internal/scanner.
func classifyFramework(scripts []string, host string) string {
	for _, src := range scripts {
		lower := strings.ToLower(src)
		switch {
		case strings.Contains(lower, "react"):
			return "react"
		case strings.Contains(lower, "vue"):
			return "vue"
		case strings.Contains(lower, "angular"):
			return "angular"
		case strings.Contains(lower, "svelte"):
			return "svelte"
		case strings.Contains(lower, "next"):
			return "next.js"
		}
	}
	if strings.Contains(strings.ToLower(host), "shopify") {
		return "shopify"
	}
	return "unknown"
}

// findRepeatingUnits asks the page for the top candidate container
// selectors: elements whose direct children repeat with similar structure
// (a conventional signal of a list/grid of items worth extracting).
func findRepeatingUnits(page *browser.Page) ([]candidateBlock, error) {
	script := `() => {
		const results = [];
		const seen = new Set();
		const all = document.querySelectorAll('body *');
		for (const el of all) {
			if (el.children.length < 3) continue;
			const tagSig = Array.from(el.children).map(c => c.tagName).join(',');
			const firstTag = el.children[0].tagName;
			let sameTagCount = 0;
			for (const c of el.children) if (c.tagName === firstTag) sameTagCount++;
			if (sameTagCount < el.children.length * 0.6) continue;

			let selector = el.tagName.toLowerCase();
			if (el.className && typeof el.className === 'string' && el.className.trim()) {
				selector += '.' + el.className.trim().split(/\s+/).slice(0, 2).join('.');
			}
			if (seen.has(selector)) continue;
			seen.add(selector);

			let totalLen = 0;
			for (const c of el.children) totalLen += (c.innerText || '').length;
			results.push({
				selector: selector,
				count: el.children.length,
				avg_text_len: el.children.length ? Math.round(totalLen / el.children.length) : 0,
				sample_html: el.children[0] ? el.children[0].outerHTML.slice(0, 500) : '',
			});
		}
		return results.slice(0, 25);
	}`
	var blocks []candidateBlock
	if err := page.Eval(script, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// scoreCandidates turns raw repeating-block candidates into scored Sections.
// More repetitions and denser text both push a candidate toward being the
// page's "real" item list, the same heuristic direction the teacher's
// content-scoring helpers use for ranking DOM candidates.
func scoreCandidates(blocks []candidateBlock) []artifact.Section {
	sections := make([]artifact.Section, 0, len(blocks))
	for _, b := range blocks {
		score := float64(b.Count) * 2
		if b.AvgTextLen > 20 {
			score += 10
		}
		if b.AvgTextLen > 100 {
			score += 10
		}
		if b.Count > 50 {
			score *= 0.8 // likely nav/footer noise, not a content list
		}
		sections = append(sections, artifact.Section{
			Selector:   b.Selector,
			Label:      labelFor(b.Selector),
			Score:      score,
			SampleHTML: b.SampleHTML,
		})
	}
	return sections
}

func labelFor(selector string) string {
	parts := strings.SplitN(selector, ".", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return parts[0]
}

// detectPagination looks for a conventional "next page" control, falling
// back to a URL query-parameter pattern when no button-like control exists.
func detectPagination(page *browser.Page) (artifact.PaginationSignal, error) {
	var hasNext bool
	var nextText string
	script := `() => {
		const candidates = document.querySelectorAll('a[rel=next], [class*="next" i], [aria-label*="next" i]');
		for (const el of candidates) {
			if (el.offsetParent !== null) return { found: true, text: (el.innerText || el.getAttribute('aria-label') || '').trim() };
		}
		return { found: false, text: '' };
	}`
	var result struct {
		Found bool   `json:"found"`
		Text  string `json:"text"`
	}
	if err := page.Eval(script, &result); err != nil {
		return artifact.PaginationSignal{}, err
	}
	hasNext = result.Found
	nextText = result.Text

	var currentURL string
	_ = page.Eval(`() => location.href`, &currentURL)
	pattern := urlParamPattern(currentURL)

	return artifact.PaginationSignal{
		HasNextButton:   hasNext,
		NextButtonText:  nextText,
		URLParamPattern: pattern,
	}, nil
}

// urlParamPattern checks for a conventional page/offset query parameter and
// returns the pattern CodeGen should template if one is present. This
// resolves spec §9's url_param Open Question by restricting the strategy to
// an explicit allow-list of parameter names rather than a heuristic guess.
// The match is a case-sensitive substring test for "<name>=" anywhere in the
// URL, so "Page=2" is not recognised.
func urlParamPattern(rawURL string) string {
	for _, name := range []string{"page", "p", "offset", "start"} {
		if strings.Contains(rawURL, name+"=") {
			return name + "={n}"
		}
	}
	return ""
}
