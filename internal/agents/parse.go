// Package agents implements the Understanding, CodeGen, and Repair agents:
// stateless adapters that load Artifact Store inputs, marshal a prompt,
// call the LLMClient capability, log the raw response, and parse it with a
// deterministic fallback ladder. Adapted from the teacher's
// internal/autopoiesis/ouroboros.go transactional generate-validate loop and
// internal/autopoiesis/checker.go's SafetyReport/ViolationType shape, the
// latter's AST-based Go analysis replaced by textual Python analysis since
// the generated artifact here is Python source, not Go.
package agents

import (
	"encoding/json"
	"regexp"
	"strings"
)

// hallucinationFixes is the fixed lookup table spec §4.4 names: textual
// substitutions correcting known model slip-ups in generated code, applied
// after fence/span extraction and before the safety checker runs.
var hallucinationFixes = []struct {
	from, to string
}{
	{"import async_playwright", "from playwright.async_api import async_playwright"},
	{"from playwright import async_playwright", "from playwright.async_api import async_playwright"},
	{"import BeautifulSoup", "from bs4 import BeautifulSoup"},
	{"from scraper_runtime import BaseScraper", "from runtime import BaseScraper"},
	{"class Scraper(BaseScaper)", "class Scraper(BaseScraper)"},
}

var jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")
var pythonFence = regexp.MustCompile("(?s)```(?:python|py)?\\s*\\n?(.*?)\\n?```")

// ParseJSON applies spec §4.4's deterministic fallback ladder: fenced code
// block, then the span from the first `{` to the last `}`, then the whole
// string, finally an empty object if nothing parses. It never returns an
// error — malformed LLM output degrades to {} and the caller decides what
// to do with an empty result (spec §7: "the consuming handler decides").
func ParseJSON(raw string) map[string]interface{} {
	candidates := []string{}
	if m := jsonFence.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, m[1])
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}
	candidates = append(candidates, raw)

	for _, c := range candidates {
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(c)), &out); err == nil && out != nil {
			return out
		}
	}
	return map[string]interface{}{}
}

// ParseCode applies the code half of the same ladder: the longest
// ```python fence, then the substring from the first import-like line to
// the end, then the fixed hallucination-correction substitutions.
func ParseCode(raw string) string {
	var body string
	if m := pythonFence.FindAllStringSubmatch(raw, -1); len(m) > 0 {
		longest := m[0][1]
		for _, candidate := range m[1:] {
			if len(candidate[1]) > len(longest) {
				longest = candidate[1]
			}
		}
		body = longest
	} else {
		body = firstCodeLineOnward(raw)
	}
	return applyHallucinationFixes(body)
}

func firstCodeLineOnward(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range []string{"import ", "from ", "class ", "def "} {
			if strings.HasPrefix(trimmed, prefix) {
				return strings.Join(lines[i:], "\n")
			}
		}
	}
	return raw
}

func applyHallucinationFixes(code string) string {
	for _, fix := range hallucinationFixes {
		code = strings.ReplaceAll(code, fix.from, fix.to)
	}
	return code
}
