package agents

import (
	"regexp"
	"strings"
)

// ViolationType categorizes a CodeGen safety violation, mirroring the
// teacher's autopoiesis.ViolationType enum scoped to the prompt invariants
// spec §4.4 requires of a generated scraper: it must subclass the runtime
// base class, implement the three required methods, end with the exact
// __main__ shape, and avoid direct browser/file-I/O/unstable-selector use.
type ViolationType int

const (
	ViolationMissingBaseClass ViolationType = iota
	ViolationMissingMethod
	ViolationMissingMain
	ViolationDirectBrowserImport
	ViolationDirectFileIO
	ViolationUnstableSelector
)

func (v ViolationType) String() string {
	switch v {
	case ViolationMissingBaseClass:
		return "missing_base_class"
	case ViolationMissingMethod:
		return "missing_method"
	case ViolationMissingMain:
		return "missing_main_block"
	case ViolationDirectBrowserImport:
		return "direct_browser_import"
	case ViolationDirectFileIO:
		return "direct_file_io"
	case ViolationUnstableSelector:
		return "unstable_selector"
	default:
		return "unknown"
	}
}

// Violation describes one safety-checker finding.
type Violation struct {
	Type        ViolationType
	Description string
}

// SafetyReport is the Check verdict: Safe is false if any violation was found.
type SafetyReport struct {
	Safe       bool
	Violations []Violation
}

var forbiddenBrowserImports = regexp.MustCompile(`(?m)^\s*(import|from)\s+(selenium|playwright|pyppeteer)\b`)
var forbiddenFileIO = regexp.MustCompile(`(?m)\bopen\s*\([^)]*['"]w`)
var unstableSelectorPattern = regexp.MustCompile(`(?i)\[class\s*\^?=\s*["'][a-z0-9]{6,}["']\]|css-[a-f0-9]{6,}`)

// CheckSafety validates generated scraper source against CodeGen's prompt
// invariants (spec §4.4), the Python-source equivalent of the teacher's
// SafetyChecker.Check: instead of walking a Go AST for forbidden imports and
// dangerous calls, it scans the Python source textually, since there is no
// Go-toolchain parser available for the target language.
func CheckSafety(code string) *SafetyReport {
	report := &SafetyReport{Safe: true}

	if !strings.Contains(code, "BaseScraper") {
		report.Violations = append(report.Violations, Violation{
			Type: ViolationMissingBaseClass, Description: "generated scraper does not subclass BaseScraper",
		})
	}
	for _, method := range []string{"def navigate", "def get_items", "def parse_item"} {
		if !strings.Contains(code, method) {
			report.Violations = append(report.Violations, Violation{
				Type: ViolationMissingMethod, Description: method + " is not implemented",
			})
		}
	}
	if !strings.Contains(code, `if __name__ == "__main__"`) && !strings.Contains(code, "if __name__ == '__main__'") {
		report.Violations = append(report.Violations, Violation{
			Type: ViolationMissingMain, Description: "missing __main__ entry point",
		})
	}
	if forbiddenBrowserImports.MatchString(code) {
		report.Violations = append(report.Violations, Violation{
			Type: ViolationDirectBrowserImport, Description: "generated scraper imports a browser library directly",
		})
	}
	if forbiddenFileIO.MatchString(code) {
		report.Violations = append(report.Violations, Violation{
			Type: ViolationDirectFileIO, Description: "generated scraper writes files directly instead of through the runtime's save step",
		})
	}
	if unstableSelectorPattern.MatchString(code) {
		report.Violations = append(report.Violations, Violation{
			Type: ViolationUnstableSelector, Description: "generated scraper targets a selector that looks like a randomized class hash",
		})
	}

	report.Safe = len(report.Violations) == 0
	return report
}
