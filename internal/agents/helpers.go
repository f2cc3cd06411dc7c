package agents

import (
	"os"
	"regexp"
)

var mainBlockPattern = regexp.MustCompile(`(?ms)^if __name__ == ['"]__main__['"]:\n(?:.*\n?)*$`)

// stripExistingMain removes any __main__ guard the model emitted on its
// own, so CodeGen can append the Go-rendered block without duplicating it.
func stripExistingMain(code string) string {
	return mainBlockPattern.ReplaceAllString(code, "")
}

// writeFileIfDiffers writes content to path only when the file is absent or
// its contents differ, avoiding a needless rewrite of the runtime library
// on every CODEGEN/REPAIR re-entry.
func writeFileIfDiffers(path, content string) error {
	existing, err := os.ReadFile(path)
	if err == nil && string(existing) == content {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
