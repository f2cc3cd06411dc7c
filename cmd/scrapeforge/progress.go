package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"scrapeforge/internal/artifact"
)

var (
	stageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
)

// stageEmoji is the short, emoji-tagged progress label wizard mode shows
// per state.
var stageEmoji = map[artifact.State]string{
	artifact.StateInit:             "🔍 probing",
	artifact.StateGuidedAccess:     "🔐 guided access",
	artifact.StateRecon:            "🧭 reconnaissance",
	artifact.StateInteractiveSolve: "🧩 interactive solve",
	artifact.StateLLMAnalysis:      "🧠 analyzing",
	artifact.StateUserConfig:       "🎛️  configuring",
	artifact.StateCodegen:          "⚙️  generating scraper",
	artifact.StateTest:             "🧪 test run",
	artifact.StateRepair:           "🩹 repairing",
	artifact.StateApproved:         "🚀 final run",
	artifact.StateDone:             "✅ done",
	artifact.StateFailed:           "❌ failed",
}

// wizardProgress is the lipgloss-styled ProgressReporter for wizard mode;
// expert mode instead delegates straight to the structured zap logger.
type wizardProgress struct {
	expert bool
}

func newWizardProgress(expert bool) *wizardProgress {
	return &wizardProgress{expert: expert}
}

func (w *wizardProgress) Stage(state artifact.State) {
	if w.expert {
		logger.Sugar().Infow("stage", "state", string(state))
		return
	}
	label, ok := stageEmoji[state]
	if !ok {
		label = string(state)
	}
	fmt.Println(stageStyle.Render(label))
}

func (w *wizardProgress) Info(msg string) {
	if w.expert {
		logger.Sugar().Info(msg)
		return
	}
	fmt.Println(infoStyle.Render("  " + msg))
}

func (w *wizardProgress) Warn(msg string) {
	if w.expert {
		logger.Sugar().Warn(msg)
		return
	}
	fmt.Println(warnStyle.Render("  ⚠ " + msg))
}

func (w *wizardProgress) Error(msg string) {
	if w.expert {
		logger.Sugar().Error(msg)
		return
	}
	fmt.Println(errorStyle.Render("  ✗ " + msg))
}
