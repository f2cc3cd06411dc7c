// Package main implements the scrapeforge CLI — the thin outer layer spec
// §6 names: it invokes the Workflow Engine's Run and renders its
// wizard-mode progress lines, holding no durable decisions of its own.
//
// # File Index
//
//   - main.go        - entry point, rootCmd, global flags
//   - cmd_scrape.go  - `scrape` — create a project and drive it to completion
//   - cmd_project.go - `list`, `resume`, `clean` — project registry verbs
//   - cmd_misc.go    - `doctor`, `setup`, `version`
//   - interactive.go - huh-based OperatorPrompt implementation (non-CI runs)
//   - progress.go    - lipgloss-styled ProgressReporter (wizard mode)
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"scrapeforge/internal/config"
)

var (
	verbose     bool
	expertMode  bool
	ciMode      bool
	workspace   string
	configPath  string
	opTimeout   time.Duration
	logger      *zap.Logger
	globalCfg   config.Config
)

var rootCmd = &cobra.Command{
	Use:   "scrapeforge",
	Short: "scrapeforge builds a standalone scraper and dataset from a target URL",
	Long: `scrapeforge is an agentic builder: given a target web page URL, it drives a
headless/headed browser, probes the site's defenses, asks a model to propose
a data schema and later to emit the scraper's source, executes the emitted
program in a sandboxed subprocess, and self-heals on failure.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg = zap.NewDevelopmentConfig()
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		path := configPath
		if path == "" {
			path = "scrapeforge.yaml"
		}
		globalCfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if workspace != "" {
			globalCfg.ProjectsRoot = workspace
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Projects root directory (default: config's projects_root)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to scrapeforge.yaml (default: ./scrapeforge.yaml)")
	rootCmd.PersistentFlags().DurationVar(&opTimeout, "timeout", 30*time.Minute, "Overall operation timeout")

	scrapeCmd.Flags().BoolVar(&ciMode, "ci", false, "Run non-interactively, collapsing choices to defaults")
	scrapeCmd.Flags().BoolVar(&expertMode, "expert", false, "Run in expert mode: structured logs and prompts on borderline conditions")

	rootCmd.AddCommand(scrapeCmd, listCmd, resumeCmd, cleanCmd, doctorCmd, setupCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
