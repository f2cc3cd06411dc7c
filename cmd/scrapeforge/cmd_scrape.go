package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scrapeforge/internal/artifact"
	"scrapeforge/internal/browser"
	"scrapeforge/internal/config"
	"scrapeforge/internal/engine"
	"scrapeforge/internal/llmclient"
	"scrapeforge/internal/subprocess"
)

var scrapeURL string

var scrapeCmd = &cobra.Command{
	Use:   "scrape --url <target>",
	Short: "Build and run a scraper against a target URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scrapeURL == "" {
			return fmt.Errorf("--url is required")
		}

		format := artifact.FormatJSON
		now := time.Now()
		dir, _, err := engine.CreateProject(globalCfg.ProjectsRoot, scrapeURL, ciMode, expertMode, format, now)
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		fmt.Printf("project created: %s\n", dir)

		return runProject(cmd.Context(), dir)
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeURL, "url", "", "Target page URL to build a scraper for")
}

// runProject wires the Engine's four external capabilities for a single
// invocation and drives it to a terminal state.
func runProject(ctx context.Context, projectDir string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	secrets := config.EnvSecretStore{}
	apiKey, err := secrets.APIKey(globalCfg.LLM.Provider)
	if err != nil {
		logger.Sugar().Warnf("no LLM API key resolved for provider %s: %v", globalCfg.LLM.Provider, err)
	}
	transport := llmclient.NewOpenAIClient(apiKey, "", globalCfg.LLM.Model, globalCfg.LLM.Timeout)
	client := llmclient.NewRetryingClient(transport)

	executor := subprocess.New("")
	browserFactory := func(headed bool) *browser.Manager {
		return browser.NewManager(browser.Config{
			Headless:       !headed,
			ViewportWidth:  globalCfg.Browser.ViewportWidth,
			ViewportHeight: globalCfg.Browser.ViewportHeight,
		})
	}

	var prompt engine.OperatorPrompt
	var progress engine.ProgressReporter
	if ciMode {
		prompt = engine.CIPrompt{}
		progress = engine.NullProgress{}
	} else {
		prompt = newHuhPrompt()
		progress = newWizardProgress(expertMode)
	}

	eng := engine.New(globalCfg, logger, client, secrets, prompt, progress, executor, browserFactory)
	return eng.Run(ctx, projectDir)
}
