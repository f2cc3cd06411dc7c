package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scrapeforge/internal/config"
	"scrapeforge/internal/subprocess"
)

func writeDefaultConfig(path string, cfg config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// version is overridden at build time via -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the scrapeforge version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("scrapeforge " + version)
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the external capabilities scrapeforge depends on",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok := true

		exec := subprocess.New("")
		if err := exec.CheckInterpreter(); err != nil {
			fmt.Printf("[fail] python interpreter: %v\n", err)
			ok = false
		} else {
			fmt.Println("[ok]   python interpreter found")
		}

		secrets := config.EnvSecretStore{}
		if _, err := secrets.APIKey(globalCfg.LLM.Provider); err != nil {
			fmt.Printf("[warn] LLM credentials: %v\n", err)
		} else {
			fmt.Println("[ok]   LLM credentials resolved")
		}

		if info, err := os.Stat(globalCfg.ProjectsRoot); err != nil || !info.IsDir() {
			fmt.Printf("[warn] projects root %s does not exist yet (will be created on first scrape)\n", globalCfg.ProjectsRoot)
		} else {
			fmt.Println("[ok]   projects root exists")
		}

		if !ok {
			return fmt.Errorf("one or more required capabilities are missing")
		}
		return nil
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a default scrapeforge.yaml and create the projects root",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = "scrapeforge.yaml"
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; remove it first if you want to regenerate", path)
		}

		cfg := config.DefaultConfig()
		if err := writeDefaultConfig(path, cfg); err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.ProjectsRoot, 0o755); err != nil {
			return fmt.Errorf("create projects root: %w", err)
		}
		fmt.Printf("wrote %s and created %s\n", path, cfg.ProjectsRoot)
		return nil
	},
}
