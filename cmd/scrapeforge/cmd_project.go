package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"scrapeforge/internal/artifact"
	"scrapeforge/internal/registry"
)

var forceClean bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List known projects and their current state",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		defer reg.Close()

		entries, err := reg.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no projects found")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-36s %-12s %s\n", e.ProjectID, e.State, e.URL)
		}
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <project_id>",
	Short: "Resume a previously created project from its persisted state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		defer reg.Close()

		entry, err := reg.Get(args[0])
		if err != nil {
			return fmt.Errorf("project %s not found in registry: %w", args[0], err)
		}
		return runProject(cmd.Context(), entry.Dir)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove terminal (DONE/FAILED) project directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := registry.DiscoverSessions(globalCfg.ProjectsRoot)
		if err != nil {
			return err
		}

		var toRemove []*artifact.Session
		for _, s := range sessions {
			if s.State.Terminal() {
				toRemove = append(toRemove, s)
			}
		}
		if len(toRemove) == 0 {
			fmt.Println("nothing to clean")
			return nil
		}
		if !forceClean {
			fmt.Printf("would remove %d terminal project(s); pass --force to actually delete:\n", len(toRemove))
			for _, s := range toRemove {
				fmt.Printf("  %s (%s)\n", s.ProjectDir, s.State)
			}
			return nil
		}

		reg, err := openRegistry()
		if err == nil {
			defer reg.Close()
		}
		for _, s := range toRemove {
			if err := os.RemoveAll(s.ProjectDir); err != nil {
				fmt.Fprintf(os.Stderr, "remove %s: %v\n", s.ProjectDir, err)
				continue
			}
			if reg != nil {
				_ = reg.Remove(s.ProjectID)
			}
			fmt.Printf("removed %s\n", s.ProjectDir)
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&forceClean, "force", false, "Actually delete, rather than a dry run")
}

func openRegistry() (*registry.Registry, error) {
	path := filepath.Join(globalCfg.ProjectsRoot, "registry.db")
	reg, err := registry.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	sessions, err := registry.DiscoverSessions(globalCfg.ProjectsRoot)
	if err == nil {
		for _, s := range sessions {
			_ = reg.Upsert(s)
		}
	}
	return reg, nil
}
