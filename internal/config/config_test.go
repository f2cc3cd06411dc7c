package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/config"
)

func TestDefaultConfigMatchesDocumentedBudgets(t *testing.T) {
	cfg := config.DefaultConfig()
	require.Equal(t, 120*time.Second, cfg.Subprocess.TestTimeout)
	require.Equal(t, 600*time.Second, cfg.Subprocess.FinalTimeout)
	require.Equal(t, 2, cfg.Repair.AttemptBudget)
	require.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
	require.True(t, cfg.Browser.Headless)
}

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfig(), cfg)
}

func TestLoadOverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrapeforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
projects_root: /tmp/my-projects
llm:
  model: gpt-4o
repair:
  attempt_budget: 3
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/my-projects", cfg.ProjectsRoot)
	require.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.Equal(t, 3, cfg.Repair.AttemptBudget)
	// Fields the override omitted keep their defaults.
	require.Equal(t, "openai", cfg.LLM.Provider)
	require.Equal(t, 120*time.Second, cfg.Subprocess.TestTimeout)
}

func TestLoadErrorsOnMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestEnvSecretStoreResolvesUppercasedProviderKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-123")
	store := config.EnvSecretStore{}

	key, err := store.APIKey("openai")
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", key)
}

func TestEnvSecretStoreErrorsWhenUnset(t *testing.T) {
	os.Unsetenv("SOME_UNSET_PROVIDER_API_KEY")
	store := config.EnvSecretStore{}

	_, err := store.APIKey("some_unset_provider")
	require.Error(t, err)
}
