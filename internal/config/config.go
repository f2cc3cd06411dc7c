// Package config holds the process-wide Config struct loaded from YAML,
// following the shape and construction style of the teacher's own
// internal/config package: a single struct of nested, yaml-tagged
// sub-structs with a DefaultConfig constructor, passed explicitly into
// constructors rather than read from a package-level singleton.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig names the provider/model the Config/secret-store capability
// resolves for the LLMClient. The API key itself never lives here — it is
// resolved through a SecretStore at call time.
type LLMConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// BrowserConfig configures default browser launch behavior.
type BrowserConfig struct {
	Headless          bool          `yaml:"headless"`
	ViewportWidth     int           `yaml:"viewport_width"`
	ViewportHeight    int           `yaml:"viewport_height"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	ScanTimeout       time.Duration `yaml:"scan_timeout"`
}

// RetryConfig configures the exponential-backoff envelope spec §4.1
// prescribes for flaky external calls.
type RetryConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// RepairConfig configures the Repair Loop's attempt budget.
type RepairConfig struct {
	AttemptBudget int `yaml:"attempt_budget"`
}

// SubprocessConfig configures the script executor's timeouts.
type SubprocessConfig struct {
	TestTimeout  time.Duration `yaml:"test_timeout"`
	FinalTimeout time.Duration `yaml:"final_timeout"`
}

// LoggingConfig mirrors the teacher's debug-gated categorized logging.
type LoggingConfig struct {
	DebugMode  bool   `yaml:"debug_mode"`
	Level      string `yaml:"level"`
	JSONFormat bool   `yaml:"json_format"`
}

// Config is the top-level, explicitly-constructed configuration object.
// No package-level mutable singleton exists; callers load one Config and
// pass it to constructors.
type Config struct {
	ProjectsRoot string           `yaml:"projects_root"`
	LLM          LLMConfig        `yaml:"llm"`
	Browser      BrowserConfig    `yaml:"browser"`
	Retry        RetryConfig      `yaml:"retry"`
	Repair       RepairConfig     `yaml:"repair"`
	Subprocess   SubprocessConfig `yaml:"subprocess"`
	Logging      LoggingConfig    `yaml:"logging"`
}

// DefaultConfig returns the defaults named throughout spec.md (45s scan
// navigation budget, 30s probe, 60s default navigation, 120s/600s
// subprocess timeouts, attempt budget 2, backoff 2s..10-30s).
func DefaultConfig() Config {
	return Config{
		ProjectsRoot: "./projects",
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  120 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:          true,
			ViewportWidth:     1366,
			ViewportHeight:    900,
			NavigationTimeout: 60 * time.Second,
			ProbeTimeout:      30 * time.Second,
			ScanTimeout:       45 * time.Second,
		},
		Retry: RetryConfig{
			Attempts:  2,
			BaseDelay: 2 * time.Second,
			MaxDelay:  20 * time.Second,
		},
		Repair: RepairConfig{
			AttemptBudget: 2,
		},
		Subprocess: SubprocessConfig{
			TestTimeout:  120 * time.Second,
			FinalTimeout: 600 * time.Second,
		},
		Logging: LoggingConfig{
			DebugMode:  false,
			Level:      "info",
			JSONFormat: true,
		},
	}
}

// Load reads a Config from a YAML file at path, defaulting any field the
// file omits by starting from DefaultConfig.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SecretStore resolves provider credentials from an OS-keyring-equivalent.
// The real keyring integration is an external capability per spec §6
// ("DELIBERATELY OUT OF SCOPE... the global configuration and secret
// storage"); this package only declares the interface and a default
// environment-variable-backed implementation suitable for CI and local use.
type SecretStore interface {
	APIKey(provider string) (string, error)
}

// EnvSecretStore resolves `<PROVIDER>_API_KEY` from the process environment.
type EnvSecretStore struct{}

func (EnvSecretStore) APIKey(provider string) (string, error) {
	key := envKeyName(provider)
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("no API key found in environment variable %s", key)
	}
	return v, nil
}

func envKeyName(provider string) string {
	out := make([]byte, 0, len(provider)+8)
	for _, r := range provider {
		if r >= 'a' && r <= 'z' {
			r -= 32
		}
		out = append(out, byte(r))
	}
	return string(out) + "_API_KEY"
}
