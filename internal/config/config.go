// Package config holds sneebly's YAML configuration, with environment
// variable overrides applied on load — the vendor API key and dashboard
// shared secret are read this way and never written to disk; the host app
// URL can also be overridden from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jhmac/sneebly/internal/logging"
)

// Config is the root sneebly.yaml document.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	LLM       LLMConfig       `yaml:"llm"`
	Execution ExecutionConfig `yaml:"execution"`
	Logging   LoggingConfig   `yaml:"logging"`
	Safety    SafetyConfig    `yaml:"safety"`
	Budget    BudgetConfig    `yaml:"budget"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	ELON      ELONConfig      `yaml:"elon"`

	HostAppURL string `yaml:"host_app_url"`
	OwnerEmail string `yaml:"owner_email"`

	// dashboardSecret is env-only and deliberately unexported so it can
	// never round-trip through yaml.Marshal into sneebly.yaml.
	dashboardSecret string
}

// LLMConfig selects and configures the vendor client.
type LLMConfig struct {
	Provider    string `yaml:"provider"` // anthropic | genai
	APIKey      string `yaml:"-"`        // never persisted, env-only
	BaseURL     string `yaml:"base_url,omitempty"`
	Model       string `yaml:"model"`
	SecondModel string `yaml:"second_model,omitempty"` // escalation tier
	TimeoutSec  int    `yaml:"timeout_seconds"`
}

// ExecutionConfig bounds the command whitelist and shell timeouts.
type ExecutionConfig struct {
	AllowedBinaries  []string          `yaml:"allowed_binaries"`
	AllowedArgs      map[string][]string `yaml:"allowed_args"`
	DefaultTimeoutSec int              `yaml:"default_timeout_seconds"`
	AllowedEnvVars   []string          `yaml:"allowed_env_vars"`
	WorkingDirectory string            `yaml:"working_directory"`
}

// LoggingConfig mirrors internal/logging's on-disk config shape.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// SafetyConfig drives the safety kernel's policy tables.
type SafetyConfig struct {
	IdentityFiles     []string `yaml:"identity_files"`
	DeniedFileNames   []string `yaml:"denied_file_names"`
	DeniedPathPrefixes []string `yaml:"denied_path_prefixes"`
	SafePathGlobs     []string `yaml:"safe_path_globs"`
	InjectionPatterns []string `yaml:"injection_patterns,omitempty"`
	RateLimitWindowSec int     `yaml:"rate_limit_window_seconds"`
	RateLimitMaxFailures int   `yaml:"rate_limit_max_failures"`
}

// BudgetConfig caps per-cycle LLM spend.
type BudgetConfig struct {
	MaxUSD       float64            `yaml:"max_usd"`
	WarningUSD   float64            `yaml:"warning_usd"`
	TierCostsUSD map[string]float64 `yaml:"tier_costs_usd"`
}

// HeartbeatConfig controls the monitoring tick cadence.
type HeartbeatConfig struct {
	IntervalSec            int      `yaml:"interval_seconds"`
	HealthEndpoint         string   `yaml:"health_endpoint"`
	HealthTimeoutSec       int      `yaml:"health_timeout_seconds"`
	MaxNewErrorsPerTick    int      `yaml:"max_new_errors_per_tick"`
	CodebaseDiscoveryEveryN int     `yaml:"codebase_discovery_every_n_ticks"`
	DeepAnalysisWeekday    string   `yaml:"deep_analysis_weekday"`
	SelfImproverWeekday    string   `yaml:"self_improver_weekday"`
	RatePauseSec           float64  `yaml:"rate_pause_seconds"`
}

// ELONConfig bounds the constraint solver's loop controls.
type ELONConfig struct {
	MaxConstraintsPerRun int     `yaml:"max_constraints_per_run"`
	MaxBudgetUSD         float64 `yaml:"max_budget_usd"`
	ConsecutiveDismissalStop int `yaml:"consecutive_dismissal_stop"`
	MinCyclePauseSec     int     `yaml:"min_cycle_pause_seconds"`
}

// DefaultConfig returns sneebly's out-of-the-box configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "sneebly",
		Version: "0.1.0",

		LLM: LLMConfig{
			Provider:    "anthropic",
			BaseURL:     "https://api.anthropic.com/v1",
			Model:       "claude-sonnet-4-5-20250514",
			SecondModel: "claude-opus-4-5",
			TimeoutSec:  600,
		},

		Execution: ExecutionConfig{
			AllowedBinaries: []string{
				"npm", "git", "curl", "eslint", "prettier", "tsc",
				"cat", "ls", "grep", "head", "tail", "wc",
			},
			DefaultTimeoutSec: 60,
			WorkingDirectory:  ".",
			AllowedEnvVars:    []string{"PATH", "HOME"},
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		Safety: SafetyConfig{
			IdentityFiles: []string{"SOUL", "AGENTS", "IDENTITY", "USER", "TOOLS", "HEARTBEAT", "GOALS"},
			DeniedFileNames: []string{
				".env", ".env.local", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
				"go.sum", "Gopkg.lock",
			},
			DeniedPathPrefixes: []string{
				"node_modules/", "vendor/", ".git/", ".sneebly/",
			},
			SafePathGlobs:        []string{"src/**", "lib/**", "internal/**"},
			RateLimitWindowSec:   15 * 60,
			RateLimitMaxFailures: 10,
		},

		Budget: BudgetConfig{
			MaxUSD:     5.0,
			WarningUSD: 4.0,
			TierCostsUSD: map[string]float64{
				"haiku":  0.01,
				"sonnet": 0.05,
				"opus":   0.15,
			},
		},

		Heartbeat: HeartbeatConfig{
			IntervalSec:             300,
			HealthEndpoint:          "http://localhost:5000/health",
			HealthTimeoutSec:        10,
			MaxNewErrorsPerTick:     5,
			CodebaseDiscoveryEveryN: 12,
			DeepAnalysisWeekday:     "Sunday",
			SelfImproverWeekday:     "Wednesday",
			RatePauseSec:            4,
		},

		ELON: ELONConfig{
			MaxConstraintsPerRun:     1,
			MaxBudgetUSD:             10.0,
			ConsecutiveDismissalStop: 5,
			MinCyclePauseSec:         10,
		},

		HostAppURL: "http://localhost:5000",
	}
}

// Load reads sneebly.yaml from path, falling back to defaults if the file
// does not exist, and always applies environment variable overrides last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get(logging.CategoryConfig).Info("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save persists configuration as YAML. The API key is never written since
// its yaml tag is "-".
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides layers SNEEBLY_*-prefixed and vendor-standard
// environment variables on top of whatever was loaded from disk.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "anthropic"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "genai"
	}
	if url := os.Getenv("SNEEBLY_LLM_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if secret := os.Getenv("SNEEBLY_DASHBOARD_SECRET"); secret != "" {
		c.dashboardSecret = secret
	}
	if url := os.Getenv("SNEEBLY_HOST_APP_URL"); url != "" {
		c.HostAppURL = url
	}
	if owner := os.Getenv("SNEEBLY_OWNER_EMAIL"); owner != "" {
		c.OwnerEmail = owner
	}
}

// DashboardSecret returns the owner shared secret used for constant-time
// comparison at mutating endpoints (§7), or "" if unset.
func (c *Config) DashboardSecret() string { return c.dashboardSecret }
