// Package userconfig provides user configuration management for genforge.
// Configuration is stored in ~/.genforge/config.toml and can be modified
// via the `genforge config` command.
package userconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/genforge-dev/genforge/internal/config"
	"github.com/genforge-dev/genforge/internal/log"
)

// Config represents user-configurable settings.
type Config struct {
	// Telemetry enables or disables anonymous usage statistics.
	// Default is true (enabled).
	Telemetry bool `toml:"telemetry"`

	// Agents contains agent-provider-related configuration.
	Agents AgentsConfig `toml:"agents"`

	// Secrets stores API keys and tokens in the [secrets] section.
	// Values are resolved through the secrets package, which checks
	// environment variables first and falls through to this map.
	Secrets map[string]string `toml:"secrets,omitempty"`
}

// AgentsConfig holds agent-provider-specific settings.
type AgentsConfig struct {
	// Enabled enables or disables AI agent features entirely.
	// Default is true (enabled).
	Enabled *bool `toml:"enabled,omitempty"`

	// Providers specifies the preferred provider order (e.g. "claude", "gemini").
	// The first provider in the list becomes the primary. Empty means
	// auto-detect from environment variables.
	Providers []string `toml:"providers,omitempty"`

	// DailyBudget is the maximum daily agent cost in USD across all jobs.
	// Default is $25. Set to 0 to disable the limit.
	DailyBudget *float64 `toml:"daily_budget,omitempty"`

	// HourlyRateLimit is the maximum number of agent calls per hour.
	// Default is 60. Set to 0 to disable the limit.
	HourlyRateLimit *int `toml:"hourly_rate_limit,omitempty"`
}

const (
	// DefaultDailyBudget is the default daily agent cost limit in USD.
	DefaultDailyBudget = 25.0

	// DefaultHourlyRateLimit is the default maximum agent calls per hour.
	DefaultHourlyRateLimit = 60
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Telemetry: true,
	}
}

// Load reads the config file and returns the configuration.
// Returns default values if the file doesn't exist.
// Returns an error only for file parsing issues, not missing files.
func Load() (*Config, error) {
	path, err := config.ConfigFilePath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return loadFromPath(path)
}

// loadFromPath reads config from a specific file path (for testing).
func loadFromPath(path string) (*Config, error) {
	userCfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return userCfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		mode := info.Mode().Perm()
		if mode&0077 != 0 {
			log.Default().Warn("config file has permissive permissions",
				"path", path,
				"mode", fmt.Sprintf("%04o", mode),
				"expected", "0600",
			)
		}
	}

	if _, err := toml.Decode(string(data), userCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return userCfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	path, err := config.ConfigFilePath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return c.saveToPath(path)
}

// saveToPath writes config to a specific file path using atomic writes with
// 0600 permissions. It writes to a temporary file first and renames it to
// the target path, preventing mid-write corruption and ensuring the file
// always has correct permissions from creation.
func (c *Config) saveToPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config.toml.tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}

	encoder := toml.NewEncoder(tmpFile)
	if err := encoder.Encode(c); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// AgentsEnabled returns whether AI agent features are enabled.
// Returns true if not explicitly set (default behavior).
func (c *Config) AgentsEnabled() bool {
	if c.Agents.Enabled == nil {
		return true
	}
	return *c.Agents.Enabled
}

// LLMEnabled satisfies the agents.LLMConfig interface consumed by the
// provider factory.
func (c *Config) LLMEnabled() bool {
	return c.AgentsEnabled()
}

// LLMProviders returns the configured provider order.
// Returns nil if not set (use auto-detection).
func (c *Config) LLMProviders() []string {
	return c.Agents.Providers
}

// DailyBudget returns the daily agent cost limit in USD.
// Returns DefaultDailyBudget if not explicitly set.
func (c *Config) DailyBudget() float64 {
	if c.Agents.DailyBudget == nil {
		return DefaultDailyBudget
	}
	return *c.Agents.DailyBudget
}

// HourlyRateLimit returns the maximum number of agent calls per hour.
// Returns DefaultHourlyRateLimit if not explicitly set.
func (c *Config) HourlyRateLimit() int {
	if c.Agents.HourlyRateLimit == nil {
		return DefaultHourlyRateLimit
	}
	return *c.Agents.HourlyRateLimit
}

// Get returns the value of a config key as a string.
// Returns empty string and false if the key doesn't exist.
// Keys with the "secrets." prefix are resolved from the Secrets map.
func (c *Config) Get(key string) (string, bool) {
	lowerKey := strings.ToLower(key)

	if secretName, ok := strings.CutPrefix(lowerKey, "secrets."); ok {
		if c.Secrets != nil {
			if val, found := c.Secrets[secretName]; found && val != "" {
				return val, true
			}
		}
		return "", false
	}

	switch lowerKey {
	case "telemetry":
		return strconv.FormatBool(c.Telemetry), true
	case "agents.enabled":
		return strconv.FormatBool(c.AgentsEnabled()), true
	case "agents.providers":
		if len(c.Agents.Providers) == 0 {
			return "", true
		}
		return strings.Join(c.Agents.Providers, ","), true
	case "agents.daily_budget":
		return strconv.FormatFloat(c.DailyBudget(), 'g', -1, 64), true
	case "agents.hourly_rate_limit":
		return strconv.Itoa(c.HourlyRateLimit()), true
	default:
		return "", false
	}
}

// Set updates a config value from a string.
// Returns an error if the key doesn't exist or the value is invalid.
// Keys with the "secrets." prefix are stored in the Secrets map.
func (c *Config) Set(key, value string) error {
	lowerKey := strings.ToLower(key)

	if secretName, ok := strings.CutPrefix(lowerKey, "secrets."); ok {
		if c.Secrets == nil {
			c.Secrets = make(map[string]string)
		}
		c.Secrets[secretName] = value
		return nil
	}

	switch lowerKey {
	case "telemetry":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for telemetry: must be true or false")
		}
		c.Telemetry = b
		return nil
	case "agents.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for agents.enabled: must be true or false")
		}
		c.Agents.Enabled = &b
		return nil
	case "agents.providers":
		if value == "" {
			c.Agents.Providers = nil
			return nil
		}
		providers := strings.Split(value, ",")
		for i, p := range providers {
			providers[i] = strings.TrimSpace(p)
		}
		c.Agents.Providers = providers
		return nil
	case "agents.daily_budget":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for agents.daily_budget: must be a number")
		}
		if f < 0 {
			return fmt.Errorf("invalid value for agents.daily_budget: must be non-negative")
		}
		c.Agents.DailyBudget = &f
		return nil
	case "agents.hourly_rate_limit":
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for agents.hourly_rate_limit: must be an integer")
		}
		if i < 0 {
			return fmt.Errorf("invalid value for agents.hourly_rate_limit: must be non-negative")
		}
		c.Agents.HourlyRateLimit = &i
		return nil
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

// AvailableKeys returns a list of all configurable keys with descriptions.
func AvailableKeys() map[string]string {
	return map[string]string{
		"telemetry":                 "Enable anonymous usage statistics (true/false)",
		"agents.enabled":            "Enable AI agent features for code generation (true/false)",
		"agents.providers":          "Preferred agent provider order (comma-separated, e.g., claude,gemini)",
		"agents.daily_budget":       "Daily agent cost limit in USD across all jobs (default: 25.0, 0 to disable)",
		"agents.hourly_rate_limit":  "Max agent calls per hour across all jobs (default: 60, 0 to disable)",
	}
}
