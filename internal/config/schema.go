// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for dbrain.
package config

import (
	"github.com/dbrain-dev/dbrain/internal/gateway"
	"github.com/dbrain-dev/dbrain/modules/channel/telegram"
	"github.com/dbrain-dev/dbrain/modules/provider/openaiapi"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Vault    VaultConfig     `yaml:"vault"`
	Provider ProviderConfig  `yaml:"provider"`
	Todoist  TodoistConfig   `yaml:"todoist"`
	Telegram telegram.Config `yaml:"telegram"`
	Session  SessionConfig   `yaml:"session"`
	Cron     CronConfig      `yaml:"cron"`
	Gateway  GatewayConfig   `yaml:"gateway"`
	Log      LogConfig       `yaml:"log"`

	// Telemetry configures the optional OTLP trace exporter. Disabled
	// when the endpoint is empty.
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// VaultConfig locates the Obsidian vault and controls git synchronization.
type VaultConfig struct {
	// Path is the vault root directory. Capability file operations and
	// the daily/weekly use cases resolve paths relative to it.
	Path string `yaml:"path"`

	Git GitConfig `yaml:"git"`
}

// GitConfig controls vault git synchronization.
type GitConfig struct {
	Enabled     bool     `yaml:"enabled"`
	LockTimeout Duration `yaml:"lock_timeout"`
}

// ProviderConfig selects the default LLM provider and its settings.
type ProviderConfig struct {
	// Default is the provider used when no chat override is active:
	// claude-cli, codex-cli, or openai-api.
	Default string `yaml:"default"`

	// Timeout bounds a single provider execution. The scheduler and bot
	// add a fixed ceiling margin on top.
	Timeout Duration `yaml:"timeout"`

	// Workdir is the directory CLI providers run in. Defaults to the
	// vault path.
	Workdir string `yaml:"workdir"`

	// MCPConfigPath points claude-cli at the MCP server definition.
	MCPConfigPath string `yaml:"mcp_config_path"`

	OpenAI OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds the openai-api provider settings.
type OpenAIConfig struct {
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	MaxToolIterations int    `yaml:"max_tool_iterations"`
}

// Provider converts the YAML shape into the provider package's config.
func (c OpenAIConfig) Provider() openaiapi.Config {
	return openaiapi.Config{
		APIKey:            c.APIKey,
		Model:             c.Model,
		BaseURL:           c.BaseURL,
		MaxToolIterations: c.MaxToolIterations,
	}
}

// TodoistConfig holds the Todoist REST API settings.
type TodoistConfig struct {
	APIKey string `yaml:"api_key"`
}

// SessionConfig locates the per-user session database.
type SessionConfig struct {
	// DBPath is the SQLite file path. Defaults to <vault>/.dbrain/sessions.db.
	DBPath string `yaml:"db_path"`
}

// CronConfig controls the scheduled jobs.
type CronConfig struct {
	Enabled        bool   `yaml:"enabled"`
	DailySchedule  string `yaml:"daily_schedule"`
	WeeklySchedule string `yaml:"weekly_schedule"`
}

// GatewayConfig wraps the HTTP gateway settings with an enable switch.
type GatewayConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Bind            string   `yaml:"bind"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Gateway converts the YAML shape into the gateway package's config.
func (c GatewayConfig) Gateway() gateway.Config {
	return gateway.Config{
		Bind:            c.Bind,
		ReadTimeout:     c.ReadTimeout.Std(),
		WriteTimeout:    c.WriteTimeout.Std(),
		ShutdownTimeout: c.ShutdownTimeout.Std(),
	}
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// TelemetryConfig configures the OTLP/HTTP trace exporter.
type TelemetryConfig struct {
	// Endpoint is the collector address (host:port). Empty disables tracing.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the exporter connection.
	Insecure bool `yaml:"insecure"`
}
