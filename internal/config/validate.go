package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dbrain-dev/dbrain/internal/provider"
	"github.com/dbrain-dev/dbrain/internal/usecase"
)

// Defaults fills zero-valued fields with their defaults. Called by Load
// before validation.
func (c *Config) Defaults() {
	if c.Provider.Default == "" {
		c.Provider.Default = provider.NameClaudeCLI
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = Duration(usecase.DefaultTimeout)
	}
	if c.Provider.Workdir == "" {
		c.Provider.Workdir = c.Vault.Path
	}
	if c.Vault.Git.LockTimeout <= 0 {
		c.Vault.Git.LockTimeout = Duration(30 * time.Second)
	}
	if c.Session.DBPath == "" && c.Vault.Path != "" {
		c.Session.DBPath = c.Vault.Path + "/.dbrain/sessions.db"
	}
	if c.Cron.DailySchedule == "" {
		c.Cron.DailySchedule = "30 23 * * *"
	}
	if c.Cron.WeeklySchedule == "" {
		c.Cron.WeeklySchedule = "0 18 * * 0"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Telegram.Token != "" {
		c.Telegram.Defaults()
	}
}

// Validate checks the structural validity of a Config. It returns all
// problems at once so a broken config can be fixed in one pass.
func (c *Config) Validate() error {
	var errs []error

	if c.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if c.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", c.Version))
	}

	if c.Vault.Path == "" {
		errs = append(errs, errors.New("config: vault.path is required"))
	} else if info, err := os.Stat(c.Vault.Path); err != nil || !info.IsDir() {
		errs = append(errs, fmt.Errorf("config: vault.path %q is not a directory", c.Vault.Path))
	}

	if !provider.ValidName(c.Provider.Default) {
		errs = append(errs, fmt.Errorf("config: provider.default %q is not a known provider", c.Provider.Default))
	}
	if c.Provider.Default == provider.NameOpenAIAPI {
		if c.Provider.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("config: provider.openai.api_key is required for the openai-api provider"))
		}
		if c.Provider.OpenAI.Model == "" {
			errs = append(errs, errors.New("config: provider.openai.model is required for the openai-api provider"))
		}
	}

	if c.Telegram.Token != "" {
		if err := c.Telegram.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	return errors.Join(errs...)
}
