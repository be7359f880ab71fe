package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	vault := t.TempDir()
	cfg, err := Load(writeConfig(t, `
version: "1"
vault:
  path: `+vault+`
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Provider.Default != "claude-cli" {
		t.Errorf("provider default = %q", cfg.Provider.Default)
	}
	if cfg.Provider.Timeout.Std() != 20*time.Minute {
		t.Errorf("provider timeout = %v", cfg.Provider.Timeout)
	}
	if cfg.Provider.Workdir != vault {
		t.Errorf("workdir = %q", cfg.Provider.Workdir)
	}
	if cfg.Session.DBPath != vault+"/.dbrain/sessions.db" {
		t.Errorf("session db path = %q", cfg.Session.DBPath)
	}
	if cfg.Cron.DailySchedule != "30 23 * * *" || cfg.Cron.WeeklySchedule != "0 18 * * 0" {
		t.Errorf("cron schedules = %q %q", cfg.Cron.DailySchedule, cfg.Cron.WeeklySchedule)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("DBRAIN_TEST_TOKEN", "secret-token")

	vault := t.TempDir()
	cfg, err := Load(writeConfig(t, `
version: "1"
vault:
  path: `+vault+`
todoist:
  api_key: ${DBRAIN_TEST_TOKEN}
provider:
  default: ${DBRAIN_TEST_PROVIDER:-codex-cli}
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Todoist.APIKey != "secret-token" {
		t.Errorf("todoist api key = %q", cfg.Todoist.APIKey)
	}
	if cfg.Provider.Default != "codex-cli" {
		t.Errorf("provider default = %q", cfg.Provider.Default)
	}
}

func TestLoad_DurationStrings(t *testing.T) {
	vault := t.TempDir()
	cfg, err := Load(writeConfig(t, `
version: "1"
vault:
  path: `+vault+`
provider:
  timeout: 5m
gateway:
  enabled: true
  read_timeout: 2s
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.Timeout.Std() != 5*time.Minute {
		t.Errorf("timeout = %v", cfg.Provider.Timeout.Std())
	}
	if cfg.Gateway.Gateway().ReadTimeout != 2*time.Second {
		t.Errorf("read timeout = %v", cfg.Gateway.Gateway().ReadTimeout)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	_, err := Load(writeConfig(t, `
version: "1"
todoist:
  api_key: ${DBRAIN_DEFINITELY_UNSET_VAR}
`))
	if err == nil || !strings.Contains(err.Error(), "DBRAIN_DEFINITELY_UNSET_VAR") {
		t.Errorf("err = %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults()
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"version field is required", "vault.path is required", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

func TestValidate_OpenAIRequiresCredentials(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Vault:   VaultConfig{Path: t.TempDir()},
	}
	cfg.Provider.Default = "openai-api"
	cfg.Defaults()

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "provider.openai.api_key") {
		t.Errorf("err = %v", err)
	}

	cfg.Provider.OpenAI.APIKey = "sk-test"
	cfg.Provider.OpenAI.Model = "gpt-4o"
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestValidate_TelegramTokenFormat(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Vault:   VaultConfig{Path: t.TempDir()},
	}
	cfg.Defaults()
	cfg.Telegram.Token = "not-a-token"
	cfg.Telegram.AllowedUserIDs = []int64{1}

	if err := cfg.Validate(); err == nil {
		t.Error("expected telegram token error")
	}
}
