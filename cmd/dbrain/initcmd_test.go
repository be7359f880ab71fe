package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dbrain-dev/dbrain/internal/config"
)

func TestRenderConfig_Loadable(t *testing.T) {
	vault := t.TempDir()
	content := renderConfig(configAnswers{
		VaultPath:     vault,
		Provider:      "claude-cli",
		TodoistKey:    "tok",
		TelegramToken: "12345:abcDEF",
		AllowedUser:   "42",
		GitEnabled:    true,
		CronEnabled:   true,
	})

	path := filepath.Join(t.TempDir(), "dbrain.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Vault.Path != vault || !cfg.Vault.Git.Enabled {
		t.Errorf("vault = %+v", cfg.Vault)
	}
	if cfg.Telegram.AllowedUserIDs[0] != 42 {
		t.Errorf("allowed users = %v", cfg.Telegram.AllowedUserIDs)
	}
	if !cfg.Cron.Enabled || cfg.Cron.DailySchedule != "30 23 * * *" {
		t.Errorf("cron = %+v", cfg.Cron)
	}
}

func TestRenderConfig_MinimalOmitsOptionalSections(t *testing.T) {
	content := renderConfig(configAnswers{VaultPath: "/v", Provider: "codex-cli"})
	for _, absent := range []string{"telegram:", "todoist:", "openai:"} {
		if strings.Contains(content, absent) {
			t.Errorf("unexpected section %q in:\n%s", absent, content)
		}
	}
}
