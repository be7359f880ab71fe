package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")
			return runInit(out)
		},
	}
	cmd.Flags().StringP("output", "o", "", "Where to write the config (default: $XDG_CONFIG_HOME/dbrain/dbrain.yaml)")
	return cmd
}

func runInit(out string) error {
	if out == "" {
		out = defaultConfigPath()
	}
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", out)
	}

	var (
		vaultPath     string
		providerName  string
		openaiKey     string
		openaiModel   string
		todoistKey    string
		telegramToken string
		allowedUser   string
		gitEnabled    bool
		cronEnabled   bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Vault path").
				Description("Root directory of your Obsidian vault").
				Value(&vaultPath).
				Validate(func(s string) error {
					info, err := os.Stat(s)
					if err != nil || !info.IsDir() {
						return fmt.Errorf("not a directory")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Default provider").
				Options(
					huh.NewOption("Claude (CLI)", "claude-cli"),
					huh.NewOption("GPT (CLI)", "codex-cli"),
					huh.NewOption("GPT (API)", "openai-api"),
				).
				Value(&providerName),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("OpenAI API key").
				Description("Required for the openai-api provider, leave empty otherwise").
				EchoMode(huh.EchoModePassword).
				Value(&openaiKey),
			huh.NewInput().
				Title("OpenAI model").
				Placeholder("gpt-4o").
				Value(&openaiModel),
			huh.NewInput().
				Title("Todoist API token").
				EchoMode(huh.EchoModePassword).
				Value(&todoistKey),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("Leave empty to run without the bot").
				EchoMode(huh.EchoModePassword).
				Value(&telegramToken),
			huh.NewInput().
				Title("Telegram user ID").
				Description("Only this user may talk to the bot").
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					_, err := strconv.ParseInt(s, 10, 64)
					return err
				}).
				Value(&allowedUser),
			huh.NewConfirm().
				Title("Commit and push the vault after each run?").
				Value(&gitEnabled),
			huh.NewConfirm().
				Title("Enable scheduled daily and weekly runs?").
				Value(&cronEnabled),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	content := renderConfig(configAnswers{
		VaultPath:     vaultPath,
		Provider:      providerName,
		OpenAIKey:     openaiKey,
		OpenAIModel:   openaiModel,
		TodoistKey:    todoistKey,
		TelegramToken: telegramToken,
		AllowedUser:   allowedUser,
		GitEnabled:    gitEnabled,
		CronEnabled:   cronEnabled,
	})

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(out, []byte(content), 0o600); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", out)
	return nil
}

type configAnswers struct {
	VaultPath     string
	Provider      string
	OpenAIKey     string
	OpenAIModel   string
	TodoistKey    string
	TelegramToken string
	AllowedUser   string
	GitEnabled    bool
	CronEnabled   bool
}

// renderConfig emits YAML by hand so the file carries the structure a
// user will want to edit later, without zero-valued noise.
func renderConfig(a configAnswers) string {
	var b strings.Builder
	b.WriteString("version: \"1\"\n\n")

	b.WriteString("vault:\n")
	fmt.Fprintf(&b, "  path: %s\n", a.VaultPath)
	b.WriteString("  git:\n")
	fmt.Fprintf(&b, "    enabled: %t\n\n", a.GitEnabled)

	b.WriteString("provider:\n")
	fmt.Fprintf(&b, "  default: %s\n", a.Provider)
	b.WriteString("  timeout: 20m\n")
	if a.OpenAIKey != "" || a.OpenAIModel != "" {
		b.WriteString("  openai:\n")
		if a.OpenAIKey != "" {
			fmt.Fprintf(&b, "    api_key: %s\n", a.OpenAIKey)
		}
		if a.OpenAIModel != "" {
			fmt.Fprintf(&b, "    model: %s\n", a.OpenAIModel)
		}
	}
	b.WriteString("\n")

	if a.TodoistKey != "" {
		b.WriteString("todoist:\n")
		fmt.Fprintf(&b, "  api_key: %s\n\n", a.TodoistKey)
	}

	if a.TelegramToken != "" {
		b.WriteString("telegram:\n")
		fmt.Fprintf(&b, "  token: %s\n", a.TelegramToken)
		if a.AllowedUser != "" {
			fmt.Fprintf(&b, "  allowed_user_ids: [%s]\n", a.AllowedUser)
		}
		b.WriteString("\n")
	}

	b.WriteString("cron:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", a.CronEnabled)
	b.WriteString("  daily_schedule: \"30 23 * * *\"\n")
	b.WriteString("  weekly_schedule: \"0 18 * * 0\"\n")

	return b.String()
}

func defaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdg, "dbrain", "dbrain.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dbrain", "dbrain.yaml")
}
