// Package factory constructs providers by name, validating their
// prerequisites up front. Selection happens once at startup; a provider
// that cannot run in the current environment fails here, not mid-job.
package factory

import (
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/dbrain-dev/dbrain/internal/capability"
	"github.com/dbrain-dev/dbrain/internal/provider"
	"github.com/dbrain-dev/dbrain/internal/runtime"
	"github.com/dbrain-dev/dbrain/modules/provider/claudecli"
	"github.com/dbrain-dev/dbrain/modules/provider/codexcli"
	"github.com/dbrain-dev/dbrain/modules/provider/openaiapi"
)

// Settings carries everything any provider might need. Each provider
// picks out its own fields.
type Settings struct {
	// Workdir is the vault checkout the CLI providers run inside.
	Workdir string

	// MCPConfigPath points at the MCP server config handed to the
	// claude CLI.
	MCPConfigPath string

	// TodoistAPIKey is forwarded into CLI subprocess environments.
	TodoistAPIKey string

	// OpenAI configures the HTTP API provider.
	OpenAI openaiapi.Config

	Registry capability.Registry
	Runtime  runtime.Runtime
	Logger   *slog.Logger
}

// New builds the named provider, failing fast when its prerequisites
// are missing: CLI providers require the binary on PATH, the API
// provider requires credentials and a model.
func New(name string, s Settings) (provider.Provider, error) {
	switch name {
	case provider.NameClaudeCLI:
		if _, err := exec.LookPath("claude"); err != nil {
			return nil, fmt.Errorf("factory: claude CLI not found on PATH: %w", err)
		}
		return claudecli.New(claudecli.Config{
			Workdir:       s.Workdir,
			MCPConfigPath: s.MCPConfigPath,
			TodoistAPIKey: s.TodoistAPIKey,
		}), nil

	case provider.NameCodexCLI:
		if _, err := exec.LookPath("codex"); err != nil {
			return nil, fmt.Errorf("factory: codex CLI not found on PATH: %w", err)
		}
		return codexcli.New(codexcli.Config{
			Workdir:       s.Workdir,
			TodoistAPIKey: s.TodoistAPIKey,
		}), nil

	case provider.NameOpenAIAPI:
		if s.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("factory: %s requires an API key", provider.NameOpenAIAPI)
		}
		if s.OpenAI.Model == "" {
			return nil, fmt.Errorf("factory: %s requires a model", provider.NameOpenAIAPI)
		}
		return openaiapi.New(s.OpenAI, s.Registry, s.Runtime, s.Logger), nil

	default:
		return nil, fmt.Errorf("factory: unknown provider %q (valid: %s, %s, %s)",
			name, provider.NameClaudeCLI, provider.NameCodexCLI, provider.NameOpenAIAPI)
	}
}
