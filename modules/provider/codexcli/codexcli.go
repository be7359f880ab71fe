// Package codexcli implements the codex-cli execution provider: prompts
// run through the OpenAI Codex CLI (codex exec) in a sandboxed subprocess
// without external tool configuration.
package codexcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/dbrain-dev/dbrain/internal/provider"
)

const waitDelay = 5 * time.Second

// Config holds the codex CLI provider configuration.
type Config struct {
	// Workdir is the working directory for the subprocess.
	Workdir string

	// TodoistAPIKey is injected as TODOIST_API_KEY only when non-empty.
	TodoistAPIKey string
}

// Provider executes prompts via the codex CLI.
type Provider struct {
	config Config
}

// Compile-time interface guard.
var _ provider.Provider = (*Provider)(nil)

// New creates a codex CLI provider.
func New(cfg Config) *Provider {
	return &Provider{config: cfg}
}

// Name returns the stable provider identifier.
func (p *Provider) Name() string {
	return provider.NameCodexCLI
}

// Execute runs the prompt through `codex exec` and returns its raw output
// verbatim. Missing binaries and timeouts surface as provider errors.
func (p *Provider) Execute(ctx context.Context, prompt string, timeout time.Duration) (provider.ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "codex",
		"exec",
		"--ask-for-approval", "never",
		"--sandbox", "workspace-write",
		prompt,
	)
	cmd.Dir = p.config.Workdir
	cmd.WaitDelay = waitDelay
	cmd.Env = os.Environ()
	if p.config.TodoistAPIKey != "" {
		cmd.Env = append(cmd.Env, "TODOIST_API_KEY="+p.config.TodoistAPIKey)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return provider.ExecutionResult{}, provider.WrapError(p.Name(), "execution timed out", ctx.Err())
	case ctx.Err() != nil:
		return provider.ExecutionResult{}, provider.WrapError(p.Name(), "execution canceled", ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if errors.Is(err, exec.ErrNotFound) {
				return provider.ExecutionResult{}, provider.WrapError(p.Name(), "codex CLI not installed", err)
			}
			return provider.ExecutionResult{}, provider.WrapError(p.Name(), fmt.Sprintf("subprocess failed: %v", err), err)
		}
	}

	return provider.ExecutionResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ReturnCode: cmd.ProcessState.ExitCode(),
		Provider:   p.Name(),
	}, nil
}
