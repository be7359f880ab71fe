// Package claudecli implements the claude-cli execution provider: prompts
// are run through the claude CLI as a subprocess, with tool access wired
// through an MCP config file. Any tool use happens inside the subprocess
// and is opaque to this process.
package claudecli

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

// waitDelay bounds how long Wait blocks on subprocess I/O after the
// context is cancelled, so a stuck child cannot leak.
const waitDelay = 5 * time.Second

// Config holds the claude CLI provider configuration.
type Config struct {
	// Workdir is the working directory for the subprocess, normally the
	// vault's parent directory.
	Workdir string

	// MCPConfigPath points at the MCP tool configuration file handed to
	// the CLI. Its absence is a precondition failure.
	MCPConfigPath string

	// TodoistAPIKey is injected as TODOIST_API_KEY only when non-empty.
	TodoistAPIKey string
}

// Provider executes prompts via the claude CLI.
type Provider struct {
	config Config
}

// Compile-time interface guard.
var _ provider.Provider = (*Provider)(nil)

// New creates a claude CLI provider.
func New(cfg Config) *Provider {
	return &Provider{config: cfg}
}

// Name returns the stable provider identifier.
func (p *Provider) Name() string {
	return provider.NameClaudeCLI
}

// Execute runs the prompt through the claude CLI and returns its raw
// output verbatim. Precondition failures, missing binaries, and timeouts
// surface as provider errors, never as raw results.
func (p *Provider) Execute(ctx context.Context, prompt string, timeout time.Duration) (provider.ExecutionResult, error) {
	if _, err := os.Stat(p.config.MCPConfigPath); err != nil {
		return provider.ExecutionResult{}, provider.Errorf(p.Name(), "MCP config not found: %s", p.config.MCPConfigPath)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "claude",
		"--print",
		"--dangerously-skip-permissions",
		"--mcp-config", p.config.MCPConfigPath,
		"-p", prompt,
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
				return provider.ExecutionResult{}, provider.WrapError(p.Name(), "claude CLI not installed", err)
			}
			return provider.ExecutionResult{}, provider.WrapError(p.Name(), fmt.Sprintf("subprocess failed: %v", err), err)
		}
		// Nonzero exit is a valid raw result; the use-case layer folds it
		// into an error envelope.
	}

	return provider.ExecutionResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ReturnCode: cmd.ProcessState.ExitCode(),
		Provider:   p.Name(),
	}, nil
}
