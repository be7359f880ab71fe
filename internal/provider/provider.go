// Package provider defines the execution-provider contract: a backend that
// turns a text prompt into a raw result, via a local CLI subprocess or an
// HTTP chat-completions API. Concrete implementations live in separate
// packages (e.g. modules/provider/openaiapi).
package provider

import (
	"context"
	"time"

	"github.com/dbrain-dev/dbrain/internal/capability"
)

// Provider is the low-level execution interface (transport + execution).
type Provider interface {
	// Name returns the stable provider identifier.
	Name() string

	// Execute runs a prompt and returns the raw provider result. The
	// timeout bounds the backend call; ctx cancellation must tear down
	// any subprocess or connection. Unrecoverable conditions are
	// reported as a *provider.Error.
	Execute(ctx context.Context, prompt string, timeout time.Duration) (ExecutionResult, error)
}

// Canonical provider names.
const (
	NameClaudeCLI = "claude-cli"
	NameCodexCLI  = "codex-cli"
	NameOpenAIAPI = "openai-api"
)

// ExecutionResult is the raw output of one Execute call. It is produced
// once and never mutated. ReturnCode zero means success.
type ExecutionResult struct {
	Stdout     string
	Stderr     string
	ReturnCode int
	Provider   string
	Meta       map[string]any
}

// ToolFailure records one failed capability call observed during a
// tool-calling session, in call order.
type ToolFailure struct {
	Capability string            `json:"capability"`
	Error      *capability.Error `json:"error"`
}

// Meta keys set by providers that run a tool-calling loop.
const (
	MetaModel        = "model"
	MetaResponseID   = "id"
	MetaUsage        = "usage"
	MetaToolFailures = "tool_failures"
)

// ToolFailuresFromMeta extracts the recorded tool failures from a result's
// meta mapping, tolerating results from providers that never set it.
func ToolFailuresFromMeta(meta map[string]any) []ToolFailure {
	if meta == nil {
		return nil
	}
	failures, _ := meta[MetaToolFailures].([]ToolFailure)
	return failures
}
