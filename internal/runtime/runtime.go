// Package runtime executes canonical capabilities against real backends:
// the vault filesystem (confined to its root directory) and the Todoist
// API. Execution never returns a Go error; every failure is folded into
// the structured capability result.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dbrain-dev/dbrain/internal/capability"
	"github.com/dbrain-dev/dbrain/internal/todoist"
)

// Runtime executes a named capability with a decoded argument payload.
type Runtime interface {
	Execute(ctx context.Context, name string, payload map[string]any) capability.Result
}

// Local is the default runtime for vault.* and todoist.* capabilities.
type Local struct {
	registry capability.Registry
	root     string
	todoist  *todoist.Client
	logger   *slog.Logger
}

// Compile-time interface guard.
var _ Runtime = (*Local)(nil)

// NewLocal creates a runtime rooted at vaultPath. The path is resolved
// through symlinks once so that containment checks compare real paths.
func NewLocal(vaultPath string, registry capability.Registry, client *todoist.Client, logger *slog.Logger) (*Local, error) {
	abs, err := filepath.Abs(vaultPath)
	if err != nil {
		return nil, fmt.Errorf("runtime: resolve vault path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		registry: registry,
		root:     abs,
		todoist:  client,
		logger:   logger.With("component", "runtime"),
	}, nil
}

// Execute runs one capability call. Unknown names, invalid payloads, and
// handler failures all come back as structured errors; panics are
// recovered into runtime_error.
func (l *Local) Execute(ctx context.Context, name string, payload map[string]any) (result capability.Result) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("capability handler panicked", "capability", name, "panic", r)
			result = capability.Fail(name, capability.Errorf(
				capability.CodeRuntimeError,
				fmt.Sprintf("panic: %v", r),
				false,
			))
		}
	}()

	spec, ok := l.registry.Get(name)
	if !ok {
		return capability.Fail(name, capability.Errorf(
			capability.CodeUnsupportedCapability,
			"unsupported capability: "+name,
			false,
		))
	}

	if err := spec.ValidateInput(payload); err != nil {
		return capability.Fail(name, capability.Errorf(
			capability.CodeInvalidInput,
			err.Error(),
			false,
		))
	}

	data, err := l.dispatch(ctx, name, payload)
	if err != nil {
		return capability.Fail(name, asCapabilityError(err))
	}
	return capability.Succeed(name, data)
}

func (l *Local) dispatch(ctx context.Context, name string, payload map[string]any) (map[string]any, error) {
	switch name {
	case capability.VaultReadFile:
		return l.vaultReadFile(payload)
	case capability.VaultWriteFile:
		return l.vaultWriteFile(payload)
	case capability.VaultListFiles:
		return l.vaultListFiles(payload)
	case capability.TodoistUserInfo:
		return l.todoistUserInfo(ctx)
	case capability.TodoistAddTasks:
		return l.todoistAddTasks(ctx, payload)
	case capability.TodoistFindCompletedTasks:
		return l.todoistFindCompletedTasks(ctx, payload)
	default:
		return nil, capability.Errorf(capability.CodeUnsupportedCapability, "unsupported capability: "+name, false)
	}
}

// asCapabilityError returns the structured error if err carries one, or a
// runtime_error wrapper otherwise.
func asCapabilityError(err error) *capability.Error {
	var capErr *capability.Error
	if errors.As(err, &capErr) {
		return capErr
	}
	return capability.Errorf(capability.CodeRuntimeError, err.Error(), false)
}

// Payload field accessors. Schema validation runs before these, so they
// only need to coerce types, not re-validate them.

func stringField(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return fallback
}

func intField(payload map[string]any, key string, fallback int) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
