package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dbrain-dev/dbrain/internal/provider"
)

// PromptUseCase runs an arbitrary user request enriched with session
// history and the Todoist reference document.
type PromptUseCase struct {
	vaultPath string
	provider  provider.Provider
	loader    *ContextLoader
	timeout   time.Duration
	logger    *slog.Logger
}

// NewPrompt builds the freeform-prompt use case.
func NewPrompt(vaultPath string, p provider.Provider, loader *ContextLoader, timeout time.Duration, logger *slog.Logger) *PromptUseCase {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptUseCase{
		vaultPath: vaultPath,
		provider:  p,
		loader:    loader,
		timeout:   timeout,
		logger:    logger.With("component", "usecase.prompt"),
	}
}

// Run executes the user's request. userID zero means anonymous: no
// session context is attached.
func (u *PromptUseCase) Run(ctx context.Context, userPrompt string, userID int64) provider.Envelope {
	return traced(ctx, "usecase.prompt", u.provider.Name(), func(ctx context.Context) provider.Envelope {
		return u.run(ctx, userPrompt, userID)
	})
}

func (u *PromptUseCase) run(ctx context.Context, userPrompt string, userID int64) provider.Envelope {
	started := time.Now()
	today := time.Now().Format("2006-01-02")

	prompt := fmt.Sprintf(`Ты - персональный ассистент d-brain.

CONTEXT:
- Текущая дата: %s
- Vault path: %s

%s=== TODOIST REFERENCE ===
%s
=== END REFERENCE ===

%s

USER REQUEST:
%s

CRITICAL OUTPUT FORMAT:
- Return ONLY raw HTML for Telegram (parse_mode=HTML)
- NO markdown: no **, no ##, no `+"```"+`, no tables, no -
- Start with emoji and <b>header</b>
- Allowed tags: <b>, <i>, <code>, <s>, <u>
- Be concise - Telegram has 4096 char limit

EXECUTION:
1. Analyze the request
2. Call available Todoist/Vault tools directly
3. Return HTML status report with results`,
		today,
		u.vaultPath,
		u.loader.SessionContext(ctx, userID),
		u.loader.TodoistReference(),
		toolInstructions(u.provider.Name(), ""),
		userPrompt,
	)

	result, err := u.provider.Execute(ctx, prompt, u.timeout)
	if err != nil {
		u.logger.Error("prompt execution error", "error", err)
		return failEnvelope(u.provider.Name(), err.Error(), started)
	}
	if result.ReturnCode != 0 {
		u.logger.Error("prompt execution failed", "stderr", result.Stderr)
	}
	return wrap(result, "Prompt execution failed", started)
}
