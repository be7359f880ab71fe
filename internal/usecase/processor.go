package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/dbrain-dev/dbrain/internal/provider"
	"github.com/dbrain-dev/dbrain/internal/session"
)

// Processor is the facade consumed by the chat channel, the scheduler,
// and the CLI. It owns one provider and the three use cases built on it.
type Processor struct {
	provider provider.Provider
	daily    *DailyUseCase
	prompt   *PromptUseCase
	weekly   *WeeklyDigestUseCase
}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	VaultPath string
	Provider  provider.Provider

	// Sessions enables session-context enrichment for prompts. Optional.
	Sessions *session.Store

	// Timeout bounds each provider execution. Zero means DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// NewProcessor wires the use cases around a single provider.
func NewProcessor(opts ProcessorOptions) *Processor {
	loader := NewContextLoader(opts.VaultPath, opts.Sessions)
	return &Processor{
		provider: opts.Provider,
		daily:    NewDaily(opts.VaultPath, opts.Provider, loader, opts.Timeout, opts.Logger),
		prompt:   NewPrompt(opts.VaultPath, opts.Provider, loader, opts.Timeout, opts.Logger),
		weekly:   NewWeekly(opts.VaultPath, opts.Provider, opts.Timeout, opts.Logger),
	}
}

// ProviderName reports which provider this processor executes with.
func (p *Processor) ProviderName() string {
	return p.provider.Name()
}

// ProcessDaily processes the given day's note. Zero day means today.
func (p *Processor) ProcessDaily(ctx context.Context, day time.Time) provider.Envelope {
	return p.daily.Run(ctx, day)
}

// ExecutePrompt runs an arbitrary user request.
func (p *Processor) ExecutePrompt(ctx context.Context, userPrompt string, userID int64) provider.Envelope {
	return p.prompt.Run(ctx, userPrompt, userID)
}

// GenerateWeekly produces and archives the weekly digest.
func (p *Processor) GenerateWeekly(ctx context.Context) provider.Envelope {
	return p.weekly.Run(ctx)
}
