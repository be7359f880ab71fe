package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dbrain-dev/dbrain/internal/provider"
)

// DailyUseCase runs daily-note processing through a provider. The day's
// note must exist under vault/daily; everything else is delegated to the
// model via the skill instructions.
type DailyUseCase struct {
	vaultPath string
	provider  provider.Provider
	loader    *ContextLoader
	timeout   time.Duration
	logger    *slog.Logger
}

// NewDaily builds the daily-processing use case.
func NewDaily(vaultPath string, p provider.Provider, loader *ContextLoader, timeout time.Duration, logger *slog.Logger) *DailyUseCase {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyUseCase{
		vaultPath: vaultPath,
		provider:  p,
		loader:    loader,
		timeout:   timeout,
		logger:    logger.With("component", "usecase.daily"),
	}
}

// Run processes the given day. A zero day means today.
func (u *DailyUseCase) Run(ctx context.Context, day time.Time) provider.Envelope {
	return traced(ctx, "usecase.daily", u.provider.Name(), func(ctx context.Context) provider.Envelope {
		return u.run(ctx, day)
	})
}

func (u *DailyUseCase) run(ctx context.Context, day time.Time) provider.Envelope {
	started := time.Now()
	if day.IsZero() {
		day = time.Now()
	}
	date := day.Format("2006-01-02")

	dailyFile := filepath.Join(u.vaultPath, "daily", date+".md")
	if _, err := os.Stat(dailyFile); err != nil {
		u.logger.Warn("no daily file", "date", date)
		return failEnvelope(u.provider.Name(), "No daily file for "+date, started)
	}

	prompt := fmt.Sprintf(`Сегодня %s. Выполни ежедневную обработку.

=== SKILL INSTRUCTIONS ===
%s
=== END SKILL ===

%s

CRITICAL OUTPUT FORMAT:
- Return ONLY raw HTML for Telegram (parse_mode=HTML)
- NO markdown: no **, no ## , no `+"```"+`, no tables
- Start directly with 📊 <b>Обработка за %s</b>
- Allowed tags: <b>, <i>, <code>, <s>, <u>
- If entries already processed, return status report in same HTML format`,
		date,
		u.loader.SkillContent(),
		toolInstructions(u.provider.Name(), dailyTaskHint(u.provider.Name())),
		date,
	)

	result, err := u.provider.Execute(ctx, prompt, u.timeout)
	if err != nil {
		u.logger.Error("daily processing execution error", "error", err)
		return failEnvelope(u.provider.Name(), err.Error(), started)
	}
	if result.ReturnCode != 0 {
		u.logger.Error("daily processing failed", "stderr", result.Stderr)
	}
	return wrap(result, "Daily processing failed", started)
}
