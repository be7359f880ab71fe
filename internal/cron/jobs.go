package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dbrain-dev/dbrain/internal/provider"
	"github.com/dbrain-dev/dbrain/internal/usecase"
)

// Processor is the subset of usecase.Processor needed by the jobs.
// Defined here to avoid a direct dependency on the facade type.
type Processor interface {
	ProcessDaily(ctx context.Context, day time.Time) provider.Envelope
	GenerateWeekly(ctx context.Context) provider.Envelope
	ProviderName() string
}

// Syncer commits and pushes vault changes after a successful run.
type Syncer interface {
	CommitAndPush(ctx context.Context, message string) (bool, error)
}

// Notifier delivers the rendered report to the chat channel.
type Notifier interface {
	Notify(ctx context.Context, html string) error
}

// DailyProcessingJob runs the nightly processing of today's daily note,
// syncs the vault, and pushes the report to the chat channel.
type DailyProcessingJob struct {
	Processor    Processor
	Sync         Syncer
	Notify       Notifier
	Timeout      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "30 23 * * *"
}

// Compile-time interface check.
var _ Job = (*DailyProcessingJob)(nil)

// Name implements Job.
func (j *DailyProcessingJob) Name() string { return "daily_processing" }

// Schedule implements Job.
func (j *DailyProcessingJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "30 23 * * *"
}

// Run executes the daily use case under the outer time ceiling. Sync and
// notification failures are logged; only the processing itself fails the
// job.
func (j *DailyProcessingJob) Run(ctx context.Context) error {
	env := usecase.RunWithCeiling(ctx, j.Processor.ProviderName(), j.Timeout, func(ctx context.Context) provider.Envelope {
		return j.Processor.ProcessDaily(ctx, time.Time{})
	})

	if env.Failed() {
		j.notify(ctx, "⚠️ <b>Daily processing failed</b>\n<code>"+env.Error+"</code>")
		return fmt.Errorf("cron: daily processing: %s", env.Error)
	}

	if j.Sync != nil {
		message := "chore: process daily " + time.Now().Format("2006-01-02")
		if ok, err := j.Sync.CommitAndPush(ctx, message); err != nil || !ok {
			j.Logger.Warn("cron: vault sync failed after daily processing", "error", err)
		}
	}
	j.notify(ctx, env.Report)
	return nil
}

func (j *DailyProcessingJob) notify(ctx context.Context, html string) {
	if j.Notify == nil {
		return
	}
	if err := j.Notify.Notify(ctx, html); err != nil {
		j.Logger.Warn("cron: notification failed", "job", j.Name(), "error", err)
	}
}

// WeeklyDigestJob generates the weekly digest, syncs the vault, and
// pushes the report to the chat channel.
type WeeklyDigestJob struct {
	Processor    Processor
	Sync         Syncer
	Notify       Notifier
	Timeout      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 18 * * 0"
}

// Compile-time interface check.
var _ Job = (*WeeklyDigestJob)(nil)

// Name implements Job.
func (j *WeeklyDigestJob) Name() string { return "weekly_digest" }

// Schedule implements Job.
func (j *WeeklyDigestJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 18 * * 0"
}

// Run executes the weekly digest under the outer time ceiling.
func (j *WeeklyDigestJob) Run(ctx context.Context) error {
	env := usecase.RunWithCeiling(ctx, j.Processor.ProviderName(), j.Timeout, func(ctx context.Context) provider.Envelope {
		return j.Processor.GenerateWeekly(ctx)
	})

	if env.Failed() {
		j.notify(ctx, "⚠️ <b>Weekly digest failed</b>\n<code>"+env.Error+"</code>")
		return fmt.Errorf("cron: weekly digest: %s", env.Error)
	}

	if j.Sync != nil {
		if ok, err := j.Sync.CommitAndPush(ctx, "chore: weekly digest"); err != nil || !ok {
			j.Logger.Warn("cron: vault sync failed after weekly digest", "error", err)
		}
	}
	j.notify(ctx, env.Report)
	return nil
}

func (j *WeeklyDigestJob) notify(ctx context.Context, html string) {
	if j.Notify == nil {
		return
	}
	if err := j.Notify.Notify(ctx, html); err != nil {
		j.Logger.Warn("cron: notification failed", "job", j.Name(), "error", err)
	}
}
