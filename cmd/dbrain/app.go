package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbrain-dev/dbrain/internal/capability"
	"github.com/dbrain-dev/dbrain/internal/config"
	"github.com/dbrain-dev/dbrain/internal/cron"
	"github.com/dbrain-dev/dbrain/internal/gateway"
	"github.com/dbrain-dev/dbrain/internal/mcpserver"
	"github.com/dbrain-dev/dbrain/internal/provider"
	"github.com/dbrain-dev/dbrain/internal/provider/factory"
	"github.com/dbrain-dev/dbrain/internal/runtime"
	"github.com/dbrain-dev/dbrain/internal/session"
	"github.com/dbrain-dev/dbrain/internal/telemetry"
	"github.com/dbrain-dev/dbrain/internal/todoist"
	"github.com/dbrain-dev/dbrain/internal/usecase"
	"github.com/dbrain-dev/dbrain/internal/vaultgit"
	"github.com/dbrain-dev/dbrain/modules/channel/telegram"
)

// app holds the long-lived pieces shared by every command: the capability
// runtime, provider selection, sessions, git sync, and metrics.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry capability.Registry
	runtime  *runtime.Local
	selector *provider.Selector
	sessions *session.Store
	sync     *vaultgit.Service
	metrics  *gateway.Metrics
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	registry := capability.Build()
	todoClient := todoist.NewClient(cfg.Todoist.APIKey, "")
	rt, err := runtime.NewLocal(cfg.Vault.Path, registry, todoClient, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		runtime:  rt,
		selector: provider.NewSelector(cfg.Provider.Default),
		metrics:  gateway.NewMetrics(),
	}

	if cfg.Session.DBPath != "" {
		sessions, err := session.Open(cfg.Session.DBPath)
		if err != nil {
			return nil, err
		}
		a.sessions = sessions
	}

	if cfg.Vault.Git.Enabled {
		a.sync = vaultgit.New(cfg.Vault.Path, logger)
		a.sync.SetLockTimeout(cfg.Vault.Git.LockTimeout.Std())
	}

	return a, nil
}

func (a *app) close() {
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.logger.Warn("closing session store", "error", err)
		}
	}
}

// syncer adapts the optional git service to the Syncer interfaces. A nil
// result disables syncing everywhere.
func (a *app) syncer() *vaultgit.Service {
	return a.sync
}

func (a *app) factorySettings() factory.Settings {
	return factory.Settings{
		Workdir:       a.cfg.Provider.Workdir,
		MCPConfigPath: a.cfg.Provider.MCPConfigPath,
		TodoistAPIKey: a.cfg.Todoist.APIKey,
		OpenAI:        a.cfg.Provider.OpenAI.Provider(),
		Registry:      a.registry,
		Runtime:       a.runtime,
		Logger:        a.logger,
	}
}

// processor builds the use-case facade for the named provider, wrapped
// with metrics recording.
func (a *app) processor(providerName string) (*measuredProcessor, error) {
	p, err := factory.New(providerName, a.factorySettings())
	if err != nil {
		return nil, err
	}
	inner := usecase.NewProcessor(usecase.ProcessorOptions{
		VaultPath: a.cfg.Vault.Path,
		Provider:  p,
		Sessions:  a.sessions,
		Timeout:   a.cfg.Provider.Timeout.Std(),
		Logger:    a.logger,
	})
	return &measuredProcessor{inner: inner, metrics: a.metrics}, nil
}

// measuredProcessor records execution metrics around the use-case facade.
type measuredProcessor struct {
	inner   *usecase.Processor
	metrics *gateway.Metrics
}

func (m *measuredProcessor) record(env provider.Envelope, started time.Time) provider.Envelope {
	m.metrics.RecordExecution(env.Provider, !env.Failed(), time.Since(started).Seconds())
	for _, f := range env.ToolFailures {
		code := "unknown"
		if f.Error != nil {
			code = f.Error.Code
		}
		m.metrics.RecordToolFailure(f.Capability, code)
	}
	return env
}

func (m *measuredProcessor) ProviderName() string { return m.inner.ProviderName() }

func (m *measuredProcessor) ProcessDaily(ctx context.Context, day time.Time) provider.Envelope {
	started := time.Now()
	return m.record(m.inner.ProcessDaily(ctx, day), started)
}

func (m *measuredProcessor) GenerateWeekly(ctx context.Context) provider.Envelope {
	started := time.Now()
	return m.record(m.inner.GenerateWeekly(ctx), started)
}

func (m *measuredProcessor) ExecutePrompt(ctx context.Context, prompt string, userID int64) provider.Envelope {
	started := time.Now()
	return m.record(m.inner.ExecutePrompt(ctx, prompt, userID), started)
}

// measuredJob records scheduled job outcomes.
type measuredJob struct {
	cron.Job
	metrics *gateway.Metrics
}

func (j measuredJob) Run(ctx context.Context) error {
	err := j.Job.Run(ctx)
	j.metrics.RecordJobRun(j.Name(), err == nil)
	return err
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the bot, scheduler, and HTTP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)
			return runStart(cmd.Context(), cfg, logger)
		},
	}
}

func runStart(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTraces, err := telemetry.Init(ctx, telemetry.Options{
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTraces(context.Background()); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	// Fail fast on a broken provider setup before anything starts.
	if _, err := a.processor(a.selector.Active()); err != nil {
		return err
	}

	var bot *telegram.Bot
	if cfg.Telegram.Token != "" {
		telegramFactory := func(providerName string) (telegram.Processor, error) {
			return a.processor(providerName)
		}
		var botSync telegram.Syncer
		if a.syncer() != nil {
			botSync = a.syncer()
		}
		bot = telegram.New(cfg.Telegram, telegramFactory, a.selector, botSync, a.sessions, cfg.Provider.Timeout.Std(), logger)
		if err := bot.Start(ctx); err != nil {
			return err
		}
		defer bot.Stop()
	}

	if cfg.Cron.Enabled {
		scheduler, err := buildScheduler(a, bot)
		if err != nil {
			return err
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := scheduler.Stop(stopCtx); err != nil {
				logger.Warn("scheduler stop failed", "error", err)
			}
		}()
	}

	if cfg.Gateway.Enabled {
		gw := gateway.New(cfg.Gateway.Gateway(), cfg.Vault.Path, a.selector, a.metrics, logger)
		if err := gw.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Gateway().ShutdownTimeout)
			defer cancel()
			if err := gw.Stop(stopCtx); err != nil {
				logger.Warn("gateway stop failed", "error", err)
			}
		}()
	}

	logger.Info("dbrain started",
		"provider", a.selector.Active(),
		"telegram", cfg.Telegram.Token != "",
		"cron", cfg.Cron.Enabled,
		"gateway", cfg.Gateway.Enabled,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// scheduledProcessor defers provider construction to run time so /model
// switches apply to scheduled runs too.
type scheduledProcessor struct {
	app *app
}

func (s scheduledProcessor) ProcessDaily(ctx context.Context, day time.Time) provider.Envelope {
	p, err := s.app.processor(s.app.selector.Active())
	if err != nil {
		return provider.Envelope{Error: err.Error(), Provider: s.app.selector.Active()}
	}
	return p.ProcessDaily(ctx, day)
}

func (s scheduledProcessor) GenerateWeekly(ctx context.Context) provider.Envelope {
	p, err := s.app.processor(s.app.selector.Active())
	if err != nil {
		return provider.Envelope{Error: err.Error(), Provider: s.app.selector.Active()}
	}
	return p.GenerateWeekly(ctx)
}

func (s scheduledProcessor) ProviderName() string { return s.app.selector.Active() }

func buildScheduler(a *app, bot *telegram.Bot) (*cron.Scheduler, error) {
	scheduler := cron.NewScheduler(a.logger)

	var notify cron.Notifier
	if bot != nil {
		notify = bot
	}
	var syncer cron.Syncer
	if a.syncer() != nil {
		syncer = a.syncer()
	}

	daily := &cron.DailyProcessingJob{
		Processor:    scheduledProcessor{app: a},
		Sync:         syncer,
		Notify:       notify,
		Timeout:      a.cfg.Provider.Timeout.Std(),
		Logger:       a.logger,
		ScheduleExpr: a.cfg.Cron.DailySchedule,
	}
	weekly := &cron.WeeklyDigestJob{
		Processor:    scheduledProcessor{app: a},
		Sync:         syncer,
		Notify:       notify,
		Timeout:      a.cfg.Provider.Timeout.Std(),
		Logger:       a.logger,
		ScheduleExpr: a.cfg.Cron.WeeklySchedule,
	}

	for _, job := range []cron.Job{daily, weekly} {
		if err := scheduler.RegisterJob(measuredJob{Job: job, metrics: a.metrics}); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the capability tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			return mcpserver.New(a.registry, a.runtime, version, logger).ServeStdio()
		},
	}
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process [date]",
		Short: "Process a daily note (defaults to today) and sync the vault",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var day time.Time
			if len(args) == 1 {
				parsed, err := time.Parse("2006-01-02", args[0])
				if err != nil {
					return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", args[0])
				}
				day = parsed
			}
			return runOnce(cmd, func(ctx context.Context, a *app, p *measuredProcessor) provider.Envelope {
				env := usecase.RunWithCeiling(ctx, p.ProviderName(), a.cfg.Provider.Timeout.Std(), func(ctx context.Context) provider.Envelope {
					return p.ProcessDaily(ctx, day)
				})
				if !env.Failed() {
					syncAfter(ctx, a, "chore: process daily "+dateOrToday(day))
				}
				return env
			})
		},
	}
}

func weeklyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weekly",
		Short: "Generate the weekly digest and sync the vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, func(ctx context.Context, a *app, p *measuredProcessor) provider.Envelope {
				env := usecase.RunWithCeiling(ctx, p.ProviderName(), a.cfg.Provider.Timeout.Std(), func(ctx context.Context) provider.Envelope {
					return p.GenerateWeekly(ctx)
				})
				if !env.Failed() {
					syncAfter(ctx, a, "chore: weekly digest")
				}
				return env
			})
		},
	}
}

func promptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <text>",
		Short: "Run a single assistant request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return runOnce(cmd, func(ctx context.Context, a *app, p *measuredProcessor) provider.Envelope {
				return usecase.RunWithCeiling(ctx, p.ProviderName(), a.cfg.Provider.Timeout.Std(), func(ctx context.Context) provider.Envelope {
					return p.ExecutePrompt(ctx, text, 0)
				})
			})
		},
	}
}

// runOnce wires the app for a one-shot command and prints the envelope.
func runOnce(cmd *cobra.Command, fn func(context.Context, *app, *measuredProcessor) provider.Envelope) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.processor(a.selector.Active())
	if err != nil {
		return err
	}

	env := fn(ctx, a, p)
	if env.Failed() {
		return fmt.Errorf("%s", env.Error)
	}
	fmt.Println(env.Report)
	return nil
}

func syncAfter(ctx context.Context, a *app, message string) {
	if a.syncer() == nil {
		return
	}
	if _, err := a.syncer().CommitAndPush(ctx, message); err != nil {
		a.logger.Warn("vault sync failed", "error", err)
	}
}

func dateOrToday(day time.Time) string {
	if day.IsZero() {
		day = time.Now()
	}
	return day.Format("2006-01-02")
}
