package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dbrain-dev/dbrain/internal/provider"
	"github.com/dbrain-dev/dbrain/internal/session"
	"github.com/dbrain-dev/dbrain/internal/usecase"
)

const (
	maxConsecutivePollingErrors = 5
	errorPauseDuration          = 30 * time.Second
)

// Processor is the use-case surface the bot drives.
type Processor interface {
	ProcessDaily(ctx context.Context, day time.Time) provider.Envelope
	GenerateWeekly(ctx context.Context) provider.Envelope
	ExecutePrompt(ctx context.Context, prompt string, userID int64) provider.Envelope
	ProviderName() string
}

// ProcessorFactory yields a processor bound to the named provider. Called
// on every command so /model switches take effect immediately.
type ProcessorFactory func(providerName string) (Processor, error)

// Syncer commits and pushes vault changes after successful processing.
type Syncer interface {
	CommitAndPush(ctx context.Context, message string) (bool, error)
}

// Bot is the long-polling Telegram frontend.
type Bot struct {
	client   *Client
	config   Config
	factory  ProcessorFactory
	selector *provider.Selector
	sync     Syncer
	sessions *session.Store
	timeout  time.Duration
	logger   *slog.Logger

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates the bot. The sync service and session store are optional.
func New(cfg Config, factory ProcessorFactory, selector *provider.Selector, syncer Syncer, sessions *session.Store, timeout time.Duration, logger *slog.Logger) *Bot {
	cfg.Defaults()
	if timeout <= 0 {
		timeout = usecase.DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		client:   NewClient(cfg.Token, cfg.APIURL),
		config:   cfg,
		factory:  factory,
		selector: selector,
		sync:     syncer,
		sessions: sessions,
		timeout:  timeout,
		logger:   logger.With("component", "telegram"),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop in a goroutine.
func (b *Bot) Start(ctx context.Context) error {
	// Long polling and webhooks are mutually exclusive.
	if err := b.client.DeleteWebhook(ctx); err != nil {
		b.logger.Warn("delete webhook failed", "error", err)
	}
	go b.loop()
	b.logger.Info("bot started", "allowed_users", len(b.config.AllowedUserIDs))
	return nil
}

// Stop signals the polling loop to stop and waits for it to finish.
// Safe to call multiple times.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.done
}

// Notify sends HTML to the primary allowed user, chunked to the message
// limit. Implements the scheduler's notifier.
func (b *Bot) Notify(ctx context.Context, html string) error {
	if len(b.config.AllowedUserIDs) == 0 {
		return fmt.Errorf("telegram: no allowed user to notify")
	}
	return b.send(ctx, b.config.AllowedUserIDs[0], html)
}

// loop runs the long-polling loop until Stop() is called.
func (b *Bot) loop() {
	defer close(b.done)

	var offset int
	var consecutiveErrors int

	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		updates, err := b.client.GetUpdates(b.pollCtx(), GetUpdatesRequest{
			Offset:         offset,
			Timeout:        b.config.PollingTimeout,
			AllowedUpdates: []string{"message"},
		})
		if err != nil {
			consecutiveErrors++
			b.logger.Error("polling getUpdates failed",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)
			if consecutiveErrors >= maxConsecutivePollingErrors {
				b.logger.Warn("polling paused after consecutive errors",
					"pause", errorPauseDuration,
				)
				select {
				case <-b.stopCh:
					return
				case <-time.After(errorPauseDuration):
				}
				consecutiveErrors = 0
			}
			continue
		}

		consecutiveErrors = 0

		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.Message != nil {
				// Long commands must not block the poll loop.
				go b.handleMessage(update.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(msg *Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	if !b.config.allowed(msg.From.ID) {
		b.logger.Debug("message denied by allow list", "user", msg.From.ID)
		return
	}

	ctx := context.Background()
	text := strings.TrimSpace(msg.Text)
	cmd, args, _ := strings.Cut(text, " ")

	switch cmd {
	case "/start", "/help":
		b.send(ctx, msg.Chat.ID, helpText)
	case "/process":
		b.runProcessing(ctx, msg, "⏳ Processing... (may take up to 20 min)", func(ctx context.Context, p Processor) provider.Envelope {
			return p.ProcessDaily(ctx, time.Time{})
		}, "chore: process daily "+time.Now().Format("2006-01-02"))
	case "/weekly":
		b.runProcessing(ctx, msg, "⏳ Генерирую недельный дайджест...", func(ctx context.Context, p Processor) provider.Envelope {
			return p.GenerateWeekly(ctx)
		}, "chore: weekly digest")
	case "/model":
		b.handleModel(ctx, msg.Chat.ID, strings.TrimSpace(args))
	case "/sync":
		b.handleSync(ctx, msg.Chat.ID)
	default:
		b.handlePrompt(ctx, msg, text)
	}
}

const helpText = `🧠 <b>d-brain</b>

/process — обработать сегодняшние заметки
/weekly — недельный дайджест
/model — показать или сменить модель
/sync — закоммитить и запушить vault
Любой другой текст — запрос ассистенту.`

func (b *Bot) handleModel(ctx context.Context, chatID int64, name string) {
	if name == "" {
		active := b.selector.Active()
		var lines []string
		lines = append(lines, "Активная модель: <b>"+provider.Label(active)+"</b>", "")
		for _, candidate := range []string{provider.NameClaudeCLI, provider.NameCodexCLI, provider.NameOpenAIAPI} {
			marker := "  "
			if candidate == active {
				marker = "✅ "
			}
			lines = append(lines, marker+"<code>"+candidate+"</code> — "+provider.Label(candidate))
		}
		lines = append(lines, "", "Сменить: /model &lt;name&gt;")
		b.send(ctx, chatID, strings.Join(lines, "\n"))
		return
	}

	label, err := b.selector.Set(name)
	if err != nil {
		b.send(ctx, chatID, "❌ "+err.Error())
		return
	}
	b.send(ctx, chatID, "✅ Активная модель: <b>"+label+"</b>")
}

func (b *Bot) handleSync(ctx context.Context, chatID int64) {
	if b.sync == nil {
		b.send(ctx, chatID, "❌ Git sync is not configured")
		return
	}
	ok, err := b.sync.CommitAndPush(ctx, "chore: manual sync")
	switch {
	case err != nil:
		b.send(ctx, chatID, "❌ Sync failed: <code>"+err.Error()+"</code>")
	case ok:
		b.send(ctx, chatID, "✅ Vault synchronized")
	default:
		b.send(ctx, chatID, "⚠️ Sync finished with errors, check logs")
	}
}

// runProcessing drives a long use case: immediate status message, the
// run itself under the outer ceiling, an optional git sync, and finally
// the report edited into the status message.
func (b *Bot) runProcessing(ctx context.Context, msg *Message, status string, fn func(context.Context, Processor) provider.Envelope, commitMessage string) {
	statusMsg, err := b.client.SendMessage(ctx, SendMessageRequest{
		ChatID:    msg.Chat.ID,
		Text:      status,
		ParseMode: "HTML",
	})
	if err != nil {
		b.logger.Error("send status message failed", "error", err)
		return
	}

	proc, err := b.processor()
	if err != nil {
		b.edit(ctx, msg.Chat.ID, statusMsg.MessageID, "❌ <code>"+err.Error()+"</code>")
		return
	}

	env := usecase.RunWithCeiling(ctx, proc.ProviderName(), b.timeout, func(ctx context.Context) provider.Envelope {
		return fn(ctx, proc)
	})

	if !env.Failed() && b.sync != nil {
		if ok, err := b.sync.CommitAndPush(ctx, commitMessage); err != nil || !ok {
			b.logger.Warn("vault sync failed", "error", err)
		}
	}
	b.edit(ctx, msg.Chat.ID, statusMsg.MessageID, formatReport(env))
}

func (b *Bot) handlePrompt(ctx context.Context, msg *Message, text string) {
	if text == "" {
		return
	}
	_ = b.client.SendChatAction(ctx, msg.Chat.ID, "typing")
	b.recordSession(ctx, msg.From.ID, "prompt", text)

	proc, err := b.processor()
	if err != nil {
		b.send(ctx, msg.Chat.ID, "❌ <code>"+err.Error()+"</code>")
		return
	}

	env := usecase.RunWithCeiling(ctx, proc.ProviderName(), b.timeout, func(ctx context.Context) provider.Envelope {
		return proc.ExecutePrompt(ctx, text, msg.From.ID)
	})
	if !env.Failed() {
		b.recordSession(ctx, msg.From.ID, "report", env.Report)
	}
	b.send(ctx, msg.Chat.ID, formatReport(env))
}

func (b *Bot) processor() (Processor, error) {
	return b.factory(b.selector.Active())
}

func (b *Bot) recordSession(ctx context.Context, userID int64, kind, text string) {
	if b.sessions == nil {
		return
	}
	if err := b.sessions.Append(ctx, userID, kind, text); err != nil {
		b.logger.Warn("session append failed", "error", err)
	}
}

// send delivers HTML to a chat, chunked to the message limit, falling
// back to plain text when Telegram rejects the markup.
func (b *Bot) send(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, b.config.MaxMessageLength) {
		_, err := b.client.SendMessage(ctx, SendMessageRequest{
			ChatID:    chatID,
			Text:      chunk,
			ParseMode: "HTML",
		})
		if err != nil {
			_, err = b.client.SendMessage(ctx, SendMessageRequest{
				ChatID: chatID,
				Text:   chunk,
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// edit replaces the status message, sending the overflow as follow-up
// messages when the report exceeds one chunk.
func (b *Bot) edit(ctx context.Context, chatID int64, messageID int, text string) {
	chunks := splitMessage(text, b.config.MaxMessageLength)

	_, err := b.client.EditMessageText(ctx, EditMessageTextRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      chunks[0],
		ParseMode: "HTML",
	})
	if err != nil {
		if _, err = b.client.EditMessageText(ctx, EditMessageTextRequest{
			ChatID:    chatID,
			MessageID: messageID,
			Text:      chunks[0],
		}); err != nil {
			b.logger.Error("edit status message failed", "error", err)
		}
	}
	for _, chunk := range chunks[1:] {
		if err := b.send(ctx, chatID, chunk); err != nil {
			b.logger.Error("send report chunk failed", "error", err)
			return
		}
	}
}

// pollCtx adapts the stop channel to a context for the HTTP client.
func (b *Bot) pollCtx() context.Context {
	return contextWrapper{stopCh: b.stopCh}
}

type contextWrapper struct {
	stopCh <-chan struct{}
}

func (c contextWrapper) Deadline() (time.Time, bool) { return time.Time{}, false }
func (c contextWrapper) Done() <-chan struct{}       { return c.stopCh }

func (c contextWrapper) Err() error {
	select {
	case <-c.stopCh:
		return errPollerStopped
	default:
		return nil
	}
}

func (c contextWrapper) Value(any) any { return nil }

var errPollerStopped = pollerStoppedError{}

type pollerStoppedError struct{}

func (pollerStoppedError) Error() string { return "poller stopped" }
