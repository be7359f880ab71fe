package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dbrain-dev/dbrain/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiCall struct {
	method string
	body   map[string]any
}

// fakeAPI records Bot API calls and answers them with canned success
// responses.
type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.calls = append(f.calls, apiCall{method: method, body: body})
		f.mu.Unlock()

		switch method {
		case "sendMessage", "editMessageText":
			fmt.Fprintf(w, `{"ok":true,"result":{"message_id":11,"chat":{"id":%v,"type":"private"}}}`, body["chat_id"])
		default:
			fmt.Fprint(w, `{"ok":true,"result":true}`)
		}
	})
}

func (f *fakeAPI) texts(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.method == method {
			text, _ := c.body["text"].(string)
			out = append(out, text)
		}
	}
	return out
}

type fakeBotProcessor struct {
	name     string
	envelope provider.Envelope
	prompts  []string
}

func (f *fakeBotProcessor) ProcessDaily(context.Context, time.Time) provider.Envelope {
	return f.envelope
}

func (f *fakeBotProcessor) GenerateWeekly(context.Context) provider.Envelope {
	return f.envelope
}

func (f *fakeBotProcessor) ExecutePrompt(_ context.Context, prompt string, _ int64) provider.Envelope {
	f.prompts = append(f.prompts, prompt)
	return f.envelope
}

func (f *fakeBotProcessor) ProviderName() string { return f.name }

type fakeBotSyncer struct {
	messages []string
	ok       bool
	err      error
}

func (f *fakeBotSyncer) CommitAndPush(_ context.Context, message string) (bool, error) {
	f.messages = append(f.messages, message)
	return f.ok, f.err
}

func newTestBot(t *testing.T, api *fakeAPI, proc *fakeBotProcessor, syncer Syncer) *Bot {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	cfg := Config{
		Token:          "12345:test",
		AllowedUserIDs: []int64{42},
		APIURL:         srv.URL,
	}
	factory := func(string) (Processor, error) { return proc, nil }
	selector := provider.NewSelector(provider.NameClaudeCLI)
	return New(cfg, factory, selector, syncer, nil, time.Minute, testLogger())
}

func message(userID, chatID int64, text string) *Message {
	return &Message{
		MessageID: 1,
		From:      &User{ID: userID},
		Chat:      Chat{ID: chatID},
		Text:      text,
	}
}

func TestHandleMessage_DeniedUser(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api, &fakeBotProcessor{name: "claude-cli"}, nil)

	bot.handleMessage(message(999, 999, "/help"))

	if n := len(api.calls); n != 0 {
		t.Errorf("API calls = %d, want 0", n)
	}
}

func TestHandleMessage_Help(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api, &fakeBotProcessor{name: "claude-cli"}, nil)

	bot.handleMessage(message(42, 42, "/help"))

	texts := api.texts("sendMessage")
	if len(texts) != 1 || !strings.Contains(texts[0], "/process") {
		t.Errorf("help texts = %v", texts)
	}
}

func TestHandleModel_ListAndSwitch(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api, &fakeBotProcessor{name: "claude-cli"}, nil)

	bot.handleMessage(message(42, 42, "/model"))
	texts := api.texts("sendMessage")
	if len(texts) != 1 {
		t.Fatalf("sendMessage calls = %d", len(texts))
	}
	if !strings.Contains(texts[0], "✅ <code>claude-cli</code>") {
		t.Errorf("active marker missing: %q", texts[0])
	}
	if !strings.Contains(texts[0], "codex-cli") || !strings.Contains(texts[0], "openai-api") {
		t.Errorf("provider list incomplete: %q", texts[0])
	}

	bot.handleMessage(message(42, 42, "/model codex-cli"))
	if got := bot.selector.Active(); got != "codex-cli" {
		t.Errorf("active provider = %q", got)
	}
	texts = api.texts("sendMessage")
	if !strings.Contains(texts[len(texts)-1], "✅ Активная модель") {
		t.Errorf("switch confirmation = %q", texts[len(texts)-1])
	}

	bot.handleMessage(message(42, 42, "/model nope"))
	texts = api.texts("sendMessage")
	if !strings.HasPrefix(texts[len(texts)-1], "❌") {
		t.Errorf("invalid provider reply = %q", texts[len(texts)-1])
	}
}

func TestHandleSync(t *testing.T) {
	api := &fakeAPI{}
	syncer := &fakeBotSyncer{ok: true}
	bot := newTestBot(t, api, &fakeBotProcessor{name: "claude-cli"}, syncer)

	bot.handleMessage(message(42, 42, "/sync"))

	if len(syncer.messages) != 1 || syncer.messages[0] != "chore: manual sync" {
		t.Errorf("commit messages = %v", syncer.messages)
	}
	texts := api.texts("sendMessage")
	if !strings.Contains(texts[len(texts)-1], "✅ Vault synchronized") {
		t.Errorf("sync reply = %q", texts[len(texts)-1])
	}
}

func TestHandleSync_NotConfigured(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api, &fakeBotProcessor{name: "claude-cli"}, nil)

	bot.handleMessage(message(42, 42, "/sync"))

	texts := api.texts("sendMessage")
	if !strings.Contains(texts[len(texts)-1], "not configured") {
		t.Errorf("sync reply = %q", texts[len(texts)-1])
	}
}

func TestRunProcessing_SuccessSyncsAndEdits(t *testing.T) {
	api := &fakeAPI{}
	syncer := &fakeBotSyncer{ok: true}
	proc := &fakeBotProcessor{
		name:     "claude-cli",
		envelope: provider.Envelope{Report: "daily done", ProcessedEntries: 1},
	}
	bot := newTestBot(t, api, proc, syncer)

	bot.handleMessage(message(42, 42, "/process"))

	if len(syncer.messages) != 1 || !strings.HasPrefix(syncer.messages[0], "chore: process daily ") {
		t.Errorf("commit messages = %v", syncer.messages)
	}
	edits := api.texts("editMessageText")
	if len(edits) != 1 || edits[0] != "daily done" {
		t.Errorf("edits = %v", edits)
	}
}

func TestRunProcessing_FailureSkipsSync(t *testing.T) {
	api := &fakeAPI{}
	syncer := &fakeBotSyncer{ok: true}
	proc := &fakeBotProcessor{
		name:     "claude-cli",
		envelope: provider.Envelope{Error: "boom", Provider: "claude-cli"},
	}
	bot := newTestBot(t, api, proc, syncer)

	bot.handleMessage(message(42, 42, "/weekly"))

	if len(syncer.messages) != 0 {
		t.Errorf("sync ran on failure: %v", syncer.messages)
	}
	edits := api.texts("editMessageText")
	if len(edits) != 1 || !strings.Contains(edits[0], "❌ <b>Ошибка</b>") {
		t.Errorf("edits = %v", edits)
	}
}

func TestHandlePrompt(t *testing.T) {
	api := &fakeAPI{}
	proc := &fakeBotProcessor{
		name:     "openai-api",
		envelope: provider.Envelope{Report: "the answer", ProcessedEntries: 1},
	}
	bot := newTestBot(t, api, proc, nil)

	bot.handleMessage(message(42, 42, "what is due today?"))

	if len(proc.prompts) != 1 || proc.prompts[0] != "what is due today?" {
		t.Errorf("prompts = %v", proc.prompts)
	}
	texts := api.texts("sendMessage")
	if len(texts) != 1 || texts[0] != "the answer" {
		t.Errorf("replies = %v", texts)
	}
}

func TestNotify_PrimaryUser(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api, &fakeBotProcessor{name: "claude-cli"}, nil)

	if err := bot.Notify(context.Background(), "<b>ping</b>"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.calls) != 1 {
		t.Fatalf("calls = %d", len(api.calls))
	}
	if got := api.calls[0].body["chat_id"].(float64); got != 42 {
		t.Errorf("chat_id = %v", got)
	}
}
