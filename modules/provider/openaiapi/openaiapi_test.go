package openaiapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dbrain-dev/dbrain/internal/capability"
	"github.com/dbrain-dev/dbrain/internal/provider"
)

type fakeRuntime struct {
	calls   []string
	results map[string]capability.Result
}

func (f *fakeRuntime) Execute(_ context.Context, name string, _ map[string]any) capability.Result {
	f.calls = append(f.calls, name)
	if r, ok := f.results[name]; ok {
		return r
	}
	return capability.Succeed(name, map[string]any{})
}

// scriptedServer replies with the queued response bodies in order and
// records each decoded request.
func scriptedServer(t *testing.T, bodies []string) (*httptest.Server, *[]chatRequest) {
	t.Helper()
	var requests []chatRequest
	i := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		requests = append(requests, req)
		if i >= len(bodies) {
			t.Errorf("unexpected request %d", i)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(bodies[i]))
		i++
	}))
	return srv, &requests
}

func newTestProvider(t *testing.T, baseURL string, rt *fakeRuntime) *Provider {
	t.Helper()
	return New(Config{
		APIKey:  "test-key",
		Model:   "gpt-4o",
		BaseURL: baseURL,
	}, capability.Build(), rt, nil)
}

func answerBody(content string) string {
	return `{"id":"resp-1","model":"gpt-4o","choices":[{"message":{"role":"assistant","content":` +
		mustJSON(content) + `},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`
}

func toolCallBody(callID, toolName, args string) string {
	return `{"id":"resp-tc","model":"gpt-4o","choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"` +
		callID + `","type":"function","function":{"name":"` + toolName + `","arguments":` + mustJSON(args) + `}}]},"finish_reason":"tool_calls"}]}`
}

func mustJSON(s string) string {
	raw, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

func TestExecute_PlainAnswer(t *testing.T) {
	t.Parallel()

	srv, requests := scriptedServer(t, []string{answerBody("all done")})
	defer srv.Close()

	p := newTestProvider(t, srv.URL, &fakeRuntime{})
	res, err := p.Execute(context.Background(), "hello", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "all done" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "all done")
	}
	if res.ReturnCode != 0 {
		t.Errorf("return code = %d, want 0", res.ReturnCode)
	}
	if res.Provider != provider.NameOpenAIAPI {
		t.Errorf("provider = %q", res.Provider)
	}
	if res.Meta[provider.MetaModel] != "gpt-4o" {
		t.Errorf("meta model = %v", res.Meta[provider.MetaModel])
	}
	if res.Meta[provider.MetaResponseID] != "resp-1" {
		t.Errorf("meta id = %v", res.Meta[provider.MetaResponseID])
	}
	if _, ok := res.Meta[provider.MetaToolFailures]; ok {
		t.Error("tool_failures present for clean run")
	}

	req := (*requests)[0]
	if req.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", req.Temperature)
	}
	if req.ToolChoice != "auto" {
		t.Errorf("tool_choice = %q, want auto", req.ToolChoice)
	}
	if len(req.Tools) != 6 {
		t.Errorf("advertised %d tools, want 6", len(req.Tools))
	}
	for _, tool := range req.Tools {
		if strings.Contains(tool.Function.Name, ".") {
			t.Errorf("tool name %q contains a dot", tool.Function.Name)
		}
	}
}

func TestExecute_SequentialToolCalls(t *testing.T) {
	t.Parallel()

	srv, requests := scriptedServer(t, []string{
		toolCallBody("call-1", "vault_read_file", `{"path":"daily/2026-01-05.md"}`),
		toolCallBody("call-2", "todoist_add_tasks", `{"tasks":[{"content":"ship it"}]}`),
		answerBody("report ready"),
	})
	defer srv.Close()

	rt := &fakeRuntime{results: map[string]capability.Result{
		capability.VaultReadFile: capability.Succeed(capability.VaultReadFile, map[string]any{
			"path": "daily/2026-01-05.md", "exists": true, "content": "- [ ] ship it",
		}),
	}}
	p := newTestProvider(t, srv.URL, rt)

	res, err := p.Execute(context.Background(), "process today", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "report ready" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	want := []string{capability.VaultReadFile, capability.TodoistAddTasks}
	if len(rt.calls) != len(want) {
		t.Fatalf("runtime calls = %v, want %v", rt.calls, want)
	}
	for i, name := range want {
		if rt.calls[i] != name {
			t.Errorf("call %d = %q, want %q", i, rt.calls[i], name)
		}
	}

	// The second request must carry the assistant tool-call echo and a
	// tool message tied to the first call ID.
	second := (*requests)[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != "tool" || last.ToolCallID != "call-1" {
		t.Fatalf("last message = %+v, want tool reply for call-1", last)
	}
	var body toolResponse
	if err := json.Unmarshal([]byte(last.Content), &body); err != nil {
		t.Fatalf("tool reply is not JSON: %v", err)
	}
	if !body.OK || body.Error != nil {
		t.Errorf("tool reply = %+v, want ok", body)
	}
	if body.Data["content"] != "- [ ] ship it" {
		t.Errorf("tool reply data = %v", body.Data)
	}
}

func TestExecute_MalformedArguments(t *testing.T) {
	t.Parallel()

	srv, requests := scriptedServer(t, []string{
		toolCallBody("call-1", "vault_read_file", `{not json`),
		answerBody("recovered"),
	})
	defer srv.Close()

	rt := &fakeRuntime{}
	p := newTestProvider(t, srv.URL, rt)

	res, err := p.Execute(context.Background(), "go", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rt.calls) != 0 {
		t.Errorf("runtime was called for malformed arguments: %v", rt.calls)
	}

	failures := provider.ToolFailuresFromMeta(res.Meta)
	if len(failures) != 1 {
		t.Fatalf("failures = %v, want one", failures)
	}
	if failures[0].Capability != capability.VaultReadFile {
		t.Errorf("failure capability = %q", failures[0].Capability)
	}
	if failures[0].Error.Code != capability.CodeInvalidToolArguments {
		t.Errorf("failure code = %q", failures[0].Error.Code)
	}

	second := (*requests)[1]
	last := second.Messages[len(second.Messages)-1]
	var body toolResponse
	if err := json.Unmarshal([]byte(last.Content), &body); err != nil {
		t.Fatalf("tool reply is not JSON: %v", err)
	}
	if body.OK || body.Error == nil || body.Error.Code != capability.CodeInvalidToolArguments {
		t.Errorf("tool reply = %+v", body)
	}
}

func TestExecute_UnknownToolName(t *testing.T) {
	t.Parallel()

	srv, _ := scriptedServer(t, []string{
		toolCallBody("call-1", "launch_rockets", `{}`),
		answerBody("nevermind"),
	})
	defer srv.Close()

	rt := &fakeRuntime{}
	p := newTestProvider(t, srv.URL, rt)

	res, err := p.Execute(context.Background(), "go", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rt.calls) != 0 {
		t.Errorf("runtime was called for unknown tool: %v", rt.calls)
	}
	failures := provider.ToolFailuresFromMeta(res.Meta)
	if len(failures) != 1 || failures[0].Error.Code != capability.CodeUnsupportedCapability {
		t.Fatalf("failures = %v, want one unsupported_capability", failures)
	}
}

func TestExecute_ToolLoopCap(t *testing.T) {
	t.Parallel()

	bodies := make([]string, DefaultMaxToolIterations)
	for i := range bodies {
		bodies[i] = toolCallBody("call", "vault_list_files", `{}`)
	}
	srv, _ := scriptedServer(t, bodies)
	defer srv.Close()

	p := newTestProvider(t, srv.URL, &fakeRuntime{})
	_, err := p.Execute(context.Background(), "loop forever", time.Minute)
	if err == nil {
		t.Fatal("expected error after iteration cap")
	}
	var provErr *provider.Error
	if !errors.As(err, &provErr) {
		t.Fatalf("error type = %T", err)
	}
	if !strings.Contains(provErr.Message, "iterations") {
		t.Errorf("error message = %q", provErr.Message)
	}
}

func TestExecute_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, &fakeRuntime{})
	_, err := p.Execute(context.Background(), "go", time.Minute)
	if err == nil {
		t.Fatal("expected error for HTTP 429")
	}
	if !strings.Contains(err.Error(), "API error 429") {
		t.Errorf("error = %v", err)
	}
}

func TestExecute_InvalidResponseJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, &fakeRuntime{})
	_, err := p.Execute(context.Background(), "go", time.Minute)
	if err == nil || !strings.Contains(err.Error(), "not valid JSON") {
		t.Fatalf("error = %v", err)
	}
}

func TestExecute_MissingChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"id":"resp-1","choices":[]}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, &fakeRuntime{})
	_, err := p.Execute(context.Background(), "go", time.Minute)
	if err == nil || !strings.Contains(err.Error(), "missing message") {
		t.Fatalf("error = %v", err)
	}
}

func TestExecute_MissingConfig(t *testing.T) {
	t.Parallel()

	p := New(Config{Model: "gpt-4o"}, capability.Build(), &fakeRuntime{}, nil)
	if _, err := p.Execute(context.Background(), "go", time.Minute); err == nil {
		t.Fatal("expected error for missing API key")
	}

	p = New(Config{APIKey: "k"}, capability.Build(), &fakeRuntime{}, nil)
	if _, err := p.Execute(context.Background(), "go", time.Minute); err == nil {
		t.Fatal("expected error for missing model")
	}
}
