package provider

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dbrain-dev/dbrain/internal/capability"
)

func TestSelector_DefaultAndOverride(t *testing.T) {
	t.Parallel()

	s := NewSelector(NameClaudeCLI)
	if got := s.Active(); got != NameClaudeCLI {
		t.Errorf("active = %q", got)
	}

	label, err := s.Set(NameCodexCLI)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if label != "🤖 GPT (CLI)" {
		t.Errorf("label = %q", label)
	}
	if got := s.Active(); got != NameCodexCLI {
		t.Errorf("active = %q", got)
	}

	s.Reset()
	if got := s.Active(); got != NameClaudeCLI {
		t.Errorf("active after reset = %q", got)
	}
}

func TestSelector_InvalidName(t *testing.T) {
	t.Parallel()

	s := NewSelector(NameClaudeCLI)
	_, err := s.Set("gpt-5-cli")
	if err == nil {
		t.Fatal("expected error")
	}
	// The message lists the valid names so the chat reply is actionable.
	for _, name := range []string{NameClaudeCLI, NameCodexCLI, NameOpenAIAPI} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q missing %q", err, name)
		}
	}
	if got := s.Active(); got != NameClaudeCLI {
		t.Errorf("active changed on invalid set: %q", got)
	}
}

func TestSelector_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := NewSelector(NameClaudeCLI)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Set(NameOpenAIAPI)
		}()
		go func() {
			defer wg.Done()
			_ = s.Active()
		}()
	}
	wg.Wait()
}

func TestLabel_UnknownFallsBack(t *testing.T) {
	t.Parallel()

	if got := Label("mystery"); got != "mystery" {
		t.Errorf("label = %q", got)
	}
}

func TestEnvelope_Invariant(t *testing.T) {
	t.Parallel()

	failed := Envelope{Error: "boom"}
	if !failed.Failed() || failed.Report != "" || failed.ProcessedEntries != 0 {
		t.Errorf("failed envelope = %+v", failed)
	}

	ok := Envelope{Report: "done", ProcessedEntries: 1}
	if ok.Failed() {
		t.Error("success envelope reports failure")
	}
}

func TestEnvelope_ToLegacy(t *testing.T) {
	t.Parallel()

	failed := Envelope{Error: "boom", Provider: NameClaudeCLI}
	legacy := failed.ToLegacy()
	if legacy["error"] != "boom" || legacy["processed_entries"] != 0 {
		t.Errorf("legacy = %v", legacy)
	}
	if _, hasReport := legacy["report"]; hasReport {
		t.Error("failed envelope must not carry a report")
	}

	ok := Envelope{
		Report:           "report",
		ProcessedEntries: 1,
		ToolFailures: []ToolFailure{
			{Capability: "todoist.add_tasks", Error: capability.Errorf("todoist_api_error", "500", true)},
		},
	}
	legacy = ok.ToLegacy()
	if legacy["report"] != "report" {
		t.Errorf("legacy = %v", legacy)
	}
	failures, _ := legacy["tool_failures"].([]map[string]any)
	if len(failures) != 1 || failures[0]["capability"] != "todoist.add_tasks" {
		t.Errorf("failures = %v", failures)
	}
}

func TestToolFailuresFromMeta(t *testing.T) {
	t.Parallel()

	if got := ToolFailuresFromMeta(nil); got != nil {
		t.Errorf("nil meta = %v", got)
	}
	if got := ToolFailuresFromMeta(map[string]any{"other": 1}); got != nil {
		t.Errorf("missing key = %v", got)
	}

	want := []ToolFailure{{Capability: "vault.read_file"}}
	got := ToolFailuresFromMeta(map[string]any{MetaToolFailures: want})
	if len(got) != 1 || got[0].Capability != "vault.read_file" {
		t.Errorf("got %v", got)
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := WrapError(NameOpenAIAPI, "request failed", cause)
	if !errors.Is(err, cause) {
		t.Error("cause not unwrapped")
	}
	if got := err.Error(); got != "openai-api: request failed" {
		t.Errorf("message = %q", got)
	}
}
