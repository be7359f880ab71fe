package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dbrain-dev/dbrain/internal/capability"
	"github.com/dbrain-dev/dbrain/internal/provider"
)

func TestFormatReport_Error(t *testing.T) {
	t.Parallel()

	got := formatReport(provider.Envelope{Error: "claude exited with code 1: <oops>"})
	if !strings.HasPrefix(got, "❌ <b>Ошибка</b>") {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(got, "&lt;oops&gt;") {
		t.Errorf("error text not escaped: %q", got)
	}
}

func TestFormatReport_Success(t *testing.T) {
	t.Parallel()

	if got := formatReport(provider.Envelope{Report: "done"}); got != "done" {
		t.Errorf("got %q", got)
	}
	if got := formatReport(provider.Envelope{}); got != "✅ Готово" {
		t.Errorf("empty report got %q", got)
	}
}

func TestFormatReport_ToolFailures(t *testing.T) {
	t.Parallel()

	got := formatReport(provider.Envelope{
		Report: "partial",
		ToolFailures: []provider.ToolFailure{
			{Capability: "todoist.add_tasks", Error: &capability.Error{Code: "upstream_error"}},
		},
	})
	if !strings.Contains(got, "⚠️ <b>Tool errors:</b>") {
		t.Errorf("missing tool errors header: %q", got)
	}
	if !strings.Contains(got, "todoist.add_tasks: upstream_error") {
		t.Errorf("missing failure line: %q", got)
	}
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	if got := splitMessage("short", 100); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text got %v", got)
	}

	// Prefers the newline boundary over a hard cut.
	text := strings.Repeat("a", 50) + "\n" + strings.Repeat("b", 50)
	got := splitMessage(text, 60)
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2", len(got))
	}
	if got[0] != strings.Repeat("a", 50) {
		t.Errorf("first chunk = %q", got[0])
	}
	if got[1] != strings.Repeat("b", 50) {
		t.Errorf("second chunk = %q", got[1])
	}

	// Lines longer than the limit are split hard.
	got = splitMessage(strings.Repeat("x", 130), 50)
	if len(got) != 3 {
		t.Fatalf("chunks = %d, want 3", len(got))
	}
	for i, chunk := range got {
		if len(chunk) > 50 {
			t.Errorf("chunk %d length = %d", i, len(chunk))
		}
	}
}

func TestSplitMessage_RuneBoundary(t *testing.T) {
	t.Parallel()

	// Cyrillic runes are 2 bytes; an odd byte limit lands mid-rune.
	text := strings.Repeat("ы", 40)
	got := splitMessage(text, 25)
	var rejoined strings.Builder
	for i, chunk := range got {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d split a rune: %q", i, chunk)
		}
		if len(chunk) > 25 {
			t.Errorf("chunk %d length = %d", i, len(chunk))
		}
		rejoined.WriteString(chunk)
	}
	if rejoined.String() != text {
		t.Errorf("rejoined = %q", rejoined.String())
	}
}
