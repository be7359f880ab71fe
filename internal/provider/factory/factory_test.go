package factory

import (
	"strings"
	"testing"

	"github.com/dbrain-dev/dbrain/internal/capability"
	"github.com/dbrain-dev/dbrain/internal/provider"
	"github.com/dbrain-dev/dbrain/modules/provider/openaiapi"
)

func TestNew_UnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := New("gemini-cli", Settings{})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "gemini-cli") {
		t.Errorf("error = %v, want provider name included", err)
	}
}

func TestNew_OpenAIRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := New(provider.NameOpenAIAPI, Settings{
		OpenAI: openaiapi.Config{Model: "gpt-4o"},
	})
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Fatalf("error = %v, want missing API key", err)
	}

	_, err = New(provider.NameOpenAIAPI, Settings{
		OpenAI: openaiapi.Config{APIKey: "k"},
	})
	if err == nil || !strings.Contains(err.Error(), "model") {
		t.Fatalf("error = %v, want missing model", err)
	}
}

func TestNew_OpenAIValid(t *testing.T) {
	t.Parallel()

	p, err := New(provider.NameOpenAIAPI, Settings{
		OpenAI:   openaiapi.Config{APIKey: "k", Model: "gpt-4o"},
		Registry: capability.Build(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != provider.NameOpenAIAPI {
		t.Errorf("name = %q", p.Name())
	}
}

func TestNew_CLIMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	if _, err := New(provider.NameClaudeCLI, Settings{}); err == nil {
		t.Error("expected error when claude is not on PATH")
	}
	if _, err := New(provider.NameCodexCLI, Settings{}); err == nil {
		t.Error("expected error when codex is not on PATH")
	}
}
