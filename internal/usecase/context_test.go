package usecase

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dbrain-dev/dbrain/internal/session"
)

func TestSessionContext_TruncatesOnRuneBoundary(t *testing.T) {
	store, err := session.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	long := strings.Repeat("ё", 120)
	if err := store.Append(context.Background(), 42, "prompt", long); err != nil {
		t.Fatal(err)
	}

	loader := NewContextLoader(t.TempDir(), store)
	got := loader.SessionContext(context.Background(), 42)
	if got == "" {
		t.Fatal("expected session context")
	}
	if !utf8.ValidString(got) {
		t.Errorf("context contains a split rune: %q", got)
	}
	if strings.Contains(got, long) {
		t.Error("entry text was not truncated")
	}
	if !strings.Contains(got, strings.Repeat("ё", 80)) {
		t.Errorf("context = %q", got)
	}
}
