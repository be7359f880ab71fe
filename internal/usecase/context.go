package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dbrain-dev/dbrain/internal/session"
)

const sessionContextLimit = 10

// ContextLoader assembles prompt context from vault files and the
// session store. A nil store disables session enrichment.
type ContextLoader struct {
	vaultPath string
	sessions  *session.Store
}

// NewContextLoader builds a loader rooted at the vault.
func NewContextLoader(vaultPath string, sessions *session.Store) *ContextLoader {
	return &ContextLoader{vaultPath: vaultPath, sessions: sessions}
}

// SkillContent returns the processing skill instructions, or "" when the
// vault has none.
func (l *ContextLoader) SkillContent() string {
	return l.readOptional(".claude/skills/dbrain-processor/SKILL.md")
}

// TodoistReference returns the Todoist reference document, or "".
func (l *ContextLoader) TodoistReference() string {
	return l.readOptional(".claude/skills/dbrain-processor/references/todoist.md")
}

func (l *ContextLoader) readOptional(rel string) string {
	raw, err := os.ReadFile(filepath.Join(l.vaultPath, filepath.FromSlash(rel)))
	if err != nil {
		return ""
	}
	return string(raw)
}

// SessionContext renders the user's last interactions of the day as a
// prompt block. Empty for anonymous callers (userID zero), missing
// stores, and days without history.
func (l *ContextLoader) SessionContext(ctx context.Context, userID int64) string {
	if userID == 0 || l.sessions == nil {
		return ""
	}
	entries, err := l.sessions.Today(ctx, userID)
	if err != nil || len(entries) == 0 {
		return ""
	}
	if len(entries) > sessionContextLimit {
		entries = entries[len(entries)-sessionContextLimit:]
	}

	var b strings.Builder
	b.WriteString("=== TODAY'S SESSION ===\n")
	for _, e := range entries {
		text := truncateRunes(e.Text, 80)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s [%s] %s\n", e.Time.Local().Format("15:04"), e.Kind, text)
	}
	b.WriteString("=== END SESSION ===\n")
	return b.String()
}

// truncateRunes shortens text to at most max runes, never splitting a
// multibyte sequence.
func truncateRunes(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max])
}
