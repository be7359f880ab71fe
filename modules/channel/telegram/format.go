package telegram

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/dbrain-dev/dbrain/internal/provider"
)

// formatReport renders an envelope as chat HTML. Errors and tool
// failures are surfaced verbatim; the model is instructed to report
// exact tool errors, so the formatter never hides them either.
func formatReport(env provider.Envelope) string {
	if env.Failed() {
		return "❌ <b>Ошибка</b>\n<code>" + html.EscapeString(env.Error) + "</code>"
	}

	report := env.Report
	if report == "" {
		report = "✅ Готово"
	}
	if len(env.ToolFailures) == 0 {
		return report
	}

	var b strings.Builder
	b.WriteString(report)
	b.WriteString("\n\n⚠️ <b>Tool errors:</b>")
	for _, f := range env.ToolFailures {
		b.WriteString("\n<code>")
		b.WriteString(html.EscapeString(f.Capability))
		if f.Error != nil {
			b.WriteString(": " + html.EscapeString(f.Error.Code))
		}
		b.WriteString("</code>")
	}
	return b.String()
}

// splitMessage cuts text into chunks of at most limit bytes, preferring
// newline boundaries. Telegram rejects messages above 4096 characters.
func splitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
