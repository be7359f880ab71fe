package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dbrain-dev/dbrain/internal/provider"
)

// WeeklyDigestUseCase generates the weekly digest and archives it into
// the vault: summaries/YYYY-WXX-summary.md plus a link in the weekly MOC.
type WeeklyDigestUseCase struct {
	vaultPath string
	provider  provider.Provider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewWeekly builds the weekly-digest use case.
func NewWeekly(vaultPath string, p provider.Provider, timeout time.Duration, logger *slog.Logger) *WeeklyDigestUseCase {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WeeklyDigestUseCase{
		vaultPath: vaultPath,
		provider:  p,
		timeout:   timeout,
		logger:    logger.With("component", "usecase.weekly"),
	}
}

// Run generates the digest for the current ISO week. Archiving failures
// are logged but never fail the digest itself.
func (u *WeeklyDigestUseCase) Run(ctx context.Context) provider.Envelope {
	return traced(ctx, "usecase.weekly", u.provider.Name(), func(ctx context.Context) provider.Envelope {
		return u.run(ctx)
	})
}

func (u *WeeklyDigestUseCase) run(ctx context.Context) provider.Envelope {
	started := time.Now()
	today := time.Now()

	prompt := fmt.Sprintf(`Сегодня %s. Сгенерируй недельный дайджест.

%s

WORKFLOW:
1. Собери данные за неделю (daily файлы в vault/daily/, completed tasks через доступные tools)
2. Проанализируй прогресс по целям (goals/3-weekly.md)
3. Определи победы и вызовы
4. Сгенерируй HTML отчёт

CRITICAL OUTPUT FORMAT:
- Return ONLY raw HTML for Telegram (parse_mode=HTML)
- NO markdown: no **, no ##, no `+"```"+`, no tables
- Start with 📅 <b>Недельный дайджест</b>
- Allowed tags: <b>, <i>, <code>, <s>, <u>
- Be concise - Telegram has 4096 char limit`,
		today.Format("2006-01-02"),
		toolInstructions(u.provider.Name(), weeklyTaskHint(u.provider.Name())),
	)

	result, err := u.provider.Execute(ctx, prompt, u.timeout)
	if err != nil {
		u.logger.Error("weekly digest execution error", "error", err)
		return failEnvelope(u.provider.Name(), err.Error(), started)
	}
	if result.ReturnCode != 0 {
		u.logger.Error("weekly digest failed", "stderr", result.Stderr)
		return wrap(result, "Weekly digest failed", started)
	}

	output := strings.TrimSpace(result.Stdout)
	if summaryPath, err := u.saveSummary(output, today); err != nil {
		u.logger.Warn("failed to save weekly summary", "error", err)
	} else if err := u.updateMOC(summaryPath); err != nil {
		u.logger.Warn("failed to update weekly MOC", "error", err)
	}

	return wrap(result, "Weekly digest failed", started)
}

var (
	boldRe   = regexp.MustCompile(`(?s)<b>(.*?)</b>`)
	italicRe = regexp.MustCompile(`(?s)<i>(.*?)</i>`)
	codeRe   = regexp.MustCompile(`(?s)<code>(.*?)</code>`)
	strikeRe = regexp.MustCompile(`(?s)<s>(.*?)</s>`)
	underRe  = regexp.MustCompile(`</?u>`)
	linkRe   = regexp.MustCompile(`<a href="([^"]+)">([^<]+)</a>`)
)

// htmlToMarkdown converts chat HTML into Obsidian-flavored markdown.
func htmlToMarkdown(value string) string {
	text := boldRe.ReplaceAllString(value, "**$1**")
	text = italicRe.ReplaceAllString(text, "*$1*")
	text = codeRe.ReplaceAllString(text, "`$1`")
	text = strikeRe.ReplaceAllString(text, "~~$1~~")
	text = underRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "[$2]($1)")
	return text
}

// saveSummary writes the digest to summaries/YYYY-WXX-summary.md with
// frontmatter and returns the file path.
func (u *WeeklyDigestUseCase) saveSummary(reportHTML string, weekDate time.Time) (string, error) {
	year, week := weekDate.ISOWeek()
	filename := fmt.Sprintf("%d-W%02d-summary.md", year, week)
	summaryPath := filepath.Join(u.vaultPath, "summaries", filename)

	frontmatter := fmt.Sprintf(`---
date: %s
type: weekly-summary
week: %d-W%02d
---

`, weekDate.Format("2006-01-02"), year, week)

	if err := os.MkdirAll(filepath.Dir(summaryPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(summaryPath, []byte(frontmatter+htmlToMarkdown(reportHTML)), 0o644); err != nil {
		return "", err
	}
	u.logger.Info("weekly summary saved", "path", summaryPath)
	return summaryPath, nil
}

// updateMOC appends a summary link to MOC/MOC-weekly.md. A missing MOC
// or an existing link is a no-op.
func (u *WeeklyDigestUseCase) updateMOC(summaryPath string) error {
	mocPath := filepath.Join(u.vaultPath, "MOC", "MOC-weekly.md")
	raw, err := os.ReadFile(mocPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	name := filepath.Base(summaryPath)
	stem := strings.TrimSuffix(name, ".md")
	content := string(raw)
	if strings.Contains(content, stem) {
		return nil
	}

	link := fmt.Sprintf("- [[summaries/%s|%s]]", name, stem)
	const marker = "## Previous Weeks\n"
	if strings.Contains(content, marker) {
		content = strings.Replace(content, marker, marker+"\n"+link+"\n", 1)
	} else {
		content = strings.TrimRight(content, "\n") + "\n\n" + link + "\n"
	}
	if err := os.WriteFile(mocPath, []byte(content), 0o644); err != nil {
		return err
	}
	u.logger.Info("weekly MOC updated", "entry", stem)
	return nil
}
