// Package usecase holds the high-level orchestration built on top of the
// execution providers: daily processing, weekly digest, and freeform
// prompt execution. Every entry point returns a provider.Envelope; raw
// provider results and errors never leak past this package.
package usecase

import (
	"context"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dbrain-dev/dbrain/internal/provider"
	"github.com/dbrain-dev/dbrain/internal/telemetry"
)

// DefaultTimeout bounds one provider execution.
const DefaultTimeout = 20 * time.Minute

// traced runs fn under a span and marks the span failed when the envelope
// carries an error. With tracing disabled the spans are no-ops.
func traced(ctx context.Context, name, providerName string, fn func(context.Context) provider.Envelope) provider.Envelope {
	ctx, span := telemetry.Tracer().Start(ctx, name,
		trace.WithAttributes(attribute.String("llm.provider", providerName)))
	defer span.End()

	env := fn(ctx)
	if env.Failed() {
		span.SetStatus(codes.Error, env.Error)
	}
	return env
}

func totalTimings(started time.Time) map[string]float64 {
	sec := time.Since(started).Seconds()
	return map[string]float64{"total_seconds": math.Round(sec*1000) / 1000}
}

// failEnvelope builds the error form: no report, zero processed entries.
func failEnvelope(providerName, message string, started time.Time) provider.Envelope {
	return provider.Envelope{
		Error:    message,
		Provider: providerName,
		Timings:  totalTimings(started),
	}
}

// wrap folds a raw execution result into an envelope. Non-zero return
// codes are failures; stderr becomes the error message when present.
func wrap(result provider.ExecutionResult, fallback string, started time.Time) provider.Envelope {
	meta := map[string]any{"returncode": result.ReturnCode}
	for k, v := range result.Meta {
		meta[k] = v
	}

	if result.ReturnCode != 0 {
		message := result.Stderr
		if message == "" {
			message = fallback
		}
		return provider.Envelope{
			Error:    message,
			Provider: result.Provider,
			Meta:     meta,
			Timings:  totalTimings(started),
		}
	}

	return provider.Envelope{
		Report:           strings.TrimSpace(result.Stdout),
		ProcessedEntries: 1,
		Provider:         result.Provider,
		ToolFailures:     provider.ToolFailuresFromMeta(result.Meta),
		Meta:             meta,
		Timings:          totalTimings(started),
	}
}

// apiToolNames is the flat tool list advertised by the HTTP API provider.
const apiToolNames = "todoist_user_info, todoist_add_tasks, todoist_find_completed_tasks, vault_read_file, vault_write_file, vault_list_files"

// toolInstructions renders the tool-usage preamble for a prompt. The CLI
// providers reach tools through their MCP server; the API provider calls
// them natively, so the instructions name different tool identifiers.
func toolInstructions(providerName, taskHint string) string {
	var b strings.Builder
	if providerName == provider.NameOpenAIAPI {
		b.WriteString("ПЕРВЫМ ДЕЛОМ: вызови todoist_user_info чтобы проверить доступ к инструментам.\n\n")
		b.WriteString("CRITICAL TOOL RULE:\n")
		b.WriteString("- Ты имеешь доступ к tools: " + apiToolNames + ".\n")
		b.WriteString("- ВЫЗЫВАЙ tools напрямую.\n")
		b.WriteString("- НИКОГДА не пиши \"MCP недоступен\" или \"добавь вручную\".\n")
		if taskHint != "" {
			b.WriteString(taskHint + "\n")
		}
		b.WriteString("- Если tool вернул ошибку — покажи ТОЧНУЮ ошибку в отчёте.")
		return b.String()
	}

	b.WriteString("ПЕРВЫМ ДЕЛОМ: вызови mcp__todoist__user-info чтобы убедиться что MCP работает.\n\n")
	b.WriteString("CRITICAL MCP RULE:\n")
	b.WriteString("- ТЫ ИМЕЕШЬ ДОСТУП к mcp__todoist__* tools — ВЫЗЫВАЙ ИХ НАПРЯМУЮ.\n")
	b.WriteString("- НИКОГДА не пиши \"MCP недоступен\" или \"добавь вручную\".\n")
	if taskHint != "" {
		b.WriteString(taskHint + "\n")
	}
	b.WriteString("- Если tool вернул ошибку — покажи ТОЧНУЮ ошибку в отчёте.")
	return b.String()
}

func dailyTaskHint(providerName string) string {
	if providerName == provider.NameOpenAIAPI {
		return "- Для задач: вызови todoist_add_tasks."
	}
	return "- Для задач: вызови mcp__todoist__add-tasks tool."
}

func weeklyTaskHint(providerName string) string {
	if providerName == provider.NameOpenAIAPI {
		return "- Для выполненных задач: вызови todoist_find_completed_tasks."
	}
	return "- Для выполненных задач: вызови mcp__todoist__find-completed-tasks tool."
}
