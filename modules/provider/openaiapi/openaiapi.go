// Package openaiapi implements the HTTP chat-completions provider with
// native tool calling. Registered capabilities are advertised to the
// model as functions; the provider runs a bounded request/tool loop
// until the model produces a plain answer.
package openaiapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dbrain-dev/dbrain/internal/capability"
	"github.com/dbrain-dev/dbrain/internal/provider"
	"github.com/dbrain-dev/dbrain/internal/runtime"
)

// Provider talks to an OpenAI-compatible chat completions endpoint.
type Provider struct {
	cfg      Config
	registry capability.Registry
	runtime  runtime.Runtime
	http     *http.Client
	logger   *slog.Logger

	tools    []chatTool
	capNames map[string]string // tool name -> capability name
}

// Interface guard.
var _ provider.Provider = (*Provider)(nil)

// New builds the provider. The registry drives the advertised tool set;
// rt executes the calls the model makes.
func New(cfg Config, registry capability.Registry, rt runtime.Runtime, logger *slog.Logger) *Provider {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		cfg:      cfg,
		registry: registry,
		runtime:  rt,
		http:     &http.Client{},
		logger:   logger.With("component", "provider.openai-api"),
		capNames: make(map[string]string),
	}
	for _, name := range registry.Names() {
		spec, _ := registry.Get(name)
		toolName := strings.ReplaceAll(name, ".", "_")
		p.capNames[toolName] = name
		p.tools = append(p.tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        toolName,
				Description: spec.Description,
				Parameters:  spec.InputSchema,
			},
		})
	}
	return p
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return provider.NameOpenAIAPI }

// Execute runs the prompt through the tool-calling loop. Tool failures
// never abort the loop; they are fed back to the model and recorded in
// the result metadata. Transport and API failures abort with an error.
func (p *Provider) Execute(ctx context.Context, prompt string, timeout time.Duration) (provider.ExecutionResult, error) {
	if p.cfg.APIKey == "" {
		return provider.ExecutionResult{}, provider.NewError(provider.NameOpenAIAPI, "API key not configured")
	}
	if p.cfg.Model == "" {
		return provider.ExecutionResult{}, provider.NewError(provider.NameOpenAIAPI, "model not configured")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	messages := []chatMessage{{Role: "user", Content: prompt}}
	var failures []provider.ToolFailure

	for i := 0; i < p.cfg.MaxToolIterations; i++ {
		req := chatRequest{
			Model:       p.cfg.Model,
			Messages:    messages,
			Temperature: 0,
		}
		if len(p.tools) > 0 {
			req.Tools = p.tools
			req.ToolChoice = "auto"
		}

		resp, err := p.completions(ctx, req)
		if err != nil {
			return provider.ExecutionResult{}, err
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return p.finish(resp, msg, failures), nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			content, failure := p.invokeTool(ctx, call)
			if failure != nil {
				failures = append(failures, *failure)
			}
			messages = append(messages, chatMessage{
				Role:       "tool",
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	return provider.ExecutionResult{}, provider.Errorf(provider.NameOpenAIAPI,
		"tool loop exceeded %d iterations without a final answer", p.cfg.MaxToolIterations)
}

// invokeTool executes one tool call and renders the JSON body fed back
// to the model. A non-nil failure is returned for any unsuccessful
// invocation, including calls that never reach the runtime.
func (p *Provider) invokeTool(ctx context.Context, call chatToolCall) (string, *provider.ToolFailure) {
	toolName := call.Function.Name

	capName, ok := p.capNames[toolName]
	if !ok || p.runtime == nil {
		capErr := capability.Errorf(capability.CodeUnsupportedCapability,
			"no capability registered for tool "+toolName, false)
		return renderToolResponse(capability.Fail(toolName, capErr)),
			&provider.ToolFailure{Capability: toolName, Error: capErr}
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			capErr := capability.Errorf(capability.CodeInvalidToolArguments,
				"tool arguments are not valid JSON", false)
			return renderToolResponse(capability.Fail(capName, capErr)),
				&provider.ToolFailure{Capability: capName, Error: capErr}
		}
	}

	result := p.runtime.Execute(ctx, capName, args)
	if !result.OK {
		p.logger.Warn("tool call failed",
			"capability", capName,
			"code", result.Error.Code)
		return renderToolResponse(result), &provider.ToolFailure{Capability: capName, Error: result.Error}
	}
	return renderToolResponse(result), nil
}

func (p *Provider) finish(resp *chatResponse, msg chatMessage, failures []provider.ToolFailure) provider.ExecutionResult {
	model := resp.Model
	if model == "" {
		model = p.cfg.Model
	}
	meta := map[string]any{
		provider.MetaModel:      model,
		provider.MetaResponseID: resp.ID,
	}
	if resp.Usage != nil {
		meta[provider.MetaUsage] = map[string]any{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		}
	}
	if len(failures) > 0 {
		meta[provider.MetaToolFailures] = failures
	}
	return provider.ExecutionResult{
		Stdout:     msg.Content,
		ReturnCode: 0,
		Provider:   provider.NameOpenAIAPI,
		Meta:       meta,
	}
}

// renderToolResponse serializes a capability result into the tool-role
// message body.
func renderToolResponse(result capability.Result) string {
	body := toolResponse{OK: result.OK, Data: result.Data}
	if body.Data == nil {
		body.Data = map[string]any{}
	}
	if result.Error != nil {
		body.Error = &toolResponseErr{
			Code:      result.Error.Code,
			Message:   result.Error.Message,
			Retryable: result.Error.Retryable,
			Details:   result.Error.Details,
		}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return `{"ok":false,"data":{},"error":{"code":"runtime_error","message":"failed to encode tool result","retryable":false}}`
	}
	return string(raw)
}
