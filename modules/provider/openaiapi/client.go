package openaiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dbrain-dev/dbrain/internal/provider"
)

const maxResponseSize = 10 << 20 // 10 MiB

const maxErrorBody = 500

// completions performs one chat completions call. All failures are
// returned as *provider.Error so callers can surface them uniformly.
func (p *Provider) completions(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, provider.WrapError(provider.NameOpenAIAPI, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, provider.WrapError(provider.NameOpenAIAPI, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, provider.NewError(provider.NameOpenAIAPI, "request timed out")
		}
		return nil, provider.WrapError(provider.NameOpenAIAPI, "transport error", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, provider.WrapError(provider.NameOpenAIAPI, "read response", err)
	}

	if resp.StatusCode >= 400 {
		excerpt := raw
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, provider.Errorf(provider.NameOpenAIAPI, "API error %d: %s", resp.StatusCode, excerpt)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, provider.NewError(provider.NameOpenAIAPI, "response is not valid JSON")
	}
	if len(out.Choices) == 0 {
		return nil, provider.NewError(provider.NameOpenAIAPI, "response missing message payload")
	}
	return &out, nil
}
