// Package llmclient declares the LLMClient capability spec §6 names as an
// external dependency ("an opaque capability... DELIBERATELY OUT OF
// SCOPE") and a deterministic fake implementation the engine's tests drive
// against. Mirrors the shape of the teacher's internal/core.LLMClient
// interface (Complete/CompleteWithSystem), narrowed to the single call
// shape the agents need: a system prompt, a user prompt, and a flag asking
// for (but not guaranteeing) a JSON-only response.
package llmclient

import (
	"context"
	"fmt"
)

// Client is the capability every agent depends on. Call does not itself
// parse or validate the returned text — agents own the fallback ladder
// spec §4.4 prescribes for recovering from a model that ignores jsonMode.
type Client interface {
	Call(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error)
}

// RetryingClient wraps a Client and transparently retries once in plain-text
// mode if a JSON-mode call is rejected by the provider, matching spec §6's
// "if the provider rejects json_mode... retry once in plain-text mode and
// rely on the parsing fallback ladder" requirement.
type RetryingClient struct {
	inner Client
}

// NewRetryingClient wraps inner with the JSON-mode-rejection retry policy.
func NewRetryingClient(inner Client) *RetryingClient {
	return &RetryingClient{inner: inner}
}

func (r *RetryingClient) Call(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	text, err := r.inner.Call(ctx, systemPrompt, userPrompt, jsonMode)
	if err == nil || !jsonMode {
		return text, err
	}
	return r.inner.Call(ctx, systemPrompt, userPrompt, false)
}

// FakeClient is a scripted, deterministic double for tests: each call pops
// the next queued response (or repeats the last one once the queue drains),
// recording every prompt pair it was given for assertions.
type FakeClient struct {
	Responses []string
	calls     int
	Prompts   []PromptRecord
}

// PromptRecord captures one Call invocation for test assertions.
type PromptRecord struct {
	SystemPrompt string
	UserPrompt   string
	JSONMode     bool
}

func (f *FakeClient) Call(_ context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	f.Prompts = append(f.Prompts, PromptRecord{SystemPrompt: systemPrompt, UserPrompt: userPrompt, JSONMode: jsonMode})
	if len(f.Responses) == 0 {
		return "", fmt.Errorf("fake client: no scripted responses remain")
	}
	idx := f.calls
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	f.calls++
	return f.Responses[idx], nil
}
