// Package llm provides the model-call collaborator shared by the diagnostic
// and query paths. A Client carries one system instruction + user prompt pair
// to a hosted model and returns the raw completion text; interpreting that
// text is the caller's job. Implementations cover the OpenAI, Anthropic,
// Azure OpenAI, and AWS Bedrock APIs, plus wrappers that add circuit breaking
// and token budget enforcement.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

// Client is the interface all model backends implement.
type Client interface {
	// Name returns the backend identifier (e.g. "openai", "claude").
	Name() string

	// Complete sends a single completion request to the backend and returns
	// the raw response text with token usage. Implementations make exactly
	// one attempt; a failure is returned as-is, never retried.
	Complete(ctx context.Context, req Request) (*Completion, error)

	// Healthy reports whether the backend is ready to serve requests.
	Healthy(ctx context.Context) bool
}

// Request is a single model invocation: one system instruction plus one user
// prompt, with the sampling parameters for this call.
type Request struct {
	// System is the system instruction. May be empty.
	System string

	// User is the user prompt. Required.
	User string

	// Temperature is the sampling temperature passed through unchanged.
	Temperature float64

	// MaxTokens caps the completion length. Must be > 0.
	MaxTokens int
}

// Validate checks that the request is well-formed.
func (r Request) Validate() error {
	if strings.TrimSpace(r.User) == "" {
		return fmt.Errorf("user prompt must not be empty")
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("maxTokens must be > 0, got %d", r.MaxTokens)
	}
	return nil
}

// Completion is the raw reply from a model backend.
type Completion struct {
	// Text is the unparsed completion text.
	Text string

	// Tokens is the token usage the backend reported for this call.
	Tokens model.TokenUsage
}
