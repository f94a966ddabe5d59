// Package llm — factory.go assembles the configured backend with its
// guardrail wrappers.
package llm

import (
	"context"
	"fmt"
	"log/slog"
)

// Config selects the model backend and configures its guardrails.
type Config struct {
	// Backend is one of "openai", "claude", "claude-bedrock", "azure-openai".
	Backend string

	OpenAI      OpenAIConfig
	Claude      ClaudeConfig
	AzureOpenAI AzureOpenAIConfig
	Bedrock     BedrockConfig

	CircuitBreaker CircuitBreakerConfig
	RateLimiter    RateLimiterConfig
}

// New builds the configured backend wrapped in its guardrails. Wrapper order
// is rate limiter outside circuit breaker: a budget rejection never reaches
// the backend and does not count as a breaker failure.
func New(ctx context.Context, cfg Config, secrets SecretReader, logger *slog.Logger) (Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("llm: logger must not be nil")
	}

	var backend Client
	var err error

	switch cfg.Backend {
	case "openai":
		backend, err = NewOpenAIClient(cfg.OpenAI, secrets, logger)
	case "claude":
		backend, err = NewClaudeClient(cfg.Claude, secrets, logger)
	case "azure-openai":
		backend, err = NewAzureOpenAIClient(cfg.AzureOpenAI, secrets, logger)
	case "claude-bedrock":
		backend, err = NewBedrockClient(ctx, cfg.Bedrock, logger)
	default:
		return nil, fmt.Errorf("llm: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	breaker, err := NewCircuitBreaker(backend, cfg.CircuitBreaker, logger)
	if err != nil {
		return nil, err
	}

	return NewRateLimiter(breaker, cfg.RateLimiter, logger)
}
