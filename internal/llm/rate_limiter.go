// Package llm — rate_limiter.go implements token budget tracking for model
// backends.
//
// When the daily or hourly token budget is spent, requests are rejected with
// ErrBudgetExhausted until the window rolls over. Budget tracking is
// in-memory and resets on restart.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrBudgetExhausted is returned when the daily or hourly token budget is
// spent. The budget replenishes at the next UTC day or hour boundary.
var ErrBudgetExhausted = errors.New("llm: token budget exhausted")

// RateLimiterConfig holds configuration for the token budget rate limiter.
type RateLimiterConfig struct {
	// DailyTokenBudget is the maximum total tokens (input + output) allowed
	// per UTC day. Zero or negative means unlimited.
	DailyTokenBudget int

	// HourlyTokenBudget is the maximum total tokens (input + output) allowed
	// per UTC hour. Zero or negative means unlimited.
	HourlyTokenBudget int
}

// tokenWindow tracks token usage within a time window.
type tokenWindow struct {
	tokens    int
	windowKey string // "2026-08-25" for daily, "2026-08-25T14" for hourly
}

// RateLimiter wraps a Client with token budget enforcement. When the
// configured daily or hourly token budget is exceeded, Complete returns
// ErrBudgetExhausted without calling the backend until the window resets.
type RateLimiter struct {
	primary Client
	logger  *slog.Logger
	cfg     RateLimiterConfig

	mu     sync.Mutex
	daily  tokenWindow
	hourly tokenWindow

	// nowFunc allows testing to inject a clock.
	nowFunc func() time.Time
}

// NewRateLimiter creates a new RateLimiter wrapping the given backend.
func NewRateLimiter(primary Client, cfg RateLimiterConfig, logger *slog.Logger) (*RateLimiter, error) {
	if primary == nil {
		return nil, fmt.Errorf("rate_limiter: primary client must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("rate_limiter: logger must not be nil")
	}

	return &RateLimiter{
		primary: primary,
		logger:  logger,
		cfg:     cfg,
		nowFunc: time.Now,
	}, nil
}

// Name returns the primary backend's name.
func (rl *RateLimiter) Name() string {
	return rl.primary.Name()
}

// Complete forwards the request to the primary backend unless the token
// budget is exhausted.
func (rl *RateLimiter) Complete(ctx context.Context, req Request) (*Completion, error) {
	if rl.isOverBudget() {
		rl.logger.Warn("token budget exhausted, rejecting model request",
			"backend", rl.primary.Name(),
		)
		return nil, ErrBudgetExhausted
	}

	completion, err := rl.primary.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	rl.recordTokens(completion.Tokens.Total())
	return completion, nil
}

// Healthy reports whether the primary backend is healthy.
func (rl *RateLimiter) Healthy(ctx context.Context) bool {
	return rl.primary.Healthy(ctx)
}

// isOverBudget checks whether either the daily or hourly token budget has
// been exceeded.
func (rl *RateLimiter) isOverBudget() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc().UTC()

	if rl.cfg.DailyTokenBudget > 0 {
		dayKey := now.Format("2006-01-02")
		if rl.daily.windowKey == dayKey && rl.daily.tokens >= rl.cfg.DailyTokenBudget {
			return true
		}
	}

	if rl.cfg.HourlyTokenBudget > 0 {
		hourKey := now.Format("2006-01-02T15")
		if rl.hourly.windowKey == hourKey && rl.hourly.tokens >= rl.cfg.HourlyTokenBudget {
			return true
		}
	}

	return false
}

// recordTokens adds the given token count to both the daily and hourly
// windows, resetting windows that have rolled over.
func (rl *RateLimiter) recordTokens(tokens int) {
	if tokens <= 0 {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc().UTC()

	// Daily window.
	dayKey := now.Format("2006-01-02")
	if rl.daily.windowKey != dayKey {
		rl.daily = tokenWindow{windowKey: dayKey}
	}
	rl.daily.tokens += tokens

	// Hourly window.
	hourKey := now.Format("2006-01-02T15")
	if rl.hourly.windowKey != hourKey {
		rl.hourly = tokenWindow{windowKey: hourKey}
	}
	rl.hourly.tokens += tokens

	rl.logger.Debug("recorded token usage",
		"tokens", tokens,
		"daily_total", rl.daily.tokens,
		"daily_budget", rl.cfg.DailyTokenBudget,
		"hourly_total", rl.hourly.tokens,
		"hourly_budget", rl.cfg.HourlyTokenBudget,
	)
}

// TokenUsage returns the current token usage for both daily and hourly
// windows. Counters for a rolled-over window report zero.
func (rl *RateLimiter) TokenUsage() (dailyUsed, hourlyUsed int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc().UTC()

	dayKey := now.Format("2006-01-02")
	if rl.daily.windowKey == dayKey {
		dailyUsed = rl.daily.tokens
	}

	hourKey := now.Format("2006-01-02T15")
	if rl.hourly.windowKey == hourKey {
		hourlyUsed = rl.hourly.tokens
	}

	return dailyUsed, hourlyUsed
}
