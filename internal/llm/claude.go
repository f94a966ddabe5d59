// Package llm — claude.go implements the Claude direct API backend using the
// Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

const (
	defaultClaudeAPIURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion    = "2023-06-01"
	claudeHTTPTimeout   = 120 * time.Second
)

// ClaudeClient talks to the Anthropic Messages API.
type ClaudeClient struct {
	apiURL     string
	model      string
	key        keyResolver
	httpClient *http.Client
	logger     *slog.Logger
}

// ClaudeConfig holds configuration for the direct Claude backend.
type ClaudeConfig struct {
	Model string

	// APIKeyEnv names an environment variable holding the API key. When the
	// variable is set and non-empty it takes precedence over APIKeyRef.
	APIKeyEnv string
	APIKeyRef SecretRef

	// APIURL overrides the default Anthropic API endpoint (for testing).
	APIURL string
}

// NewClaudeClient creates a new Claude-backed client.
func NewClaudeClient(cfg ClaudeConfig, secrets SecretReader, logger *slog.Logger) (*ClaudeClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("claude: model must not be empty")
	}
	key, err := newKeyResolver(cfg.APIKeyEnv, cfg.APIKeyRef, secrets)
	if err != nil {
		return nil, fmt.Errorf("claude: %w", err)
	}
	if logger == nil {
		return nil, fmt.Errorf("claude: logger must not be nil")
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultClaudeAPIURL
	}

	return &ClaudeClient{
		apiURL:     apiURL,
		model:      cfg.Model,
		key:        key,
		httpClient: &http.Client{Timeout: claudeHTTPTimeout},
		logger:     logger,
	}, nil
}

// Name returns the backend identifier.
func (c *ClaudeClient) Name() string {
	return "claude"
}

// claudeRequest is the Anthropic Messages API request body.
type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system"`
	Messages    []claudeMessage `json:"messages"`
}

// claudeMessage represents a message in the Anthropic Messages API.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the Anthropic Messages API response body.
type claudeResponse struct {
	ID      string               `json:"id"`
	Content []claudeContentBlock `json:"content"`
	Usage   claudeUsage          `json:"usage"`
	Error   *claudeError         `json:"error,omitempty"`
}

// claudeContentBlock is a content block in the Claude response.
type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// claudeUsage holds token usage from the Claude response.
type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// claudeError represents an API error from Claude.
type claudeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Complete sends the request to the Anthropic Messages API.
func (c *ClaudeClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("claude: %w", err)
	}

	apiKey, err := c.key.resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("claude: reading API key: %w", err)
	}

	reqBody := claudeRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages: []claudeMessage{
			{Role: "user", Content: req.User},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("claude: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("claude: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	c.logger.Info("sending completion request to Claude",
		"model", c.model,
		"max_tokens", req.MaxTokens,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("claude: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return nil, fmt.Errorf("claude: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("claude: API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(respBody, &claudeResp); err != nil {
		return nil, fmt.Errorf("claude: parsing response JSON: %w", err)
	}

	if claudeResp.Error != nil {
		return nil, fmt.Errorf("claude: API error: %s: %s", claudeResp.Error.Type, claudeResp.Error.Message)
	}

	// Extract text from content blocks.
	var text string
	for _, block := range claudeResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	tokens := model.TokenUsage{
		Input:  claudeResp.Usage.InputTokens,
		Output: claudeResp.Usage.OutputTokens,
	}

	c.logger.Info("received Claude completion",
		"model", c.model,
		"input_tokens", tokens.Input,
		"output_tokens", tokens.Output,
	)

	return &Completion{Text: text, Tokens: tokens}, nil
}

// Healthy checks whether the API key can be resolved. A full API call is not
// made to avoid cost.
func (c *ClaudeClient) Healthy(ctx context.Context) bool {
	if _, err := c.key.resolve(ctx); err != nil {
		c.logger.Warn("claude health check failed: cannot resolve API key",
			"error", err,
		)
		return false
	}
	return true
}
