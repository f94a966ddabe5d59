// Package llm — openai.go implements the OpenAI Chat Completions backend.
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
	defaultOpenAIURL  = "https://api.openai.com/v1/chat/completions"
	openAIHTTPTimeout = 120 * time.Second
)

// OpenAIClient talks to the OpenAI Chat Completions API.
type OpenAIClient struct {
	apiURL     string
	model      string
	key        keyResolver
	httpClient *http.Client
	logger     *slog.Logger
}

// OpenAIConfig holds configuration for the OpenAI backend.
type OpenAIConfig struct {
	Model string

	// APIKeyEnv names an environment variable holding the API key. When the
	// variable is set and non-empty it takes precedence over APIKeyRef.
	APIKeyEnv string
	APIKeyRef SecretRef

	// APIURL overrides the default OpenAI API endpoint (for testing).
	APIURL string
}

// NewOpenAIClient creates a new OpenAI-backed client.
func NewOpenAIClient(cfg OpenAIConfig, secrets SecretReader, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}
	key, err := newKeyResolver(cfg.APIKeyEnv, cfg.APIKeyRef, secrets)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if logger == nil {
		return nil, fmt.Errorf("openai: logger must not be nil")
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultOpenAIURL
	}

	return &OpenAIClient{
		apiURL:     apiURL,
		model:      cfg.Model,
		key:        key,
		httpClient: &http.Client{Timeout: openAIHTTPTimeout},
		logger:     logger,
	}, nil
}

// Name returns the backend identifier.
func (o *OpenAIClient) Name() string {
	return "openai"
}

// openAIRequest is the OpenAI Chat Completions API request body.
type openAIRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []openAIMessage `json:"messages"`
}

// openAIMessage represents a message in the OpenAI Chat Completions API.
type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIResponse is the OpenAI Chat Completions API response body.
type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

// openAIChoice represents a response choice.
type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

// openAIUsage holds token usage from the OpenAI response.
type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// openAIError represents an API error from OpenAI.
type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete sends the request to the OpenAI Chat Completions API.
func (o *OpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	apiKey, err := o.key.resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai: reading API key: %w", err)
	}

	messages := make([]openAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.User})

	reqBody := openAIRequest{
		Model:       o.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    messages,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("openai: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("openai: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	o.logger.Info("sending completion request to OpenAI",
		"model", o.model,
		"max_tokens", req.MaxTokens,
	)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return nil, fmt.Errorf("openai: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return nil, fmt.Errorf("openai: parsing response JSON: %w", err)
	}

	if openAIResp.Error != nil {
		return nil, fmt.Errorf("openai: API error: %s: %s", openAIResp.Error.Type, openAIResp.Error.Message)
	}

	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response contained no choices")
	}

	tokens := model.TokenUsage{
		Input:  openAIResp.Usage.PromptTokens,
		Output: openAIResp.Usage.CompletionTokens,
	}

	o.logger.Info("received OpenAI completion",
		"model", o.model,
		"input_tokens", tokens.Input,
		"output_tokens", tokens.Output,
	)

	return &Completion{
		Text:   openAIResp.Choices[0].Message.Content,
		Tokens: tokens,
	}, nil
}

// Healthy checks whether the API key can be resolved. A full API call is not
// made to avoid cost.
func (o *OpenAIClient) Healthy(ctx context.Context) bool {
	if _, err := o.key.resolve(ctx); err != nil {
		o.logger.Warn("openai health check failed: cannot resolve API key",
			"error", err,
		)
		return false
	}
	return true
}
