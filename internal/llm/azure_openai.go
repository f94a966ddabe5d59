// Package llm — azure_openai.go implements the Azure OpenAI backend for
// deployments on Azure.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

const (
	azureOpenAIAPIVersion = "2024-06-01"
	azureHTTPTimeout      = 120 * time.Second
)

// AzureOpenAIClient talks to the Azure OpenAI Service.
type AzureOpenAIClient struct {
	endpoint       string
	deploymentName string
	key            keyResolver
	httpClient     *http.Client
	logger         *slog.Logger
	// apiURL overrides the constructed URL (for testing).
	apiURL string
}

// AzureOpenAIConfig holds configuration for the Azure OpenAI backend.
type AzureOpenAIConfig struct {
	Endpoint       string
	DeploymentName string

	// APIKeyEnv names an environment variable holding the API key. When the
	// variable is set and non-empty it takes precedence over APIKeyRef.
	APIKeyEnv string
	APIKeyRef SecretRef

	// APIURL overrides the constructed Azure endpoint (for testing).
	APIURL string
}

// NewAzureOpenAIClient creates a new Azure OpenAI-backed client.
func NewAzureOpenAIClient(cfg AzureOpenAIConfig, secrets SecretReader, logger *slog.Logger) (*AzureOpenAIClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure-openai: endpoint must not be empty")
	}
	if cfg.DeploymentName == "" {
		return nil, fmt.Errorf("azure-openai: deploymentName must not be empty")
	}
	key, err := newKeyResolver(cfg.APIKeyEnv, cfg.APIKeyRef, secrets)
	if err != nil {
		return nil, fmt.Errorf("azure-openai: %w", err)
	}
	if logger == nil {
		return nil, fmt.Errorf("azure-openai: logger must not be nil")
	}

	return &AzureOpenAIClient{
		endpoint:       strings.TrimRight(cfg.Endpoint, "/"),
		deploymentName: cfg.DeploymentName,
		key:            key,
		httpClient:     &http.Client{Timeout: azureHTTPTimeout},
		logger:         logger,
		apiURL:         cfg.APIURL,
	}, nil
}

// Name returns the backend identifier.
func (a *AzureOpenAIClient) Name() string {
	return "azure-openai"
}

// buildURL constructs the Azure OpenAI chat completions endpoint URL.
func (a *AzureOpenAIClient) buildURL() string {
	if a.apiURL != "" {
		return a.apiURL
	}
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		a.endpoint, a.deploymentName, azureOpenAIAPIVersion)
}

// Complete sends the request to the Azure OpenAI Service.
func (a *AzureOpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("azure-openai: %w", err)
	}

	apiKey, err := a.key.resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("azure-openai: reading API key: %w", err)
	}

	messages := make([]openAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.User})

	// Azure OpenAI uses the same request format as OpenAI, but without the
	// model field (the deployment specifies the model).
	reqBody := openAIRequest{
		Model:       "",
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    messages,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("azure-openai: marshaling request: %w", err)
	}

	url := a.buildURL()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("azure-openai: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", apiKey)

	a.logger.Info("sending completion request to Azure OpenAI",
		"endpoint", a.endpoint,
		"deployment", a.deploymentName,
		"max_tokens", req.MaxTokens,
	)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("azure-openai: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return nil, fmt.Errorf("azure-openai: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azure-openai: API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return nil, fmt.Errorf("azure-openai: parsing response JSON: %w", err)
	}

	if openAIResp.Error != nil {
		return nil, fmt.Errorf("azure-openai: API error: %s: %s", openAIResp.Error.Type, openAIResp.Error.Message)
	}

	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("azure-openai: response contained no choices")
	}

	tokens := model.TokenUsage{
		Input:  openAIResp.Usage.PromptTokens,
		Output: openAIResp.Usage.CompletionTokens,
	}

	a.logger.Info("received Azure OpenAI completion",
		"deployment", a.deploymentName,
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
func (a *AzureOpenAIClient) Healthy(ctx context.Context) bool {
	if _, err := a.key.resolve(ctx); err != nil {
		a.logger.Warn("azure-openai health check failed: cannot resolve API key",
			"error", err,
		)
		return false
	}
	return true
}
