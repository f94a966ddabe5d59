// Package llm — bedrock.go implements the AWS Bedrock backend for
// environments that keep model traffic inside AWS.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

// BedrockRuntime is the interface for invoking Bedrock models, allowing test
// injection of a mock.
type BedrockRuntime interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient invokes Anthropic models through the AWS Bedrock runtime.
type BedrockClient struct {
	runtime BedrockRuntime
	modelID string
	logger  *slog.Logger
}

// BedrockConfig holds configuration for the Bedrock backend.
type BedrockConfig struct {
	Region  string
	ModelID string
}

// NewBedrockClient creates a new Bedrock-backed client. It loads AWS
// credentials using the default credential chain (IRSA-compatible).
func NewBedrockClient(ctx context.Context, cfg BedrockConfig, logger *slog.Logger) (*BedrockClient, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("bedrock: region must not be empty")
	}
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("bedrock: modelID must not be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("bedrock: logger must not be nil")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: loading AWS config: %w", err)
	}

	return &BedrockClient{
		runtime: bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.ModelID,
		logger:  logger,
	}, nil
}

// newBedrockClientWithRuntime creates a BedrockClient with an injected
// runtime (for testing).
func newBedrockClientWithRuntime(runtime BedrockRuntime, cfg BedrockConfig, logger *slog.Logger) (*BedrockClient, error) {
	if runtime == nil {
		return nil, fmt.Errorf("bedrock: runtime must not be nil")
	}
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("bedrock: modelID must not be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("bedrock: logger must not be nil")
	}
	return &BedrockClient{
		runtime: runtime,
		modelID: cfg.ModelID,
		logger:  logger,
	}, nil
}

// Name returns the backend identifier.
func (b *BedrockClient) Name() string {
	return "claude-bedrock"
}

// bedrockAnthropicRequest is the request body for Anthropic models via
// Bedrock InvokeModel. Bedrock expects the native Anthropic Messages format.
type bedrockAnthropicRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	System           string          `json:"system"`
	Messages         []claudeMessage `json:"messages"`
}

// bedrockAnthropicResponse mirrors the Claude response format returned by
// Bedrock InvokeModel for Anthropic models.
type bedrockAnthropicResponse struct {
	Content []claudeContentBlock `json:"content"`
	Usage   claudeUsage          `json:"usage"`
}

// Complete invokes the configured Anthropic model through Bedrock.
func (b *BedrockClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("bedrock: %w", err)
	}

	reqBody := bedrockAnthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		System:           req.System,
		Messages: []claudeMessage{
			{Role: "user", Content: req.User},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshaling request: %w", err)
	}

	b.logger.Info("sending completion request to Bedrock",
		"model_id", b.modelID,
		"max_tokens", req.MaxTokens,
	)

	output, err := b.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        bodyBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: invoking model: %w", err)
	}

	var bedrockResp bedrockAnthropicResponse
	if err := json.Unmarshal(output.Body, &bedrockResp); err != nil {
		return nil, fmt.Errorf("bedrock: parsing response JSON: %w", err)
	}

	// Extract text from content blocks.
	var text string
	for _, block := range bedrockResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	tokens := model.TokenUsage{
		Input:  bedrockResp.Usage.InputTokens,
		Output: bedrockResp.Usage.OutputTokens,
	}

	b.logger.Info("received Bedrock completion",
		"model_id", b.modelID,
		"input_tokens", tokens.Input,
		"output_tokens", tokens.Output,
	)

	return &Completion{Text: text, Tokens: tokens}, nil
}

// Healthy checks whether the Bedrock runtime is configured.
func (b *BedrockClient) Healthy(ctx context.Context) bool {
	return b.runtime != nil
}
