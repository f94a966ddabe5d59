package config

import "time"

// Default returns a Config populated with production defaults. The OpenAI
// backend with an environment-variable API key works out of the box.
func Default() *Config {
	enabled := true
	debugTemp := 0.3
	queryTemp := 0.0

	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},

		Metrics: MetricsConfig{
			Enabled: &enabled,
			Port:    8080,
		},

		Health: HealthConfig{
			Port: 8081,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},

		Kubernetes: KubernetesConfig{
			EventWindow:         30 * time.Minute,
			LogTailLines:        100,
			MaxResourcesPerType: 50,
		},

		Model: ModelConfig{
			Backend: "openai",
			Debug: PromptSettings{
				Temperature: &debugTemp,
				MaxTokens:   2000,
			},
			Query: PromptSettings{
				Temperature: &queryTemp,
				MaxTokens:   1000,
			},
			CircuitBreaker: CircuitBreakerConfig{
				ConsecutiveFailures: 5,
				OpenDuration:        10 * time.Minute,
			},
			OpenAI: OpenAIConfig{
				Model:     "gpt-3.5-turbo",
				APIKeyEnv: "OPENAI_API_KEY",
			},
			Claude: ClaudeConfig{
				Model:     "claude-sonnet-4-5-20250929",
				APIKeyEnv: "ANTHROPIC_API_KEY",
			},
			AzureOpenAI: AzureOpenAIConfig{
				APIKeyEnv: "AZURE_OPENAI_API_KEY",
			},
			ClaudeBedrock: ClaudeBedrockConfig{
				Region:  "us-east-1",
				ModelID: "anthropic.claude-sonnet-4-5-20250929-v1:0",
			},
		},
	}
}

// ApplyDefaults fills in unset fields with production defaults. It should
// be called after loading configuration from a file.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Server
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}

	// Metrics
	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = d.Metrics.Enabled
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = d.Metrics.Port
	}

	// Health
	if c.Health.Port == 0 {
		c.Health.Port = d.Health.Port
	}

	// Logging
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}

	// Kubernetes
	if c.Kubernetes.EventWindow == 0 {
		c.Kubernetes.EventWindow = d.Kubernetes.EventWindow
	}
	if c.Kubernetes.LogTailLines == 0 {
		c.Kubernetes.LogTailLines = d.Kubernetes.LogTailLines
	}
	if c.Kubernetes.MaxResourcesPerType == 0 {
		c.Kubernetes.MaxResourcesPerType = d.Kubernetes.MaxResourcesPerType
	}

	// Model
	if c.Model.Backend == "" {
		c.Model.Backend = d.Model.Backend
	}
	if c.Model.Debug.Temperature == nil {
		c.Model.Debug.Temperature = d.Model.Debug.Temperature
	}
	if c.Model.Debug.MaxTokens == 0 {
		c.Model.Debug.MaxTokens = d.Model.Debug.MaxTokens
	}
	if c.Model.Query.Temperature == nil {
		c.Model.Query.Temperature = d.Model.Query.Temperature
	}
	if c.Model.Query.MaxTokens == 0 {
		c.Model.Query.MaxTokens = d.Model.Query.MaxTokens
	}
	if c.Model.CircuitBreaker.ConsecutiveFailures == 0 {
		c.Model.CircuitBreaker.ConsecutiveFailures = d.Model.CircuitBreaker.ConsecutiveFailures
	}
	if c.Model.CircuitBreaker.OpenDuration == 0 {
		c.Model.CircuitBreaker.OpenDuration = d.Model.CircuitBreaker.OpenDuration
	}

	// Backends. API key environment variables default even when a secret
	// ref is configured: the resolver only prefers the variable when it is
	// actually set.
	if c.Model.OpenAI.Model == "" {
		c.Model.OpenAI.Model = d.Model.OpenAI.Model
	}
	if c.Model.OpenAI.APIKeyEnv == "" {
		c.Model.OpenAI.APIKeyEnv = d.Model.OpenAI.APIKeyEnv
	}
	if c.Model.Claude.Model == "" {
		c.Model.Claude.Model = d.Model.Claude.Model
	}
	if c.Model.Claude.APIKeyEnv == "" {
		c.Model.Claude.APIKeyEnv = d.Model.Claude.APIKeyEnv
	}
	if c.Model.AzureOpenAI.APIKeyEnv == "" {
		c.Model.AzureOpenAI.APIKeyEnv = d.Model.AzureOpenAI.APIKeyEnv
	}
	if c.Model.ClaudeBedrock.Region == "" {
		c.Model.ClaudeBedrock.Region = d.Model.ClaudeBedrock.Region
	}
	if c.Model.ClaudeBedrock.ModelID == "" {
		c.Model.ClaudeBedrock.ModelID = d.Model.ClaudeBedrock.ModelID
	}

	applySecretRefDefaults(&c.Model.OpenAI.APIKeySecret)
	applySecretRefDefaults(&c.Model.Claude.APIKeySecret)
	applySecretRefDefaults(&c.Model.AzureOpenAI.APIKeySecret)
}

// applySecretRefDefaults fills the namespace of a populated secret ref.
func applySecretRefDefaults(ref *SecretKeyRef) {
	if ref.Name != "" && ref.Namespace == "" {
		ref.Namespace = "default"
	}
}
