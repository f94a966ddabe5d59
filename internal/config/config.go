// Package config defines the agent configuration, loaded from a single YAML
// file. Load, then ApplyDefaults, then Validate; LoadAndValidate bundles the
// three for startup.
package config

import "time"

// DefaultConfigPath is the default filesystem path for the agent config
// file, typically mounted via ConfigMap.
const DefaultConfigPath = "/etc/k8s-agent/config.yaml"

// Config is the top-level agent configuration.
type Config struct {
	// Server configures the HTTP API listener.
	Server ServerConfig `yaml:"server"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Health configures the health probe port.
	Health HealthConfig `yaml:"health"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Kubernetes configures cluster access and gathering limits.
	Kubernetes KubernetesConfig `yaml:"kubernetes"`

	// Filters configures the diagnostic guardrails.
	Filters FiltersConfig `yaml:"filters"`

	// Model configures the AI model backend.
	Model ModelConfig `yaml:"model"`
}

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MetricsConfig configures the Prometheus metrics endpoint. Enabled is a
// pointer so an explicit false survives defaulting.
type MetricsConfig struct {
	Enabled *bool `yaml:"enabled"`
	Port    int   `yaml:"port"`
}

// HealthConfig configures the health probe endpoint.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig controls the logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// KubernetesConfig holds cluster access settings and gathering limits.
type KubernetesConfig struct {
	// Kubeconfig is the path to a kubeconfig file. Empty tries in-cluster
	// configuration first, then the default kubeconfig location.
	Kubeconfig string `yaml:"kubeconfig"`

	// NamespaceFilter is a substring filter applied to namespace listings.
	NamespaceFilter string `yaml:"namespaceFilter"`

	// EventWindow bounds how far back pod events are considered during
	// diagnosis.
	EventWindow time.Duration `yaml:"eventWindow"`

	// LogTailLines bounds how many log lines are fetched per container.
	LogTailLines int `yaml:"logTailLines"`

	// MaxResourcesPerType caps each resource list in query summaries.
	MaxResourcesPerType int `yaml:"maxResourcesPerType"`
}

// FiltersConfig holds the diagnostic guardrail settings.
type FiltersConfig struct {
	// ExcludeNamespaces lists namespace names or regex patterns whose pods
	// are refused diagnosis and omitted from summaries.
	ExcludeNamespaces []string `yaml:"excludeNamespaces"`

	// Rules are named CEL expressions evaluated against the target pod.
	Rules []FilterRuleConfig `yaml:"rules"`
}

// FilterRuleConfig is one named CEL guardrail.
type FilterRuleConfig struct {
	Name       string            `yaml:"name"`
	Expression string            `yaml:"expression"`
	Params     map[string]string `yaml:"params"`
}

// ModelConfig configures the AI model backend and its guardrails.
type ModelConfig struct {
	// Backend is one of "openai", "claude", "azure-openai", "claude-bedrock".
	Backend string `yaml:"backend"`

	// Debug holds the sampling settings for pod diagnosis requests.
	Debug PromptSettings `yaml:"debug"`

	// Query holds the sampling settings for cluster query requests.
	Query PromptSettings `yaml:"query"`

	RateLimiting   RateLimitingConfig   `yaml:"rateLimiting"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`

	OpenAI        OpenAIConfig        `yaml:"openai"`
	Claude        ClaudeConfig        `yaml:"claude"`
	AzureOpenAI   AzureOpenAIConfig   `yaml:"azureOpenai"`
	ClaudeBedrock ClaudeBedrockConfig `yaml:"claudeBedrock"`
}

// PromptSettings holds per-request-kind model sampling settings.
// Temperature is a pointer so an explicit 0 survives defaulting.
type PromptSettings struct {
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"maxTokens"`
}

// RateLimitingConfig configures token budget limits. Zero means unlimited.
type RateLimitingConfig struct {
	DailyTokenBudget  int `yaml:"dailyTokenBudget"`
	HourlyTokenBudget int `yaml:"hourlyTokenBudget"`
}

// CircuitBreakerConfig configures the model backend circuit breaker.
type CircuitBreakerConfig struct {
	ConsecutiveFailures int           `yaml:"consecutiveFailures"`
	OpenDuration        time.Duration `yaml:"openDuration"`
}

// SecretKeyRef references a Kubernetes Secret by namespace, name, and key.
// An empty namespace defaults to "default".
type SecretKeyRef struct {
	Namespace string `yaml:"namespace"`
	Name      string `yaml:"name"`
	Key       string `yaml:"key"`
}

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	Model        string       `yaml:"model"`
	APIKeyEnv    string       `yaml:"apiKeyEnv"`
	APIKeySecret SecretKeyRef `yaml:"apiKeySecret"`
}

// ClaudeConfig configures the direct Anthropic Claude backend.
type ClaudeConfig struct {
	Model        string       `yaml:"model"`
	APIKeyEnv    string       `yaml:"apiKeyEnv"`
	APIKeySecret SecretKeyRef `yaml:"apiKeySecret"`
}

// AzureOpenAIConfig configures the Azure OpenAI backend.
type AzureOpenAIConfig struct {
	Endpoint       string       `yaml:"endpoint"`
	DeploymentName string       `yaml:"deploymentName"`
	APIKeyEnv      string       `yaml:"apiKeyEnv"`
	APIKeySecret   SecretKeyRef `yaml:"apiKeySecret"`
}

// ClaudeBedrockConfig configures the AWS Bedrock Claude backend.
type ClaudeBedrockConfig struct {
	Region  string `yaml:"region"`
	ModelID string `yaml:"modelId"`
}
