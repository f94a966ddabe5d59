package config

import (
	"fmt"
	"regexp"
	"strings"
)

// validModelBackends is the set of recognized model backend names.
var validModelBackends = map[string]bool{
	"openai":         true,
	"claude":         true,
	"azure-openai":   true,
	"claude-bedrock": true,
}

// Validate checks the config for invalid or contradictory settings.
// It should be called after ApplyDefaults. On the first error encountered,
// it returns a descriptive error. The agent should crash with this error
// at startup rather than run half-configured.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	if err := c.validateHealth(); err != nil {
		return err
	}
	if err := c.validateKubernetes(); err != nil {
		return err
	}
	if err := c.validateFilters(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return err
	}
	format := strings.ToLower(c.Logging.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid log format %q: must be json or text", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if c.Metrics.Port == c.Server.Port {
		return fmt.Errorf("metrics.port (%d) must not equal server.port (%d)", c.Metrics.Port, c.Server.Port)
	}
	return nil
}

func (c *Config) validateHealth() error {
	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}
	if c.Health.Port == c.Metrics.Port {
		return fmt.Errorf("health.port (%d) must not equal metrics.port (%d)", c.Health.Port, c.Metrics.Port)
	}
	if c.Health.Port == c.Server.Port {
		return fmt.Errorf("health.port (%d) must not equal server.port (%d)", c.Health.Port, c.Server.Port)
	}
	return nil
}

func (c *Config) validateKubernetes() error {
	if c.Kubernetes.EventWindow <= 0 {
		return fmt.Errorf("kubernetes.eventWindow must be positive, got %s", c.Kubernetes.EventWindow)
	}
	if c.Kubernetes.LogTailLines < 1 {
		return fmt.Errorf("kubernetes.logTailLines must be >= 1, got %d", c.Kubernetes.LogTailLines)
	}
	if c.Kubernetes.MaxResourcesPerType < 1 {
		return fmt.Errorf("kubernetes.maxResourcesPerType must be >= 1, got %d", c.Kubernetes.MaxResourcesPerType)
	}
	return nil
}

func (c *Config) validateFilters() error {
	for i, pattern := range c.Filters.ExcludeNamespaces {
		if pattern == "" {
			return fmt.Errorf("filters.excludeNamespaces[%d]: pattern must not be empty", i)
		}
		// Validate regex patterns by attempting to compile them. The filter
		// engine compiles them again at startup, but failing here keeps the
		// error message pointing at the config file.
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("filters.excludeNamespaces[%d]: invalid regex %q: %w", i, pattern, err)
		}
	}

	seen := make(map[string]bool, len(c.Filters.Rules))
	for i, rule := range c.Filters.Rules {
		if rule.Name == "" {
			return fmt.Errorf("filters.rules[%d]: name must not be empty", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("filters.rules[%d]: duplicate rule name %q", i, rule.Name)
		}
		seen[rule.Name] = true
		if rule.Expression == "" {
			return fmt.Errorf("filters.rules[%d]: expression must not be empty", i)
		}
	}
	return nil
}

func (c *Config) validateModel() error {
	if !validModelBackends[c.Model.Backend] {
		return fmt.Errorf("model.backend %q is not valid: must be one of openai, claude, azure-openai, claude-bedrock",
			c.Model.Backend)
	}

	if err := validatePromptSettings("model.debug", c.Model.Debug); err != nil {
		return err
	}
	if err := validatePromptSettings("model.query", c.Model.Query); err != nil {
		return err
	}

	if c.Model.RateLimiting.DailyTokenBudget < 0 {
		return fmt.Errorf("model.rateLimiting.dailyTokenBudget must not be negative, got %d",
			c.Model.RateLimiting.DailyTokenBudget)
	}
	if c.Model.RateLimiting.HourlyTokenBudget < 0 {
		return fmt.Errorf("model.rateLimiting.hourlyTokenBudget must not be negative, got %d",
			c.Model.RateLimiting.HourlyTokenBudget)
	}

	if c.Model.CircuitBreaker.ConsecutiveFailures < 1 {
		return fmt.Errorf("model.circuitBreaker.consecutiveFailures must be >= 1, got %d",
			c.Model.CircuitBreaker.ConsecutiveFailures)
	}
	if c.Model.CircuitBreaker.OpenDuration <= 0 {
		return fmt.Errorf("model.circuitBreaker.openDuration must be positive, got %s",
			c.Model.CircuitBreaker.OpenDuration)
	}

	// Validate backend-specific config when that backend is selected.
	// API key presence is deliberately not checked here: the model client
	// factory resolves env vars and secret refs and reports what is missing.
	switch c.Model.Backend {
	case "openai":
		if c.Model.OpenAI.Model == "" {
			return fmt.Errorf("model.openai.model must be set when backend is openai")
		}
		if err := validateSecretRef("model.openai.apiKeySecret", c.Model.OpenAI.APIKeySecret); err != nil {
			return err
		}
	case "claude":
		if c.Model.Claude.Model == "" {
			return fmt.Errorf("model.claude.model must be set when backend is claude")
		}
		if err := validateSecretRef("model.claude.apiKeySecret", c.Model.Claude.APIKeySecret); err != nil {
			return err
		}
	case "azure-openai":
		if c.Model.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("model.azureOpenai.endpoint must be set when backend is azure-openai")
		}
		if c.Model.AzureOpenAI.DeploymentName == "" {
			return fmt.Errorf("model.azureOpenai.deploymentName must be set when backend is azure-openai")
		}
		if err := validateSecretRef("model.azureOpenai.apiKeySecret", c.Model.AzureOpenAI.APIKeySecret); err != nil {
			return err
		}
	case "claude-bedrock":
		if c.Model.ClaudeBedrock.Region == "" {
			return fmt.Errorf("model.claudeBedrock.region must be set when backend is claude-bedrock")
		}
		if c.Model.ClaudeBedrock.ModelID == "" {
			return fmt.Errorf("model.claudeBedrock.modelId must be set when backend is claude-bedrock")
		}
	}

	return nil
}

// validatePromptSettings checks the sampling settings for one prompt kind.
func validatePromptSettings(field string, s PromptSettings) error {
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 1) {
		return fmt.Errorf("%s.temperature must be between 0 and 1, got %f", field, *s.Temperature)
	}
	if s.MaxTokens < 1 {
		return fmt.Errorf("%s.maxTokens must be >= 1, got %d", field, s.MaxTokens)
	}
	return nil
}

// validateSecretRef checks that a secret key reference names both the
// secret and the key within it when used at all.
func validateSecretRef(field string, ref SecretKeyRef) error {
	if ref.Name == "" && ref.Key == "" {
		return nil
	}
	if ref.Name == "" {
		return fmt.Errorf("%s.name must be set when %s.key is set", field, field)
	}
	if ref.Key == "" {
		return fmt.Errorf("%s.key must be set when %s.name is set", field, field)
	}
	return nil
}
