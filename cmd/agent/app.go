package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/config"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/diagnose"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/filter"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/gatherer"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/kube"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/llm"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/metrics"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/query"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/redact"
)

// app holds the assembled components shared by the serve and debug-pod
// commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	kube     *kube.Client
	model    llm.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	orch     *diagnose.Orchestrator
	queries  *query.Service
}

// buildApp assembles the service from the loaded config: Kubernetes client,
// guardrail engine, signal gatherer, model backend, diagnostic orchestrator,
// and query service.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	kubeClient, err := kube.NewForConfig(cfg.Kubernetes.Kubeconfig, logger)
	if err != nil {
		return nil, err
	}

	guard, err := filter.NewEngine(filterConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("building guardrail engine: %w", err)
	}

	redactor, err := redact.New(nil, redact.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("building redactor: %w", err)
	}

	g, err := gatherer.New(kubeClient, redactor, logger,
		gatherer.WithEventWindow(cfg.Kubernetes.EventWindow),
		gatherer.WithTailLines(int64(cfg.Kubernetes.LogTailLines)),
		gatherer.WithGuard(guard))
	if err != nil {
		return nil, fmt.Errorf("building gatherer: %w", err)
	}

	modelClient, err := llm.New(ctx, modelConfig(cfg), kubeClient, logger)
	if err != nil {
		return nil, fmt.Errorf("building model client: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	m := metrics.NewMetrics(registry)

	orch, err := diagnose.New(g, modelClient, m, logger,
		diagnose.WithTemperature(temperature(cfg.Model.Debug)),
		diagnose.WithMaxTokens(cfg.Model.Debug.MaxTokens))
	if err != nil {
		return nil, fmt.Errorf("building orchestrator: %w", err)
	}

	queries, err := query.New(kubeClient, modelClient, guard, m, logger,
		query.WithNamespaceFilter(cfg.Kubernetes.NamespaceFilter),
		query.WithMaxResourcesPerType(cfg.Kubernetes.MaxResourcesPerType),
		query.WithTemperature(temperature(cfg.Model.Query)),
		query.WithMaxTokens(cfg.Model.Query.MaxTokens))
	if err != nil {
		return nil, fmt.Errorf("building query service: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		kube:     kubeClient,
		model:    modelClient,
		registry: registry,
		metrics:  m,
		orch:     orch,
		queries:  queries,
	}, nil
}

// filterConfig maps the filters config section onto the guardrail engine.
func filterConfig(cfg *config.Config) filter.Config {
	rules := make([]filter.Rule, 0, len(cfg.Filters.Rules))
	for _, r := range cfg.Filters.Rules {
		rules = append(rules, filter.Rule{
			Name:       r.Name,
			Expression: r.Expression,
			Params:     r.Params,
		})
	}
	return filter.Config{
		ExcludeNamespaces: cfg.Filters.ExcludeNamespaces,
		Rules:             rules,
	}
}

// modelConfig maps the model config section onto the backend factory.
func modelConfig(cfg *config.Config) llm.Config {
	mc := cfg.Model
	return llm.Config{
		Backend: mc.Backend,
		OpenAI: llm.OpenAIConfig{
			Model:     mc.OpenAI.Model,
			APIKeyEnv: mc.OpenAI.APIKeyEnv,
			APIKeyRef: secretRef(mc.OpenAI.APIKeySecret),
		},
		Claude: llm.ClaudeConfig{
			Model:     mc.Claude.Model,
			APIKeyEnv: mc.Claude.APIKeyEnv,
			APIKeyRef: secretRef(mc.Claude.APIKeySecret),
		},
		AzureOpenAI: llm.AzureOpenAIConfig{
			Endpoint:       mc.AzureOpenAI.Endpoint,
			DeploymentName: mc.AzureOpenAI.DeploymentName,
			APIKeyEnv:      mc.AzureOpenAI.APIKeyEnv,
			APIKeyRef:      secretRef(mc.AzureOpenAI.APIKeySecret),
		},
		Bedrock: llm.BedrockConfig{
			Region:  mc.ClaudeBedrock.Region,
			ModelID: mc.ClaudeBedrock.ModelID,
		},
		CircuitBreaker: llm.CircuitBreakerConfig{
			ConsecutiveFailures: mc.CircuitBreaker.ConsecutiveFailures,
			OpenDuration:        mc.CircuitBreaker.OpenDuration,
		},
		RateLimiter: llm.RateLimiterConfig{
			DailyTokenBudget:  mc.RateLimiting.DailyTokenBudget,
			HourlyTokenBudget: mc.RateLimiting.HourlyTokenBudget,
		},
	}
}

func secretRef(ref config.SecretKeyRef) llm.SecretRef {
	return llm.SecretRef{Namespace: ref.Namespace, Name: ref.Name, Key: ref.Key}
}

// temperature unwraps an optional temperature; a missing value keeps the
// consuming package's default.
func temperature(s config.PromptSettings) float64 {
	if s.Temperature == nil {
		return -1
	}
	return *s.Temperature
}

// modelName names the active backend's model for the health summary.
func modelName(cfg *config.Config) string {
	switch cfg.Model.Backend {
	case "openai":
		return cfg.Model.OpenAI.Model
	case "claude":
		return cfg.Model.Claude.Model
	case "azure-openai":
		return cfg.Model.AzureOpenAI.DeploymentName
	case "claude-bedrock":
		return cfg.Model.ClaudeBedrock.ModelID
	}
	return ""
}
