// Package query answers natural-language questions about cluster state. A
// request lists the resources of one namespace into a model.ClusterSummary,
// renders the summary into the query system prompt, and asks the configured
// model backend for an answer.
//
// Resource listing degrades per type: a failed list contributes an empty
// slice and a warning rather than failing the query. The model call is the
// only hard dependency; its failure is returned to the caller.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/filter"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/llm"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/metrics"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/prompt"
)

const (
	// defaultTemperature keeps query answers deterministic.
	defaultTemperature = 0.0

	// defaultMaxTokens bounds the answer length.
	defaultMaxTokens = 1000

	// defaultMaxResourcesPerType caps each summary list before the summary
	// is rendered into the prompt.
	defaultMaxResourcesPerType = 50
)

// KubeClient is the subset of the Kubernetes client needed for summaries.
type KubeClient interface {
	ListPods(ctx context.Context, namespace string) ([]model.PodInfo, error)
	ListServices(ctx context.Context, namespace string) ([]model.ServiceInfo, error)
	ListSecrets(ctx context.Context, namespace string) ([]model.SecretInfo, error)
	ListConfigMaps(ctx context.Context, namespace string) ([]model.ConfigMapInfo, error)
	ListDeployments(ctx context.Context, namespace string) ([]model.DeploymentInfo, error)
	ListNamespaces(ctx context.Context, substr string) ([]string, error)
}

// Service handles cluster queries and namespace listings.
type Service struct {
	kube    KubeClient
	client  llm.Client
	guard   *filter.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger

	namespaceFilter string
	maxResources    int
	temperature     float64
	maxTokens       int
}

// Option configures a Service.
type Option func(*Service)

// WithNamespaceFilter sets a substring filter applied to namespace listings.
func WithNamespaceFilter(substr string) Option {
	return func(s *Service) {
		s.namespaceFilter = substr
	}
}

// WithMaxResourcesPerType caps each resource list in the rendered summary.
// Values <= 0 disable the cap.
func WithMaxResourcesPerType(n int) Option {
	return func(s *Service) {
		s.maxResources = n
	}
}

// WithTemperature sets the model sampling temperature. Negative values
// keep the default.
func WithTemperature(t float64) Option {
	return func(s *Service) {
		if t >= 0 {
			s.temperature = t
		}
	}
}

// WithMaxTokens sets the model completion budget. Values <= 0 keep the
// default.
func WithMaxTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// New creates a query Service. The guard engine may be nil when no
// exclusion filters are configured. A nil logger falls back to
// slog.Default().
func New(kube KubeClient, client llm.Client, guard *filter.Engine, m *metrics.Metrics, logger *slog.Logger, opts ...Option) (*Service, error) {
	if kube == nil {
		return nil, fmt.Errorf("query: kube client must not be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("query: model client must not be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("query: metrics must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		kube:         kube,
		client:       client,
		guard:        guard,
		metrics:      m,
		logger:       logger,
		maxResources: defaultMaxResourcesPerType,
		temperature:  defaultTemperature,
		maxTokens:    defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Answer processes one natural-language query scoped to a namespace. An
// empty namespace defaults to "default". The returned answer has
// surrounding whitespace trimmed.
func (s *Service) Answer(ctx context.Context, query, namespace string) (string, error) {
	if namespace == "" {
		namespace = "default"
	}
	logger := s.logger.With("namespace", namespace)
	logger.Info("processing query", "query", query)

	s.metrics.QueriesTotal.Inc()

	summary := s.summarize(ctx, []string{namespace})

	bounded := summary.Truncated(s.maxResources)
	if s.maxResources > 0 && exceedsCap(summary, s.maxResources) {
		logger.Warn("cluster summary truncated for prompt", "max_per_type", s.maxResources)
	}
	system := prompt.BuildQuerySystemPrompt(bounded)

	req := llm.Request{
		System:      system,
		User:        query,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}

	backend := s.client.Name()
	start := time.Now()
	completion, err := s.client.Complete(ctx, req)
	duration := time.Since(start)
	s.metrics.ModelRequestDuration.Observe(duration.Seconds())

	if err != nil {
		s.metrics.ModelRequestsTotal.WithLabelValues(backend, "error").Inc()
		s.metrics.ErrorsTotal.WithLabelValues("model_transport").Inc()
		logger.Error("model invocation failed",
			"backend", backend,
			"duration", duration,
			"error", err)
		return "", fmt.Errorf("query: invoking model: %w", err)
	}

	s.metrics.ModelRequestsTotal.WithLabelValues(backend, "success").Inc()
	s.metrics.ModelTokensUsedTotal.WithLabelValues(backend, "input").Add(float64(completion.Tokens.Input))
	s.metrics.ModelTokensUsedTotal.WithLabelValues(backend, "output").Add(float64(completion.Tokens.Output))

	answer := strings.TrimSpace(completion.Text)
	logger.Debug("query answered",
		"backend", backend,
		"duration", duration,
		"answer", answer)
	return answer, nil
}

// Namespaces lists namespace names after the configured substring filter
// and the exclusion patterns.
func (s *Service) Namespaces(ctx context.Context) ([]string, error) {
	names, err := s.kube.ListNamespaces(ctx, s.namespaceFilter)
	if err != nil {
		return nil, fmt.Errorf("query: listing namespaces: %w", err)
	}
	if s.guard == nil {
		return names, nil
	}
	out := make([]string, 0, len(names))
	for _, ns := range names {
		if s.guard.ExcludesNamespace(ns) {
			continue
		}
		out = append(out, ns)
	}
	return out, nil
}

// summarize aggregates resource listings across the given namespaces.
// Excluded namespaces are skipped; per-type list failures are logged and
// contribute nothing. The cluster gauges track the full, untruncated
// counts.
func (s *Service) summarize(ctx context.Context, namespaces []string) model.ClusterSummary {
	var summary model.ClusterSummary

	for _, ns := range namespaces {
		if s.guard != nil && s.guard.ExcludesNamespace(ns) {
			s.logger.Debug("namespace excluded from summary", "namespace", ns)
			continue
		}

		pods, err := s.kube.ListPods(ctx, ns)
		if err != nil {
			s.logger.Warn("listing pods", "namespace", ns, "error", err)
		}
		summary.Pods = append(summary.Pods, pods...)

		services, err := s.kube.ListServices(ctx, ns)
		if err != nil {
			s.logger.Warn("listing services", "namespace", ns, "error", err)
		}
		summary.Services = append(summary.Services, services...)

		secrets, err := s.kube.ListSecrets(ctx, ns)
		if err != nil {
			s.logger.Warn("listing secrets", "namespace", ns, "error", err)
		}
		summary.Secrets = append(summary.Secrets, secrets...)

		configmaps, err := s.kube.ListConfigMaps(ctx, ns)
		if err != nil {
			s.logger.Warn("listing configmaps", "namespace", ns, "error", err)
		}
		summary.ConfigMaps = append(summary.ConfigMaps, configmaps...)

		deployments, err := s.kube.ListDeployments(ctx, ns)
		if err != nil {
			s.logger.Warn("listing deployments", "namespace", ns, "error", err)
		}
		summary.Deployments = append(summary.Deployments, deployments...)
	}

	s.metrics.ClusterPods.Set(float64(len(summary.Pods)))
	s.metrics.ClusterServices.Set(float64(len(summary.Services)))
	s.metrics.ClusterDeployments.Set(float64(len(summary.Deployments)))

	s.logger.Info("cluster summary gathered",
		"pods", len(summary.Pods),
		"services", len(summary.Services),
		"deployments", len(summary.Deployments))

	return summary
}

// exceedsCap reports whether any summary list is longer than the cap.
func exceedsCap(summary model.ClusterSummary, limit int) bool {
	return len(summary.Pods) > limit ||
		len(summary.Services) > limit ||
		len(summary.Secrets) > limit ||
		len(summary.ConfigMaps) > limit ||
		len(summary.Deployments) > limit
}
