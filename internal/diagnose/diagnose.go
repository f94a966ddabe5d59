// Package diagnose orchestrates the pod diagnostic pipeline:
//
//	Gather → Classify → Prompt → Invoke → Parse → Merge
//
// Each request runs the stages sequentially and each external call happens
// at most once — nothing is retried. A missing pod short-circuits to a
// failed result; any other cluster failure aborts the request. A model
// transport or parse failure never fails the request: the result degrades
// to a deterministic pattern-based response instead.
package diagnose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/classifier"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/filter"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/kube"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/llm"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/metrics"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/prompt"
)

const (
	// defaultTemperature keeps analysis replies consistent across runs.
	defaultTemperature = 0.3

	// defaultMaxTokens caps the model's analysis reply.
	defaultMaxTokens = 2000
)

// SnapshotGatherer collects the cluster-side signals for one pod.
// *gatherer.Gatherer satisfies it.
type SnapshotGatherer interface {
	Snapshot(ctx context.Context, namespace, name string) (*model.PodSnapshot, error)
}

// Orchestrator runs the diagnostic pipeline for one pod at a time. It holds
// no per-request state; concurrent Debug calls are independent.
type Orchestrator struct {
	gatherer    SnapshotGatherer
	client      llm.Client
	metrics     *metrics.Metrics
	logger      *slog.Logger
	temperature float64
	maxTokens   int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTemperature sets the sampling temperature for the analysis call.
// Negative values keep the default.
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) {
		if t >= 0 {
			o.temperature = t
		}
	}
}

// WithMaxTokens caps the model's analysis reply length. Values <= 0 keep
// the default.
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// New creates an Orchestrator.
func New(g SnapshotGatherer, client llm.Client, m *metrics.Metrics, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if g == nil {
		return nil, fmt.Errorf("diagnose: gatherer must not be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("diagnose: model client must not be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("diagnose: metrics must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		gatherer:    g,
		client:      client,
		metrics:     m,
		logger:      logger,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Debug runs the full diagnostic pipeline for the named pod. A missing pod
// yields a result with Success=false and a nil error; a guardrail refusal
// surfaces as a *filter.ExcludedError for the caller to map; any other
// cluster failure returns a non-nil error. Model failures are absorbed into
// a pattern-based fallback result. The caller measures end-to-end time and
// fills in ProcessingTimeMs.
func (o *Orchestrator) Debug(ctx context.Context, podName, namespace string) (*model.DiagnosticResult, error) {
	if namespace == "" {
		namespace = "default"
	}
	logger := o.logger.With("pod", podName, "namespace", namespace)
	logger.Info("starting pod diagnosis")

	snap, err := o.gatherer.Snapshot(ctx, namespace, podName)
	if err != nil {
		if kube.IsNotFound(err) {
			o.metrics.ErrorsTotal.WithLabelValues("not_found").Inc()
			logger.Info("pod not found")
			return model.NewFailedResult(podName, namespace,
				fmt.Sprintf("Pod '%s' not found in namespace '%s'", podName, namespace)), nil
		}
		// A guardrail refusal is policy, not a cluster failure; pass it
		// through untouched so the caller can tell the two apart.
		var excluded *filter.ExcludedError
		if errors.As(err, &excluded) {
			logger.Info("pod excluded from diagnostics", "reason", excluded.Error())
			return nil, fmt.Errorf("diagnose: %w", err)
		}
		o.metrics.ErrorsTotal.WithLabelValues("transient_fetch").Inc()
		return nil, fmt.Errorf("diagnose: %w", err)
	}

	patterns := classifier.Classify(snap)
	logger.Debug("classified pod signals",
		"issue_type", patterns.IssueType,
		"confidence", patterns.Confidence,
		"detected_issues", len(patterns.DetectedIssues))

	userPrompt := prompt.BuildDebugPrompt(snap, patterns)
	logger.Debug("built analysis prompt", "bytes", len(userPrompt))

	result := o.analyze(ctx, logger, podName, namespace, patterns, userPrompt)

	issueLabel := patterns.IssueType
	if issueLabel == "" {
		issueLabel = "none"
	}
	o.metrics.DebugRequestsTotal.WithLabelValues(issueLabel).Inc()

	logger.Info("pod diagnosis complete",
		"issue_type", result.IssueType,
		"severity", result.Severity,
		"confidence", result.Confidence,
		"model_backend", result.ModelBackend)
	return result, nil
}

// analyze invokes the model once and merges its reply with the classifier
// output. Transport and parse failures both degrade to the pattern-based
// fallback result.
func (o *Orchestrator) analyze(ctx context.Context, logger *slog.Logger, podName, namespace string, patterns *model.PatternResult, userPrompt string) *model.DiagnosticResult {
	req := llm.Request{
		System:      prompt.DebugSystemPrompt,
		User:        userPrompt,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}

	backend := o.client.Name()
	start := time.Now()
	completion, err := o.client.Complete(ctx, req)
	duration := time.Since(start)
	o.metrics.ModelRequestDuration.Observe(duration.Seconds())

	if err != nil {
		o.metrics.ModelRequestsTotal.WithLabelValues(backend, "error").Inc()
		logger.Error("model invocation failed, using pattern fallback",
			"backend", backend,
			"duration", duration,
			"error", err)
		return fallbackResult(podName, namespace, patterns)
	}

	o.metrics.ModelRequestsTotal.WithLabelValues(backend, "success").Inc()
	o.metrics.ModelTokensUsedTotal.WithLabelValues(backend, "input").Add(float64(completion.Tokens.Input))
	o.metrics.ModelTokensUsedTotal.WithLabelValues(backend, "output").Add(float64(completion.Tokens.Output))

	reply, err := parseModelReply(completion.Text)
	if err != nil {
		logger.Warn("model reply was not parseable, using pattern fallback",
			"backend", backend,
			"error", err)
		return fallbackResult(podName, namespace, patterns)
	}

	logger.Info("model analysis complete",
		"backend", backend,
		"duration", duration,
		"input_tokens", completion.Tokens.Input,
		"output_tokens", completion.Tokens.Output)

	return mergeResult(podName, namespace, patterns, reply, backend)
}
