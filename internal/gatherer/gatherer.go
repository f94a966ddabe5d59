// Package gatherer collects the cluster-side evidence for a pod diagnosis:
// the pod object itself, recent events, and container logs. The result is a
// model.PodSnapshot consumed by the pattern classifier and the prompt
// builder.
//
// The pod read is the gating step: if it fails, no snapshot is produced.
// Events and logs are supplementary and are fetched concurrently once the
// pod is in hand; their failures degrade the snapshot instead of aborting
// it (events fall back to empty, logs to inline placeholder text).
//
// An optional guard engine refuses excluded pods before evidence is
// gathered: the namespace check runs before the pod read, rule evaluation
// right after it. Refusals surface as *filter.ExcludedError.
package gatherer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/filter"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/redact"
)

const (
	// defaultEventWindow bounds how far back pod events are considered.
	defaultEventWindow = 30 * time.Minute

	// defaultTailLines bounds how many log lines are fetched per container.
	defaultTailLines = int64(100)
)

// KubeClient is the subset of the Kubernetes client needed for gathering.
type KubeClient interface {
	GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error)
	GetPodLogs(ctx context.Context, namespace, podName, container string, tailLines *int64, previous bool) (string, error)
	ListEvents(ctx context.Context, namespace string, opts metav1.ListOptions) (*corev1.EventList, error)
}

// Gatherer assembles pod snapshots from live cluster state.
type Gatherer struct {
	client      KubeClient
	guard       *filter.Engine
	redactor    *redact.Redactor
	logger      *slog.Logger
	eventWindow time.Duration
	tailLines   int64

	// now is overridable in tests.
	now func() time.Time
}

// Option configures a Gatherer.
type Option func(*Gatherer)

// WithEventWindow sets how far back events are considered. Values <= 0
// keep the default.
func WithEventWindow(d time.Duration) Option {
	return func(g *Gatherer) {
		if d > 0 {
			g.eventWindow = d
		}
	}
}

// WithTailLines sets how many log lines are fetched per container. Values
// <= 0 keep the default.
func WithTailLines(n int64) Option {
	return func(g *Gatherer) {
		if n > 0 {
			g.tailLines = n
		}
	}
}

// WithGuard sets the guardrail engine consulted before gathering. A nil
// guard disables the check.
func WithGuard(guard *filter.Engine) Option {
	return func(g *Gatherer) {
		g.guard = guard
	}
}

// New creates a Gatherer. The redactor may be nil, in which case gathered
// text passes through unredacted.
func New(client KubeClient, redactor *redact.Redactor, logger *slog.Logger, opts ...Option) (*Gatherer, error) {
	if client == nil {
		return nil, fmt.Errorf("gatherer: kubernetes client must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gatherer{
		client:      client,
		redactor:    redactor,
		logger:      logger,
		eventWindow: defaultEventWindow,
		tailLines:   defaultTailLines,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Snapshot fetches the pod and assembles its diagnostic snapshot. The error
// from the pod read is returned wrapped, so callers can still detect
// not-found conditions. A guard refusal returns a *filter.ExcludedError
// before any further cluster calls. Events and logs never fail the snapshot.
func (g *Gatherer) Snapshot(ctx context.Context, namespace, name string) (*model.PodSnapshot, error) {
	if g.guard != nil && g.guard.ExcludesNamespace(namespace) {
		return nil, &filter.ExcludedError{
			Namespace: namespace,
			Verdict:   filter.Verdict{Excluded: true, Reason: filter.ReasonNamespaceExcluded},
		}
	}

	pod, err := g.client.GetPod(ctx, namespace, name)
	if err != nil {
		return nil, fmt.Errorf("gathering pod %s/%s: %w", namespace, name, err)
	}

	if g.guard != nil {
		if verdict := g.guard.EvaluatePod(pod); verdict.Excluded {
			return nil, &filter.ExcludedError{Namespace: namespace, Verdict: verdict}
		}
	}

	snap := g.convertPod(pod)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		events, err := g.gatherEvents(egCtx, namespace, name)
		if err != nil {
			g.logger.Warn("listing pod events failed",
				"namespace", namespace,
				"pod", name,
				"error", err)
			events = []model.Event{}
		}
		snap.Events = events
		return nil
	})

	eg.Go(func() error {
		if len(snap.ContainerStatuses) == 0 {
			return nil
		}
		// Logs come from the first container; previous-instance logs are
		// only requested when that container has restarted.
		cs := snap.ContainerStatuses[0]
		snap.CurrentLogs = g.gatherLogs(egCtx, namespace, name, cs.Name, false)
		if cs.RestartCount > 0 {
			snap.PreviousLogs = g.gatherLogs(egCtx, namespace, name, cs.Name, true)
		}
		return nil
	})

	// The goroutines above always return nil; Wait only synchronizes.
	_ = eg.Wait()

	g.logger.Debug("gathered pod snapshot",
		"namespace", namespace,
		"pod", name,
		"containers", len(snap.ContainerStatuses),
		"events", len(snap.Events))

	return snap, nil
}
