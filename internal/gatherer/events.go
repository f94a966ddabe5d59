package gatherer

import (
	"context"
	"fmt"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

// gatherEvents lists the events referencing the pod and keeps those inside
// the recency window, newest first.
func (g *Gatherer) gatherEvents(ctx context.Context, namespace, podName string) ([]model.Event, error) {
	opts := metav1.ListOptions{
		FieldSelector: fmt.Sprintf("involvedObject.name=%s,involvedObject.kind=Pod", podName),
	}
	list, err := g.client.ListEvents(ctx, namespace, opts)
	if err != nil {
		return nil, fmt.Errorf("listing events for pod %s/%s: %w", namespace, podName, err)
	}

	cutoff := g.now().Add(-g.eventWindow)
	events := make([]model.Event, 0, len(list.Items))
	for _, e := range list.Items {
		ts := eventTimestamp(e)
		if ts.IsZero() || !ts.After(cutoff) {
			continue
		}
		events = append(events, model.Event{
			Timestamp: ts,
			Type:      e.Type,
			Reason:    e.Reason,
			Message:   e.Message,
			Count:     e.Count,
			Source:    e.Source.Component,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events, nil
}

// eventTimestamp picks the most recent timestamp an event carries: the
// legacy LastTimestamp when set, then the newer EventTime, then
// FirstTimestamp.
func eventTimestamp(e corev1.Event) time.Time {
	if !e.LastTimestamp.IsZero() {
		return e.LastTimestamp.Time
	}
	if !e.EventTime.IsZero() {
		return e.EventTime.Time
	}
	return e.FirstTimestamp.Time
}
