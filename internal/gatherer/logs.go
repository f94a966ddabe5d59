package gatherer

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Placeholder text returned in place of logs when the log endpoint fails.
// The placeholders flow into prompts and pattern matching as ordinary log
// text, so the diagnosis degrades instead of aborting.
const (
	logsNotFound   = "Pod or container not found"
	logsNoPrevious = "No previous container instance available"
)

// gatherLogs fetches one container log stream, mapping fetch failures to
// inline placeholder text.
func (g *Gatherer) gatherLogs(ctx context.Context, namespace, podName, container string, previous bool) string {
	text, err := g.client.GetPodLogs(ctx, namespace, podName, container, &g.tailLines, previous)
	if err != nil {
		switch {
		case apierrors.IsNotFound(err):
			g.logger.Debug("pod logs unavailable",
				"namespace", namespace,
				"pod", podName,
				"container", container,
				"previous", previous)
			return logsNotFound
		case previous && apierrors.IsBadRequest(err):
			// Requesting the previous instance of a container that never
			// restarted is rejected with 400.
			g.logger.Debug("no previous container instance",
				"namespace", namespace,
				"pod", podName,
				"container", container)
			return logsNoPrevious
		default:
			g.logger.Warn("fetching pod logs failed",
				"namespace", namespace,
				"pod", podName,
				"container", container,
				"previous", previous,
				"error", err)
			return fmt.Sprintf("Error fetching logs: %s", logFailureReason(err))
		}
	}
	if g.redactor != nil {
		text = g.redactor.Redact(text)
	}
	return text
}

// logFailureReason extracts the API status reason when one is available,
// falling back to the error text.
func logFailureReason(err error) string {
	if reason := apierrors.ReasonForError(err); reason != metav1.StatusReasonUnknown {
		return string(reason)
	}
	return err.Error()
}
