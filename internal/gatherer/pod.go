package gatherer

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

// convertPod projects the live pod object onto the snapshot shape consumed
// by the classifier and the prompt builder.
func (g *Gatherer) convertPod(pod *corev1.Pod) *model.PodSnapshot {
	snap := &model.PodSnapshot{
		Name:          pod.Name,
		Namespace:     pod.Namespace,
		Phase:         string(pod.Status.Phase),
		Node:          pod.Spec.NodeName,
		RestartPolicy: string(pod.Spec.RestartPolicy),
	}

	snap.ContainerStatuses = make([]model.ContainerStatus, 0, len(pod.Status.ContainerStatuses))
	for _, cs := range pod.Status.ContainerStatuses {
		snap.ContainerStatuses = append(snap.ContainerStatuses, model.ContainerStatus{
			Name:         cs.Name,
			Ready:        cs.Ready,
			RestartCount: cs.RestartCount,
			Image:        cs.Image,
			State:        convertState(cs.State),
			LastState:    convertState(cs.LastTerminationState),
		})
	}

	for _, c := range pod.Status.Conditions {
		snap.Conditions = append(snap.Conditions, model.PodCondition{
			Type:    string(c.Type),
			Status:  string(c.Status),
			Reason:  c.Reason,
			Message: c.Message,
		})
	}

	for _, container := range pod.Spec.Containers {
		for _, env := range container.Env {
			snap.Environment = append(snap.Environment, model.EnvVar{
				Name:  env.Name,
				Value: g.envValue(env),
			})
		}
	}

	if len(pod.Spec.Containers) > 0 {
		snap.Resources = make(map[string]model.ContainerResources, len(pod.Spec.Containers))
		for _, container := range pod.Spec.Containers {
			snap.Resources[container.Name] = model.ContainerResources{
				Requests: quantityStrings(container.Resources.Requests),
				Limits:   quantityStrings(container.Resources.Limits),
			}
		}
	}

	return snap
}

// envValue resolves the snapshot value for a container env var. Values
// sourced from secrets or config maps arrive empty and are replaced with a
// placeholder; literal values still pass through the redactor so inlined
// credentials never reach a prompt.
func (g *Gatherer) envValue(env corev1.EnvVar) string {
	if env.Value == "" {
		return model.EnvValuePlaceholder
	}
	if g.redactor != nil {
		return g.redactor.Redact(env.Value)
	}
	return env.Value
}

// convertState maps the container state union onto the snapshot equivalent,
// keeping whichever waiting/running/terminated branch is set.
func convertState(state corev1.ContainerState) model.ContainerState {
	var out model.ContainerState
	switch {
	case state.Waiting != nil:
		out.Waiting = &model.StateWaiting{
			Reason:  state.Waiting.Reason,
			Message: state.Waiting.Message,
		}
	case state.Running != nil:
		out.Running = &model.StateRunning{
			StartedAt: state.Running.StartedAt.Time,
		}
	case state.Terminated != nil:
		out.Terminated = &model.StateTerminated{
			ExitCode:   state.Terminated.ExitCode,
			Reason:     state.Terminated.Reason,
			Message:    state.Terminated.Message,
			StartedAt:  state.Terminated.StartedAt.Time,
			FinishedAt: state.Terminated.FinishedAt.Time,
		}
	}
	return out
}

// quantityStrings renders a resource list as plain quantity strings, e.g.
// {"cpu": "100m", "memory": "128Mi"}.
func quantityStrings(rl corev1.ResourceList) map[string]string {
	if len(rl) == 0 {
		return nil
	}
	out := make(map[string]string, len(rl))
	for name, qty := range rl {
		out[string(name)] = qty.String()
	}
	return out
}
