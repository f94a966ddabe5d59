package model

// PortInfo is one exposed container port.
type PortInfo struct {
	ContainerPort int32  `json:"container_port"`
	Protocol      string `json:"protocol,omitempty"`
}

// ContainerInfo summarizes one container declared on a pod.
type ContainerInfo struct {
	Name  string     `json:"name"`
	Image string     `json:"image"`
	Ports []PortInfo `json:"ports,omitempty"`
}

// PodInfo summarizes one pod for the cluster query path.
type PodInfo struct {
	Name       string          `json:"name"`
	Namespace  string          `json:"namespace"`
	Status     string          `json:"status"`
	Node       string          `json:"node,omitempty"`
	Containers []ContainerInfo `json:"containers"`
}

// ServicePortInfo is one port exposed by a service.
type ServicePortInfo struct {
	Port       int32  `json:"port"`
	TargetPort string `json:"target_port,omitempty"`
	Protocol   string `json:"protocol,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ServiceInfo summarizes one service.
type ServiceInfo struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace"`
	Type      string            `json:"type"`
	ClusterIP string            `json:"cluster_ip,omitempty"`
	Ports     []ServicePortInfo `json:"ports,omitempty"`
}

// SecretInfo summarizes one secret. Only metadata is ever listed; secret
// values never leave the cluster adapter.
type SecretInfo struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Type      string `json:"type,omitempty"`
}

// ConfigMapInfo summarizes one configmap by name and data keys.
type ConfigMapInfo struct {
	Name      string   `json:"name"`
	Namespace string   `json:"namespace"`
	DataKeys  []string `json:"data_keys"`
}

// DeploymentInfo summarizes one deployment.
type DeploymentInfo struct {
	Name              string `json:"name"`
	Namespace         string `json:"namespace"`
	Replicas          int32  `json:"replicas"`
	AvailableReplicas int32  `json:"available_replicas"`
}

// ClusterSummary aggregates resource listings across the requested
// namespaces. It is the context handed to the model for natural-language
// cluster queries.
type ClusterSummary struct {
	Pods        []PodInfo        `json:"pods"`
	Services    []ServiceInfo    `json:"services"`
	Secrets     []SecretInfo     `json:"secrets"`
	ConfigMaps  []ConfigMapInfo  `json:"configmaps"`
	Deployments []DeploymentInfo `json:"deployments"`
}

// Truncated returns a copy of the summary with each resource list capped at
// maxPerType entries. A non-positive cap returns the summary unchanged.
// Keeping the prompt bounded matters more than completeness for large
// clusters.
func (s ClusterSummary) Truncated(maxPerType int) ClusterSummary {
	if maxPerType <= 0 {
		return s
	}
	out := s
	if len(out.Pods) > maxPerType {
		out.Pods = out.Pods[:maxPerType]
	}
	if len(out.Services) > maxPerType {
		out.Services = out.Services[:maxPerType]
	}
	if len(out.Secrets) > maxPerType {
		out.Secrets = out.Secrets[:maxPerType]
	}
	if len(out.ConfigMaps) > maxPerType {
		out.ConfigMaps = out.ConfigMaps[:maxPerType]
	}
	if len(out.Deployments) > maxPerType {
		out.Deployments = out.Deployments[:maxPerType]
	}
	return out
}

// QueryResult is the response to one natural-language cluster query.
type QueryResult struct {
	Query            string  `json:"query"`
	Answer           string  `json:"answer"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}
