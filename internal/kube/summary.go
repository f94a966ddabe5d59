package kube

import (
	"context"
	"fmt"
	"sort"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

// ListPods summarizes the pods in a namespace: name, phase, node, and the
// declared containers with their exposed ports.
func (c *Client) ListPods(ctx context.Context, namespace string) ([]model.PodInfo, error) {
	list, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pods in %s: %w", namespace, err)
	}

	pods := make([]model.PodInfo, 0, len(list.Items))
	for _, pod := range list.Items {
		info := model.PodInfo{
			Name:       pod.Name,
			Namespace:  pod.Namespace,
			Status:     string(pod.Status.Phase),
			Node:       pod.Spec.NodeName,
			Containers: make([]model.ContainerInfo, 0, len(pod.Spec.Containers)),
		}
		for _, container := range pod.Spec.Containers {
			ci := model.ContainerInfo{
				Name:  container.Name,
				Image: container.Image,
			}
			for _, p := range container.Ports {
				ci.Ports = append(ci.Ports, model.PortInfo{
					ContainerPort: p.ContainerPort,
					Protocol:      string(p.Protocol),
				})
			}
			info.Containers = append(info.Containers, ci)
		}
		pods = append(pods, info)
	}
	return pods, nil
}

// ListServices summarizes the services in a namespace.
func (c *Client) ListServices(ctx context.Context, namespace string) ([]model.ServiceInfo, error) {
	list, err := c.clientset.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing services in %s: %w", namespace, err)
	}

	services := make([]model.ServiceInfo, 0, len(list.Items))
	for _, svc := range list.Items {
		info := model.ServiceInfo{
			Name:      svc.Name,
			Namespace: svc.Namespace,
			Type:      string(svc.Spec.Type),
			ClusterIP: svc.Spec.ClusterIP,
		}
		for _, p := range svc.Spec.Ports {
			info.Ports = append(info.Ports, model.ServicePortInfo{
				Port:       p.Port,
				TargetPort: p.TargetPort.String(),
				Protocol:   string(p.Protocol),
				Name:       p.Name,
			})
		}
		services = append(services, info)
	}
	return services, nil
}

// ListSecrets summarizes the secrets in a namespace by name and type.
// Secret data is never read on this path.
func (c *Client) ListSecrets(ctx context.Context, namespace string) ([]model.SecretInfo, error) {
	list, err := c.clientset.CoreV1().Secrets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing secrets in %s: %w", namespace, err)
	}

	secrets := make([]model.SecretInfo, 0, len(list.Items))
	for _, secret := range list.Items {
		secrets = append(secrets, model.SecretInfo{
			Name:      secret.Name,
			Namespace: secret.Namespace,
			Type:      string(secret.Type),
		})
	}
	return secrets, nil
}

// ListConfigMaps summarizes the configmaps in a namespace by name and data
// keys. Keys are sorted for deterministic output.
func (c *Client) ListConfigMaps(ctx context.Context, namespace string) ([]model.ConfigMapInfo, error) {
	list, err := c.clientset.CoreV1().ConfigMaps(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing configmaps in %s: %w", namespace, err)
	}

	configmaps := make([]model.ConfigMapInfo, 0, len(list.Items))
	for _, cm := range list.Items {
		keys := make([]string, 0, len(cm.Data))
		for k := range cm.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		configmaps = append(configmaps, model.ConfigMapInfo{
			Name:      cm.Name,
			Namespace: cm.Namespace,
			DataKeys:  keys,
		})
	}
	return configmaps, nil
}

// ListDeployments summarizes the deployments in a namespace with their
// desired and available replica counts.
func (c *Client) ListDeployments(ctx context.Context, namespace string) ([]model.DeploymentInfo, error) {
	list, err := c.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing deployments in %s: %w", namespace, err)
	}

	deployments := make([]model.DeploymentInfo, 0, len(list.Items))
	for _, dep := range list.Items {
		var replicas int32
		if dep.Spec.Replicas != nil {
			replicas = *dep.Spec.Replicas
		}
		deployments = append(deployments, model.DeploymentInfo{
			Name:              dep.Name,
			Namespace:         dep.Namespace,
			Replicas:          replicas,
			AvailableReplicas: dep.Status.AvailableReplicas,
		})
	}
	return deployments, nil
}
