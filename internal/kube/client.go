// Package kube wraps the Kubernetes API access used by the agent. It
// exposes the narrow set of read operations the diagnostic and query paths
// need, and translates API errors into types the rest of the code can
// branch on.
package kube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client provides read access to the cluster. All methods are safe for
// concurrent use.
type Client struct {
	clientset kubernetes.Interface
	logger    *slog.Logger
}

// New creates a Client over an existing clientset. Both arguments are
// required.
func New(clientset kubernetes.Interface, logger *slog.Logger) (*Client, error) {
	if clientset == nil {
		return nil, fmt.Errorf("kube: clientset must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("kube: logger must not be nil")
	}
	return &Client{clientset: clientset, logger: logger}, nil
}

// NewForConfig builds a Client from the ambient Kubernetes environment.
// Inside a cluster it uses the mounted service account; outside it falls
// back to the kubeconfig chain: the explicit path, then $KUBECONFIG, then
// ~/.kube/config.
func NewForConfig(kubeconfigPath string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("kube: logger must not be nil")
	}

	cfg, inCluster, err := restConfig(kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("kube: building client configuration: %w", err)
	}
	if inCluster {
		logger.Info("loaded in-cluster kubernetes configuration")
	} else {
		logger.Info("loaded local kubernetes configuration")
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kube: creating clientset: %w", err)
	}
	return New(clientset, logger)
}

// restConfig resolves the rest.Config to use. The KUBERNETES_SERVICE_HOST
// environment variable marks an in-cluster deployment.
func restConfig(kubeconfigPath string) (*rest.Config, bool, error) {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		cfg, err := rest.InClusterConfig()
		return cfg, true, err
	}

	if kubeconfigPath == "" {
		kubeconfigPath = os.Getenv("KUBECONFIG")
	}
	if kubeconfigPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, false, fmt.Errorf("locating kubeconfig: %w", err)
		}
		kubeconfigPath = filepath.Join(home, ".kube", "config")
	}

	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	return cfg, false, err
}

// GetPod fetches a pod by namespace and name. A missing pod is reported as
// a NotFoundError; every other API failure is returned as-is, wrapped.
func (c *Client) GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, &NotFoundError{Resource: "pod", Namespace: namespace, Name: name}
		}
		return nil, fmt.Errorf("getting pod %s/%s: %w", namespace, name, err)
	}
	return pod, nil
}

// GetPodLogs returns the log output for a pod container. The underlying
// API error is wrapped, not replaced, so callers can still inspect its
// status code.
func (c *Client) GetPodLogs(ctx context.Context, namespace, podName, container string, tailLines *int64, previous bool) (string, error) {
	req := c.clientset.CoreV1().Pods(namespace).GetLogs(podName, &corev1.PodLogOptions{
		Container: container,
		TailLines: tailLines,
		Previous:  previous,
	})

	stream, err := req.Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("streaming logs for %s/%s container=%s: %w", namespace, podName, container, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("reading logs for %s/%s container=%s: %w", namespace, podName, container, err)
	}
	return string(data), nil
}

// ListEvents lists Kubernetes events in a namespace. Callers supply the
// field selector through opts.
func (c *Client) ListEvents(ctx context.Context, namespace string, opts metav1.ListOptions) (*corev1.EventList, error) {
	list, err := c.clientset.CoreV1().Events(namespace).List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing events in %s: %w", namespace, err)
	}
	return list, nil
}

// ListNamespaces returns the names of all namespaces in the cluster. When
// filter is non-empty, only names containing it as a substring are
// returned.
func (c *Client) ListNamespaces(ctx context.Context, filter string) ([]string, error) {
	list, err := c.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}

	names := make([]string, 0, len(list.Items))
	for _, ns := range list.Items {
		if filter != "" && !strings.Contains(ns.Name, filter) {
			continue
		}
		names = append(names, ns.Name)
	}
	return names, nil
}

// ReadSecret reads one key from a Kubernetes Secret and returns its value
// with surrounding whitespace trimmed. Empty values are an error.
func (c *Client) ReadSecret(ctx context.Context, namespace, name, key string) (string, error) {
	if namespace == "" {
		return "", fmt.Errorf("secret namespace must not be empty")
	}
	if name == "" {
		return "", fmt.Errorf("secret name must not be empty")
	}
	if key == "" {
		return "", fmt.Errorf("secret key must not be empty")
	}

	secret, err := c.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("reading secret %s/%s: %w", namespace, name, err)
	}

	value, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %s/%s", key, namespace, name)
	}

	resolved := strings.TrimSpace(string(value))
	if resolved == "" {
		return "", fmt.Errorf("key %q in secret %s/%s is empty", key, namespace, name)
	}

	c.logger.Debug("resolved secret",
		"namespace", namespace,
		"secret", name,
		"key", key,
	)

	return resolved, nil
}
