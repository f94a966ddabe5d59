package prompt

import (
	"strings"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

// queryGuidelines is the fixed instruction tail of the query prompt. The
// guidelines keep answers terse enough to compare against cluster state in
// tests and scripts.
const queryGuidelines = `Response Guidelines:
1. Provide direct, concise answers
2. Use exact values from the cluster data
3. For counts, return only the number
4. For lists, use comma-separated values without spaces
5. If information is not available, respond with "Information not available"
6. Focus on factual information from the data provided
7. Do not make assumptions about data not present

Examples:
- "How many pods are running?" → "5"
- "What deployments exist?" → "nginx,mongodb,prometheus"
- "What is the status of pod X?" → "Running" or "Information not available"`

// BuildQuerySystemPrompt renders the system prompt for a cluster question,
// embedding the summary as indented JSON. Callers bound the summary with
// ClusterSummary.Truncated before rendering.
func BuildQuerySystemPrompt(summary model.ClusterSummary) string {
	if summary.Pods == nil {
		summary.Pods = []model.PodInfo{}
	}
	if summary.Services == nil {
		summary.Services = []model.ServiceInfo{}
	}
	if summary.Secrets == nil {
		summary.Secrets = []model.SecretInfo{}
	}
	if summary.ConfigMaps == nil {
		summary.ConfigMaps = []model.ConfigMapInfo{}
	}
	if summary.Deployments == nil {
		summary.Deployments = []model.DeploymentInfo{}
	}

	var sb strings.Builder
	sb.WriteString("You are a Kubernetes cluster assistant. Analyze the provided cluster information and answer questions concisely and accurately.\n\n")
	sb.WriteString("Cluster Information:\n")
	sb.WriteString(jsonIndent(summary))
	sb.WriteString("\n\n")
	sb.WriteString(queryGuidelines)
	sb.WriteString("\n")
	return sb.String()
}
