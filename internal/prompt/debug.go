package prompt

import (
	"fmt"
	"strings"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

const (
	// maxLogChars bounds each log block rendered into the debug prompt.
	maxLogChars = 2000

	// maxEvents bounds how many recent events are rendered.
	maxEvents = 10

	noPreviousLogs = "No previous logs available"
	noCurrentLogs  = "No current logs available"
)

// debugTaskAndContract is the fixed tail of the debug prompt: the task
// list and the JSON output contract the response normalizer expects.
const debugTaskAndContract = `TASK:
1. Identify the root cause of the issue
2. Explain what's happening in simple terms
3. Provide 3-5 specific, actionable fixes with exact kubectl commands

FORMAT YOUR RESPONSE AS JSON:
{
  "root_cause": "Brief description of the root cause",
  "explanation": "Clear explanation of what's happening",
  "likely_causes": ["cause 1", "cause 2", "cause 3"],
  "suggested_fixes": [
    {
      "action": "What to do",
      "command": "exact kubectl command",
      "why": "Why this might fix it"
    }
  ],
  "severity": "critical|high|medium|low",
  "quick_fix_available": true|false
}

Be specific, actionable, and practical. Focus on commands a developer can run RIGHT NOW.`

// BuildDebugPrompt renders the user prompt for a pod diagnosis: pod
// identity, container statuses and detected patterns as JSON, the ten most
// recent events, and both log streams truncated to 2000 characters each.
// Empty log streams render as an explicit placeholder.
func BuildDebugPrompt(snap *model.PodSnapshot, patterns *model.PatternResult) string {
	if snap == nil {
		snap = &model.PodSnapshot{}
	}
	if patterns == nil {
		patterns = model.NewPatternResult()
	}

	statuses := snap.ContainerStatuses
	if statuses == nil {
		statuses = []model.ContainerStatus{}
	}

	events := snap.Events
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}
	if events == nil {
		events = []model.Event{}
	}

	var sb strings.Builder
	sb.WriteString("You are a Kubernetes debugging expert. Analyze this crashed/failing pod and provide actionable fixes.\n\n")

	sb.WriteString("POD INFORMATION:\n")
	fmt.Fprintf(&sb, "- Name: %s\n", snap.Name)
	fmt.Fprintf(&sb, "- Namespace: %s\n", snap.Namespace)
	fmt.Fprintf(&sb, "- Phase: %s\n", snap.Phase)
	fmt.Fprintf(&sb, "- Node: %s\n\n", snap.Node)

	sb.WriteString("CONTAINER STATUSES:\n")
	sb.WriteString(jsonIndent(statuses))
	sb.WriteString("\n\n")

	sb.WriteString("DETECTED PATTERNS:\n")
	sb.WriteString(jsonIndent(patterns))
	sb.WriteString("\n\n")

	sb.WriteString("RECENT EVENTS (last 30 minutes):\n")
	sb.WriteString(jsonIndent(events))
	sb.WriteString("\n\n")

	sb.WriteString("PREVIOUS CONTAINER LOGS (from crash):\n")
	writeLogBlock(&sb, snap.PreviousLogs, noPreviousLogs)

	sb.WriteString("CURRENT LOGS:\n")
	writeLogBlock(&sb, snap.CurrentLogs, noCurrentLogs)

	sb.WriteString(debugTaskAndContract)
	return sb.String()
}

// writeLogBlock renders one fenced log section, truncated, with a
// placeholder when the stream is empty.
func writeLogBlock(sb *strings.Builder, text, placeholder string) {
	if text == "" {
		text = placeholder
	}
	fmt.Fprintf(sb, "```\n%s\n```\n\n", truncate(text, maxLogChars))
}
