package diagnose

import (
	"fmt"
	"strings"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

// FallbackBackend marks results synthesized from pattern detection alone,
// without a model reply.
const FallbackBackend = "pattern-fallback"

// fallbackResult synthesizes a DiagnosticResult from classifier output
// alone. It is used when the model call or the reply parse fails; the
// request still succeeds, with a fixed root cause naming the degradation
// and generic diagnostic steps templated with the pod identity.
func fallbackResult(podName, namespace string, patterns *model.PatternResult) *model.DiagnosticResult {
	issues := patterns.DetectedIssues
	if len(issues) == 0 {
		issues = []string{"No specific issues detected"}
	}

	confidence := patterns.Confidence
	if confidence == model.ConfidenceUnknown {
		confidence = model.ConfidenceLow
	}

	return &model.DiagnosticResult{
		PodName:          podName,
		Namespace:        namespace,
		Success:          true,
		IssueType:        issueTypeOrUnknown(patterns),
		RootCause:        "AI analysis unavailable - using pattern detection",
		Explanation:      "Detected issues: " + strings.Join(issues, ", "),
		DetectedPatterns: patterns.DetectedIssues,
		LikelyCauses: []string{
			"Check container logs for error messages",
			"Verify resource limits and requests",
			"Check for configuration issues",
		},
		SuggestedFixes: []model.SuggestedFix{
			{
				Action:  "View pod details",
				Command: fmt.Sprintf("kubectl describe pod %s -n %s", podName, namespace),
				Why:     "Get comprehensive pod status and events",
			},
			{
				Action:  "Check container logs",
				Command: fmt.Sprintf("kubectl logs %s -n %s --tail=50", podName, namespace),
				Why:     "View application logs for errors",
			},
			{
				Action:  "Check previous logs if crashed",
				Command: fmt.Sprintf("kubectl logs %s -n %s --previous", podName, namespace),
				Why:     "See logs from before the crash",
			},
		},
		Severity:          model.SeverityMedium,
		QuickFixAvailable: false,
		Confidence:        confidence,
		ModelBackend:      FallbackBackend,
	}
}
