package diagnose

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

// modelReply mirrors the JSON object the analysis prompt instructs the
// model to return. Unknown keys in the reply are ignored.
type modelReply struct {
	RootCause         string               `json:"root_cause"`
	Explanation       string               `json:"explanation"`
	LikelyCauses      []string             `json:"likely_causes"`
	SuggestedFixes    []model.SuggestedFix `json:"suggested_fixes"`
	Severity          string               `json:"severity"`
	QuickFixAvailable bool                 `json:"quick_fix_available"`
}

// parseModelReply strips an optional wrapping code fence and parses the
// reply into its structured form.
func parseModelReply(raw string) (*modelReply, error) {
	text := stripLeadingFence(raw)
	var reply modelReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return nil, fmt.Errorf("parsing model reply: %w", err)
	}
	return &reply, nil
}

// stripLeadingFence removes a single wrapping code fence, language-tagged
// ("```json") or bare ("```"), from around the reply. Replies without a
// leading fence pass through unchanged.
func stripLeadingFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[3:]

	// A language tag sits between the fence and the first newline. Leave
	// the line alone if it already contains payload.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		tag := strings.TrimSpace(s[:i])
		if tag != "" && !strings.ContainsAny(tag, "{[") {
			s = s[i+1:]
		}
	}

	s = strings.TrimSpace(s)
	if cut, ok := strings.CutSuffix(s, "```"); ok {
		s = cut
	}
	return strings.TrimSpace(s)
}

// issueTypeOrUnknown renders the classifier's issue type, with the fixed
// "Unknown" tag when no rule assigned one.
func issueTypeOrUnknown(patterns *model.PatternResult) string {
	if patterns.IssueType == "" {
		return "Unknown"
	}
	return patterns.IssueType
}

// mergeResult combines classifier output with the model's reply, applying
// field-level defaults so a partially-conformant reply never produces
// missing fields. The issue type, detected patterns, and confidence always
// come from the classifier; the model never overrides them.
func mergeResult(podName, namespace string, patterns *model.PatternResult, reply *modelReply, backend string) *model.DiagnosticResult {
	rootCause := reply.RootCause
	if rootCause == "" {
		rootCause = "Unable to determine"
	}

	likelyCauses := reply.LikelyCauses
	if likelyCauses == nil {
		likelyCauses = []string{}
	}

	fixes := reply.SuggestedFixes
	if fixes == nil {
		fixes = []model.SuggestedFix{}
	}

	severity := model.Severity(strings.ToLower(reply.Severity))
	if !severity.IsValid() {
		severity = model.SeverityMedium
	}

	return &model.DiagnosticResult{
		PodName:           podName,
		Namespace:         namespace,
		Success:           true,
		IssueType:         issueTypeOrUnknown(patterns),
		RootCause:         rootCause,
		Explanation:       reply.Explanation,
		DetectedPatterns:  patterns.DetectedIssues,
		LikelyCauses:      likelyCauses,
		SuggestedFixes:    fixes,
		Severity:          severity,
		QuickFixAvailable: reply.QuickFixAvailable,
		Confidence:        patterns.Confidence,
		ModelBackend:      backend,
	}
}
