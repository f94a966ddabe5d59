// Package model defines the core data types that flow through the diagnostic
// pipeline: PodSnapshot, PatternResult, DiagnosticResult, and their
// supporting types.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Severity represents the severity level assigned to a diagnostic result.
type Severity string

const (
	// SeverityCritical indicates an issue requiring immediate attention.
	SeverityCritical Severity = "critical"
	// SeverityHigh indicates a serious issue that should be fixed promptly.
	SeverityHigh Severity = "high"
	// SeverityMedium indicates a moderate issue.
	SeverityMedium Severity = "medium"
	// SeverityLow indicates a minor issue.
	SeverityLow Severity = "low"
)

// ValidSeverities is the set of all valid Severity values.
var ValidSeverities = map[Severity]bool{
	SeverityCritical: true,
	SeverityHigh:     true,
	SeverityMedium:   true,
	SeverityLow:      true,
}

// IsValid reports whether s is a recognized severity value.
func (s Severity) IsValid() bool {
	return ValidSeverities[s]
}

// Confidence represents how confident the pattern classifier is in its
// classification. It only ever strengthens within a single classification
// pass.
type Confidence string

const (
	// ConfidenceUnknown means no rule fired.
	ConfidenceUnknown Confidence = "unknown"
	// ConfidenceLow means only weak signals were found.
	ConfidenceLow Confidence = "low"
	// ConfidenceMedium means an indirect signal matched (e.g., an exit code).
	ConfidenceMedium Confidence = "medium"
	// ConfidenceHigh means a direct cluster-reported signal matched.
	ConfidenceHigh Confidence = "high"
)

// confidenceRank returns a numeric rank for confidence comparison.
// Higher rank means stronger confidence.
func confidenceRank(c Confidence) int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// StateRunning describes a container that is currently running.
type StateRunning struct {
	StartedAt time.Time `json:"started_at,omitempty"`
}

// StateWaiting describes a container waiting to start, with the
// cluster-reported reason (e.g., "CrashLoopBackOff", "ImagePullBackOff").
type StateWaiting struct {
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// StateTerminated describes a container that has exited.
type StateTerminated struct {
	ExitCode   int32     `json:"exit_code"`
	Reason     string    `json:"reason,omitempty"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// ContainerState is a tagged union over the cluster-reported container
// sub-states. At most one field is non-nil; all nil means the state is
// unknown.
type ContainerState struct {
	Running    *StateRunning    `json:"running,omitempty"`
	Waiting    *StateWaiting    `json:"waiting,omitempty"`
	Terminated *StateTerminated `json:"terminated,omitempty"`
}

// Kind returns the active tag: "running", "waiting", "terminated", or
// "unknown" when no sub-state was reported.
func (s ContainerState) Kind() string {
	switch {
	case s.Running != nil:
		return "running"
	case s.Waiting != nil:
		return "waiting"
	case s.Terminated != nil:
		return "terminated"
	default:
		return "unknown"
	}
}

// ContainerStatus holds the observed status of one container in the pod,
// in cluster-reported container order.
type ContainerStatus struct {
	Name         string         `json:"name"`
	Ready        bool           `json:"ready"`
	RestartCount int32          `json:"restart_count"`
	Image        string         `json:"image"`
	State        ContainerState `json:"state"`
	// LastState is the state of the previous container instance.
	// Zero-valued (Kind "unknown") when the container has not restarted.
	LastState ContainerState `json:"last_state"`
}

// PodCondition is one entry from the pod's condition list.
type PodCondition struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// EnvVar is one environment variable visible on the pod's containers.
// Values sourced from Secrets or ConfigMaps are never resolved; they carry
// a fixed placeholder instead.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EnvValuePlaceholder replaces environment values that reference a Secret
// or ConfigMap key.
const EnvValuePlaceholder = "[from secret/configmap]"

// ContainerResources holds the resource requests and limits declared for
// one container, as quantity strings (e.g., "128Mi", "500m").
type ContainerResources struct {
	Requests map[string]string `json:"requests,omitempty"`
	Limits   map[string]string `json:"limits,omitempty"`
}

// Event is one cluster event involving the target pod, already filtered to
// the gatherer's look-back window and sorted newest first.
type Event struct {
	Timestamp time.Time `json:"timestamp,omitempty"`
	Type      string    `json:"type"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	Count     int32     `json:"count,omitempty"`
	Source    string    `json:"source,omitempty"`
}

// PodSnapshot is the immutable result of one gathering pass. It is
// constructed once per diagnostic request and never mutated afterwards.
type PodSnapshot struct {
	Name              string                        `json:"name"`
	Namespace         string                        `json:"namespace"`
	Phase             string                        `json:"phase"`
	Node              string                        `json:"node,omitempty"`
	RestartPolicy     string                        `json:"restart_policy,omitempty"`
	ContainerStatuses []ContainerStatus             `json:"container_statuses"`
	Conditions        []PodCondition                `json:"conditions,omitempty"`
	Environment       []EnvVar                      `json:"environment,omitempty"`
	Resources         map[string]ContainerResources `json:"resources,omitempty"`

	// Events, CurrentLogs, and PreviousLogs are collected in the same
	// gathering pass and consumed by the classifier and prompt builder.
	// Log text is passed through untruncated; truncation happens at
	// prompt-build time.
	Events       []Event `json:"events,omitempty"`
	CurrentLogs  string  `json:"-"`
	PreviousLogs string  `json:"-"`
}

// PatternResult is the output of the deterministic pattern classifier.
// It serializes with snake_case keys because it is embedded verbatim in
// the analysis prompt.
type PatternResult struct {
	// DetectedIssues is an append-only list of free-text signals in
	// insertion order. Duplicates are possible.
	DetectedIssues []string `json:"detected_issues"`
	// IssueType is the single classification tag, first-match-wins.
	// Empty means no rule assigned a type.
	IssueType string `json:"issue_type"`
	// Confidence only ever strengthens within a classification pass.
	Confidence Confidence `json:"confidence"`
}

// NewPatternResult returns an empty PatternResult with unknown confidence.
func NewPatternResult() *PatternResult {
	return &PatternResult{
		DetectedIssues: []string{},
		Confidence:     ConfidenceUnknown,
	}
}

// Append records a detected issue. Insertion order is preserved.
func (p *PatternResult) Append(issue string) {
	p.DetectedIssues = append(p.DetectedIssues, issue)
}

// Contains reports whether any recorded issue contains the given substring.
func (p *PatternResult) Contains(substr string) bool {
	for _, issue := range p.DetectedIssues {
		if strings.Contains(issue, substr) {
			return true
		}
	}
	return false
}

// SetIssueType assigns the issue type if it has not been assigned yet.
// Later calls within the same pass are no-ops (first-match-wins).
func (p *PatternResult) SetIssueType(issueType string) {
	if p.IssueType == "" {
		p.IssueType = issueType
	}
}

// UpgradeConfidence raises the confidence to c if c is stronger than the
// current value. Confidence is never downgraded.
func (p *PatternResult) UpgradeConfidence(c Confidence) {
	if confidenceRank(c) > confidenceRank(p.Confidence) {
		p.Confidence = c
	}
}

// SuggestedFix is one actionable remediation step in a diagnostic result.
type SuggestedFix struct {
	Action  string `json:"action"`
	Command string `json:"command"`
	Why     string `json:"why"`
}

// TokenUsage tracks the number of input and output tokens consumed by a
// model call.
type TokenUsage struct {
	// Input is the number of input (prompt) tokens consumed.
	Input int
	// Output is the number of output (completion) tokens consumed.
	Output int
}

// Total returns the sum of input and output tokens.
func (t TokenUsage) Total() int {
	return t.Input + t.Output
}

// DiagnosticResult is the sole externally visible artifact of a diagnostic
// request. When Success is false the pod could not be found and every
// diagnostic field is left zero-valued; only Error carries information.
type DiagnosticResult struct {
	PodName   string `json:"pod_name"`
	Namespace string `json:"namespace"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`

	IssueType        string         `json:"issue_type,omitempty"`
	RootCause        string         `json:"root_cause,omitempty"`
	Explanation      string         `json:"explanation,omitempty"`
	DetectedPatterns []string       `json:"detected_patterns,omitempty"`
	LikelyCauses     []string       `json:"likely_causes,omitempty"`
	SuggestedFixes   []SuggestedFix `json:"suggested_fixes,omitempty"`
	Severity         Severity       `json:"severity,omitempty"`
	QuickFixAvailable bool          `json:"quick_fix_available"`
	Confidence       Confidence     `json:"confidence,omitempty"`

	// ModelBackend identifies which backend produced the analysis, or
	// "pattern-fallback" when the deterministic fallback was used.
	ModelBackend string `json:"model_backend,omitempty"`

	// ProcessingTimeMs is measured end to end by the caller, rounded to
	// two decimal places.
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// NewFailedResult builds the result returned when the target pod does not
// exist. All diagnostic fields are omitted except the error string.
func NewFailedResult(podName, namespace, errMsg string) *DiagnosticResult {
	return &DiagnosticResult{
		PodName:   podName,
		Namespace: namespace,
		Success:   false,
		Error:     errMsg,
	}
}

// Validate checks that a successful result carries the fields the diagnostic
// contract requires.
func (r *DiagnosticResult) Validate() error {
	if r.PodName == "" {
		return fmt.Errorf("pod name must not be empty")
	}
	if !r.Success {
		if r.Error == "" {
			return fmt.Errorf("failed result must carry an error string")
		}
		return nil
	}
	if r.RootCause == "" {
		return fmt.Errorf("successful result must carry a root cause")
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %q", r.Severity)
	}
	return nil
}
