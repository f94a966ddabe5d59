package classifier

import (
	"reflect"
	"strings"
	"testing"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

func waiting(reason string) model.ContainerState {
	return model.ContainerState{Waiting: &model.StateWaiting{Reason: reason}}
}

func terminated(reason string, exitCode int32) model.ContainerState {
	return model.ContainerState{Terminated: &model.StateTerminated{Reason: reason, ExitCode: exitCode}}
}

func TestClassify_CrashLoopBackOff(t *testing.T) {
	snap := &model.PodSnapshot{
		ContainerStatuses: []model.ContainerStatus{
			{
				Name:         "app",
				RestartCount: 5,
				State:        waiting("CrashLoopBackOff"),
				LastState:    terminated("OOMKilled", 137),
			},
		},
	}

	got := Classify(snap)

	if got.IssueType != "CrashLoopBackOff" {
		t.Errorf("IssueType = %q, want CrashLoopBackOff", got.IssueType)
	}
	if got.Confidence != model.ConfidenceHigh {
		t.Errorf("Confidence = %q, want high", got.Confidence)
	}
	want := []string{
		"CrashLoopBackOff",
		"OOMKilled - Out of Memory",
		"Container exited with code 137",
	}
	if !reflect.DeepEqual(got.DetectedIssues, want) {
		t.Errorf("DetectedIssues = %v, want %v", got.DetectedIssues, want)
	}
}

func TestClassify_ImagePullVariants(t *testing.T) {
	tests := []struct {
		reason    string
		wantIssue string
		wantType  string
	}{
		{"ImagePullBackOff", "Image pull error: ImagePullBackOff", "ImagePullError"},
		{"ErrImagePull", "Image pull error: ErrImagePull", "ImagePullError"},
		{"ErrImageNeverPull", "Image pull error: ErrImageNeverPull", "ImagePullError"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			snap := &model.PodSnapshot{
				ContainerStatuses: []model.ContainerStatus{
					{Name: "app", State: waiting(tt.reason)},
				},
			}
			got := Classify(snap)
			if got.IssueType != tt.wantType {
				t.Errorf("IssueType = %q, want %q", got.IssueType, tt.wantType)
			}
			if got.Confidence != model.ConfidenceHigh {
				t.Errorf("Confidence = %q, want high", got.Confidence)
			}
			if len(got.DetectedIssues) != 1 || got.DetectedIssues[0] != tt.wantIssue {
				t.Errorf("DetectedIssues = %v, want [%s]", got.DetectedIssues, tt.wantIssue)
			}
		})
	}

	t.Run("unrelated waiting reason", func(t *testing.T) {
		snap := &model.PodSnapshot{
			ContainerStatuses: []model.ContainerStatus{
				{Name: "app", State: waiting("ContainerCreating")},
			},
		}
		got := Classify(snap)
		if len(got.DetectedIssues) != 0 || got.IssueType != "" {
			t.Errorf("Classify() = %+v, want no findings", got)
		}
	})
}

func TestClassify_OOMTakesPriorityOverExitCode(t *testing.T) {
	snap := &model.PodSnapshot{
		ContainerStatuses: []model.ContainerStatus{
			{Name: "app", LastState: terminated("OOMKilled", 137)},
		},
	}

	got := Classify(snap)

	if got.IssueType != "OOMKilled" {
		t.Errorf("IssueType = %q, want OOMKilled", got.IssueType)
	}
	if got.Confidence != model.ConfidenceHigh {
		t.Errorf("Confidence = %q, want high", got.Confidence)
	}
	want := []string{"OOMKilled - Out of Memory", "Container exited with code 137"}
	if !reflect.DeepEqual(got.DetectedIssues, want) {
		t.Errorf("DetectedIssues = %v, want %v", got.DetectedIssues, want)
	}
}

func TestClassify_ExitCodeFallback(t *testing.T) {
	snap := &model.PodSnapshot{
		ContainerStatuses: []model.ContainerStatus{
			{Name: "app", LastState: terminated("Error", 1)},
		},
	}

	got := Classify(snap)

	if got.IssueType != "ExitCode1" {
		t.Errorf("IssueType = %q, want ExitCode1", got.IssueType)
	}
	if got.Confidence != model.ConfidenceMedium {
		t.Errorf("Confidence = %q, want medium", got.Confidence)
	}
}

func TestClassify_ZeroExitIgnored(t *testing.T) {
	snap := &model.PodSnapshot{
		ContainerStatuses: []model.ContainerStatus{
			{Name: "app", LastState: terminated("Completed", 0)},
		},
	}

	got := Classify(snap)

	if len(got.DetectedIssues) != 0 || got.IssueType != "" {
		t.Errorf("Classify() = %+v, want no findings for clean exit", got)
	}
	if got.Confidence != model.ConfidenceUnknown {
		t.Errorf("Confidence = %q, want unknown", got.Confidence)
	}
}

func TestClassify_FirstAssignedTypeWinsAcrossContainers(t *testing.T) {
	// The sidecar's exit code claims the issue type first; the crash-looping
	// app container still contributes its issue and raises confidence.
	snap := &model.PodSnapshot{
		ContainerStatuses: []model.ContainerStatus{
			{Name: "sidecar", LastState: terminated("Error", 2)},
			{Name: "app", State: waiting("CrashLoopBackOff")},
		},
	}

	got := Classify(snap)

	if got.IssueType != "ExitCode2" {
		t.Errorf("IssueType = %q, want ExitCode2", got.IssueType)
	}
	if got.Confidence != model.ConfidenceHigh {
		t.Errorf("Confidence = %q, want high after upgrade", got.Confidence)
	}
	want := []string{"Container exited with code 2", "CrashLoopBackOff"}
	if !reflect.DeepEqual(got.DetectedIssues, want) {
		t.Errorf("DetectedIssues = %v, want %v", got.DetectedIssues, want)
	}
}

func TestClassify_BackOffEventSuppressedByContainerFinding(t *testing.T) {
	snap := &model.PodSnapshot{
		ContainerStatuses: []model.ContainerStatus{
			{Name: "app", State: waiting("CrashLoopBackOff")},
		},
		Events: []model.Event{
			{Reason: "BackOff", Message: "Back-off restarting failed container"},
		},
	}

	got := Classify(snap)

	for _, issue := range got.DetectedIssues {
		if strings.HasPrefix(issue, "Event: BackOff") {
			t.Errorf("DetectedIssues = %v, back-off event should be deduplicated", got.DetectedIssues)
		}
	}
}

func TestClassify_BackOffEventRecordedOnce(t *testing.T) {
	snap := &model.PodSnapshot{
		Events: []model.Event{
			{Reason: "BackOff", Message: "Back-off restarting failed container"},
			{Reason: "BackOff", Message: "Back-off restarting failed container"},
		},
	}

	got := Classify(snap)

	want := []string{"Event: BackOff"}
	if !reflect.DeepEqual(got.DetectedIssues, want) {
		t.Errorf("DetectedIssues = %v, want %v", got.DetectedIssues, want)
	}
	if got.IssueType != "" || got.Confidence != model.ConfidenceUnknown {
		t.Errorf("events alone should not set type or confidence, got %+v", got)
	}
}

func TestClassify_BackOffMatchedViaMessage(t *testing.T) {
	snap := &model.PodSnapshot{
		Events: []model.Event{
			{Reason: "Killing", Message: "Back-off pulling image"},
		},
	}

	got := Classify(snap)

	want := []string{"Event: Killing"}
	if !reflect.DeepEqual(got.DetectedIssues, want) {
		t.Errorf("DetectedIssues = %v, want %v", got.DetectedIssues, want)
	}
}

func TestClassify_FailureEventTruncatesMessage(t *testing.T) {
	long := strings.Repeat("x", 150)
	snap := &model.PodSnapshot{
		Events: []model.Event{
			{Reason: "FailedScheduling", Message: long},
		},
	}

	got := Classify(snap)

	want := "Event: FailedScheduling - " + strings.Repeat("x", 100)
	if len(got.DetectedIssues) != 1 || got.DetectedIssues[0] != want {
		t.Errorf("DetectedIssues = %v, want [%s]", got.DetectedIssues, want)
	}
}

func TestClassify_FailureEventsNotDeduplicated(t *testing.T) {
	snap := &model.PodSnapshot{
		Events: []model.Event{
			{Reason: "FailedMount", Message: "volume not found"},
			{Reason: "FailedMount", Message: "volume not found"},
		},
	}

	got := Classify(snap)

	if len(got.DetectedIssues) != 2 {
		t.Errorf("DetectedIssues = %v, want both failure events recorded", got.DetectedIssues)
	}
}

func TestClassify_LogKeywordCategories(t *testing.T) {
	tests := []struct {
		name         string
		previousLogs string
		currentLogs  string
		want         []string
	}{
		{
			name:        "database keyword",
			currentLogs: "could not connect to postgres",
			want:        []string{"Possible database issue in logs"},
		},
		{
			name:        "permission keyword case-insensitive",
			currentLogs: "request rejected: Permission DENIED for /data",
			want:        []string{"Possible permission issue in logs"},
		},
		{
			name:        "network keyword",
			currentLogs: "dial tcp 10.0.0.1:443: i/o timeout",
			want:        []string{"Possible network issue in logs"},
		},
		{
			name:        "config keyword",
			currentLogs: "environment variable DATABASE_URL is not set",
			want:        []string{"Possible config issue in logs"},
		},
		{
			name:        "connection refused spans database and network",
			currentLogs: "dial tcp: connection refused",
			want: []string{
				"Possible database issue in logs",
				"Possible network issue in logs",
			},
		},
		{
			name:         "keyword only in previous logs",
			previousLogs: "redis: cache unavailable",
			want:         []string{"Possible database issue in logs"},
		},
		{
			name:        "no keywords",
			currentLogs: "server started on :8080",
			want:        []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &model.PodSnapshot{
				PreviousLogs: tt.previousLogs,
				CurrentLogs:  tt.currentLogs,
			}
			got := Classify(snap)
			if !reflect.DeepEqual(got.DetectedIssues, tt.want) {
				t.Errorf("DetectedIssues = %v, want %v", got.DetectedIssues, tt.want)
			}
		})
	}
}

func TestClassify_EmptySnapshot(t *testing.T) {
	got := Classify(&model.PodSnapshot{})

	if got.DetectedIssues == nil {
		t.Error("DetectedIssues = nil, want empty slice")
	}
	if len(got.DetectedIssues) != 0 {
		t.Errorf("DetectedIssues = %v, want empty", got.DetectedIssues)
	}
	if got.IssueType != "" {
		t.Errorf("IssueType = %q, want empty", got.IssueType)
	}
	if got.Confidence != model.ConfidenceUnknown {
		t.Errorf("Confidence = %q, want unknown", got.Confidence)
	}
}

func TestClassify_NilSnapshot(t *testing.T) {
	got := Classify(nil)
	if got == nil || len(got.DetectedIssues) != 0 || got.Confidence != model.ConfidenceUnknown {
		t.Errorf("Classify(nil) = %+v, want empty result", got)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	snap := &model.PodSnapshot{
		ContainerStatuses: []model.ContainerStatus{
			{Name: "app", State: waiting("CrashLoopBackOff"), LastState: terminated("Error", 1)},
		},
		Events: []model.Event{
			{Reason: "BackOff", Message: "Back-off restarting failed container"},
			{Reason: "FailedMount", Message: "volume not found"},
		},
		CurrentLogs: "connection refused",
	}

	first := Classify(snap)
	second := Classify(snap)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Classify() not deterministic:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than bound", "short", 100, "short"},
		{"exactly at bound", "abc", 3, "abc"},
		{"truncated", "abcdef", 3, "abc"},
		{"multibyte runes kept whole", "héllo wörld", 7, "héllo w"},
		{"zero bound", "abc", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}
