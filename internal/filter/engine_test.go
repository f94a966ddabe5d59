package filter

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, silentLogger())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

// testPod builds a minimal running pod with one container so that rule
// expressions can reach metadata, spec, and status fields.
func testPod(namespace, name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
			Labels:    map[string]string{"app": name},
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: "app", Image: "app:latest"}},
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "app", RestartCount: 0},
			},
		},
	}
}

func TestNewEngine_EmptyConfig(t *testing.T) {
	engine := newTestEngine(t, Config{})

	if engine.ExcludesNamespace("default") {
		t.Error("ExcludesNamespace(default) = true, want false")
	}
	if got := engine.RuleNames(); len(got) != 0 {
		t.Errorf("RuleNames() = %v, want empty", got)
	}

	verdict := engine.EvaluatePod(testPod("default", "web-1"))
	if verdict.Excluded {
		t.Errorf("EvaluatePod() = %+v, want not excluded", verdict)
	}
}

func TestNewEngine_InvalidNamespacePattern(t *testing.T) {
	_, err := NewEngine(Config{ExcludeNamespaces: []string{"kube-["}}, silentLogger())
	if err == nil {
		t.Fatal("expected error for invalid pattern, got nil")
	}
	if !strings.Contains(err.Error(), "invalid excludeNamespaces pattern") {
		t.Errorf("error = %q, want substring %q", err.Error(), "invalid excludeNamespaces pattern")
	}
}

func TestNewEngine_RuleValidation(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		wantErr string
	}{
		{
			name:    "empty rule name",
			rules:   []Rule{{Name: "", Expression: "true"}},
			wantErr: "name must not be empty",
		},
		{
			name: "duplicate rule name",
			rules: []Rule{
				{Name: "no-system", Expression: "true"},
				{Name: "no-system", Expression: "false"},
			},
			wantErr: "duplicate rule name",
		},
		{
			name:    "empty expression",
			rules:   []Rule{{Name: "empty", Expression: ""}},
			wantErr: "expression must not be empty",
		},
		{
			name:    "syntax error",
			rules:   []Rule{{Name: "broken", Expression: "pod. ==== nope"}},
			wantErr: "compiling CEL expression",
		},
		{
			name:    "unknown variable",
			rules:   []Rule{{Name: "unknown-var", Expression: `node.kind == "Node"`}},
			wantErr: "compiling CEL expression",
		},
		{
			name:    "non-boolean result",
			rules:   []Rule{{Name: "stringy", Expression: `"hello"`}},
			wantErr: "must return bool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(Config{Rules: tt.rules}, silentLogger())
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewEngine_ValidRules(t *testing.T) {
	engine := newTestEngine(t, Config{
		Rules: []Rule{
			{Name: "no-jobs", Expression: `pod.metadata.name.startsWith("batch-")`},
			{Name: "max-restarts", Expression: `pod.status.phase == "Running"`},
		},
	})

	got := engine.RuleNames()
	want := []string{"no-jobs", "max-restarts"}
	if len(got) != len(want) {
		t.Fatalf("RuleNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RuleNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExcludesNamespace(t *testing.T) {
	engine := newTestEngine(t, Config{
		ExcludeNamespaces: []string{"kube-system", "kube-.*", "(dev|staging)", ""},
	})

	tests := []struct {
		namespace string
		want      bool
	}{
		{"kube-system", true},
		{"kube-public", true},     // regex kube-.*
		{"my-kube-system", false}, // regex is anchored
		{"dev", true},
		{"staging", true},
		{"development", false}, // alternation is anchored
		{"default", false},
		{"production", false},
	}

	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			if got := engine.ExcludesNamespace(tt.namespace); got != tt.want {
				t.Errorf("ExcludesNamespace(%q) = %v, want %v", tt.namespace, got, tt.want)
			}
		})
	}
}

func TestEvaluatePod_NamespaceExcluded(t *testing.T) {
	engine := newTestEngine(t, Config{
		ExcludeNamespaces: []string{"kube-system"},
	})

	verdict := engine.EvaluatePod(testPod("kube-system", "coredns-abc"))
	if !verdict.Excluded {
		t.Fatal("EvaluatePod() not excluded, want excluded")
	}
	if verdict.Reason != ReasonNamespaceExcluded {
		t.Errorf("Reason = %q, want %q", verdict.Reason, ReasonNamespaceExcluded)
	}
	if verdict.Rule != "" {
		t.Errorf("Rule = %q, want empty", verdict.Rule)
	}

	msg := verdict.Message("kube-system")
	if !strings.Contains(msg, `"kube-system"`) {
		t.Errorf("Message() = %q, want namespace in message", msg)
	}
}

func TestEvaluatePod_NamespaceCheckedBeforeRules(t *testing.T) {
	// The pod matches both guardrails; the namespace exclusion wins.
	engine := newTestEngine(t, Config{
		ExcludeNamespaces: []string{"kube-system"},
		Rules: []Rule{
			{Name: "match-all", Expression: "true"},
		},
	})

	verdict := engine.EvaluatePod(testPod("kube-system", "coredns-abc"))
	if verdict.Reason != ReasonNamespaceExcluded {
		t.Errorf("Reason = %q, want %q", verdict.Reason, ReasonNamespaceExcluded)
	}
}

func TestEvaluatePod_RuleMatch(t *testing.T) {
	engine := newTestEngine(t, Config{
		Rules: []Rule{
			{Name: "no-canaries", Expression: `pod.metadata.labels["app"] == "canary"`},
		},
	})

	verdict := engine.EvaluatePod(testPod("default", "canary"))
	if !verdict.Excluded {
		t.Fatal("EvaluatePod() not excluded, want excluded")
	}
	if verdict.Reason != ReasonRuleMatched {
		t.Errorf("Reason = %q, want %q", verdict.Reason, ReasonRuleMatched)
	}
	if verdict.Rule != "no-canaries" {
		t.Errorf("Rule = %q, want %q", verdict.Rule, "no-canaries")
	}

	msg := verdict.Message("default")
	if !strings.Contains(msg, "no-canaries") {
		t.Errorf("Message() = %q, want rule name in message", msg)
	}
}

func TestEvaluatePod_NoMatch(t *testing.T) {
	engine := newTestEngine(t, Config{
		ExcludeNamespaces: []string{"kube-system"},
		Rules: []Rule{
			{Name: "no-canaries", Expression: `pod.metadata.labels["app"] == "canary"`},
		},
	})

	verdict := engine.EvaluatePod(testPod("default", "web-1"))
	if verdict.Excluded {
		t.Errorf("EvaluatePod() = %+v, want not excluded", verdict)
	}
	if verdict.Reason != "" {
		t.Errorf("Reason = %q, want empty", verdict.Reason)
	}
	if verdict.Message("default") != "" {
		t.Errorf("Message() = %q, want empty", verdict.Message("default"))
	}
}

func TestExcludedError_Message(t *testing.T) {
	err := &ExcludedError{
		Namespace: "kube-system",
		Verdict:   Verdict{Excluded: true, Reason: ReasonNamespaceExcluded},
	}
	if !strings.Contains(err.Error(), `"kube-system"`) {
		t.Errorf("Error() = %q, want namespace mention", err.Error())
	}

	err = &ExcludedError{
		Namespace: "default",
		Verdict:   Verdict{Excluded: true, Reason: ReasonRuleMatched, Rule: "no-canaries"},
	}
	if !strings.Contains(err.Error(), `"no-canaries"`) {
		t.Errorf("Error() = %q, want rule mention", err.Error())
	}
}

func TestEvaluatePod_FirstMatchWins(t *testing.T) {
	engine := newTestEngine(t, Config{
		Rules: []Rule{
			{Name: "first", Expression: `pod.metadata.name == "web-1"`},
			{Name: "second", Expression: "true"},
		},
	})

	verdict := engine.EvaluatePod(testPod("default", "web-1"))
	if verdict.Rule != "first" {
		t.Errorf("Rule = %q, want %q", verdict.Rule, "first")
	}
}

func TestEvaluatePod_WithParams(t *testing.T) {
	engine := newTestEngine(t, Config{
		Rules: []Rule{
			{
				Name:       "too-many-restarts",
				Expression: `pod.status.containerStatuses.exists(c, c.restartCount >= int(params.minRestarts))`,
				Params:     map[string]string{"minRestarts": "3"},
			},
		},
	})

	restarting := testPod("default", "crashy-1")
	restarting.Status.ContainerStatuses[0].RestartCount = 5
	verdict := engine.EvaluatePod(restarting)
	if !verdict.Excluded {
		t.Error("pod with 5 restarts not excluded, want excluded")
	}

	stable := testPod("default", "web-1")
	stable.Status.ContainerStatuses[0].RestartCount = 1
	verdict = engine.EvaluatePod(stable)
	if verdict.Excluded {
		t.Error("pod with 1 restart excluded, want not excluded")
	}
}

func TestEvaluatePod_StatusFields(t *testing.T) {
	engine := newTestEngine(t, Config{
		Rules: []Rule{
			{Name: "no-succeeded", Expression: `pod.status.phase == "Succeeded"`},
		},
	})

	done := testPod("default", "batch-1")
	done.Status.Phase = corev1.PodSucceeded
	if verdict := engine.EvaluatePod(done); !verdict.Excluded {
		t.Error("succeeded pod not excluded, want excluded")
	}

	if verdict := engine.EvaluatePod(testPod("default", "web-1")); verdict.Excluded {
		t.Error("running pod excluded, want not excluded")
	}
}

func TestEvaluatePod_RuleErrorSkipsToNext(t *testing.T) {
	// The first rule references a label map that does not exist on the
	// pod; the evaluation error must not refuse the pod, and later rules
	// still run.
	engine := newTestEngine(t, Config{
		Rules: []Rule{
			{Name: "errors-out", Expression: `pod.metadata.labels["tier"] == "system"`},
			{Name: "by-name", Expression: `pod.metadata.name == "web-1"`},
		},
	})

	pod := testPod("default", "web-1")
	pod.Labels = nil

	verdict := engine.EvaluatePod(pod)
	if !verdict.Excluded {
		t.Fatal("EvaluatePod() not excluded, want excluded by second rule")
	}
	if verdict.Rule != "by-name" {
		t.Errorf("Rule = %q, want %q", verdict.Rule, "by-name")
	}
}

func TestEvaluatePod_CostLimitFailsOpen(t *testing.T) {
	engine := newTestEngine(t, Config{
		CostLimit: 1,
		Rules: []Rule{
			{Name: "expensive", Expression: `pod.spec.containers.exists(c, c.name == "app")`},
		},
	})

	verdict := engine.EvaluatePod(testPod("default", "web-1"))
	if verdict.Excluded {
		t.Errorf("EvaluatePod() = %+v, want not excluded when cost limit halts evaluation", verdict)
	}
}

func TestEvaluatePod_NilPod(t *testing.T) {
	engine := newTestEngine(t, Config{
		ExcludeNamespaces: []string{"kube-system"},
	})

	verdict := engine.EvaluatePod(nil)
	if verdict.Excluded {
		t.Errorf("EvaluatePod(nil) = %+v, want not excluded", verdict)
	}
}
