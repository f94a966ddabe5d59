// Package filter implements the diagnostic guardrails that decide whether a
// pod may be diagnosed at all. Two mechanisms are evaluated in order:
//
//  1. Namespace exclusion — config-listed namespace names or regex patterns.
//     Excluded namespaces are also omitted from cluster summaries.
//  2. Named CEL rules — expressions from config, compiled at startup and
//     evaluated against the target pod rendered as an unstructured map.
//
// Evaluation short-circuits on the first match.
package filter

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// DefaultCostLimit is the maximum CEL evaluation cost budget per rule.
const DefaultCostLimit uint64 = 1000

// Reason identifies which guardrail refused a pod. These values are used
// as log attributes and to shape the API refusal response.
type Reason string

const (
	ReasonNamespaceExcluded Reason = "namespace_excluded"
	ReasonRuleMatched       Reason = "rule_matched"
)

// Verdict is the outcome of guardrail evaluation for a single pod.
type Verdict struct {
	// Excluded is true if the pod must not be diagnosed.
	Excluded bool

	// Reason identifies which guardrail refused the pod. Empty if not excluded.
	Reason Reason

	// Rule is the name of the matched rule when Reason is ReasonRuleMatched.
	Rule string
}

// Message returns a human-readable explanation of the refusal, suitable
// for API responses. Returns "" for a non-excluded verdict.
func (v Verdict) Message(namespace string) string {
	switch v.Reason {
	case ReasonNamespaceExcluded:
		return fmt.Sprintf("namespace %q is excluded from diagnostics", namespace)
	case ReasonRuleMatched:
		return fmt.Sprintf("matched exclusion rule %q", v.Rule)
	default:
		return ""
	}
}

// ExcludedError reports that a pod was refused by the guardrails. Callers
// unwrap it with errors.As to distinguish a policy refusal from a cluster
// failure.
type ExcludedError struct {
	Namespace string
	Verdict   Verdict
}

func (e *ExcludedError) Error() string {
	return e.Verdict.Message(e.Namespace)
}

// Rule is a single named CEL guardrail from configuration. The expression
// is evaluated with two variables in scope: `pod`, the target pod rendered
// as a map, and `params`, the rule's string-keyed parameter map.
type Rule struct {
	// Name identifies the rule in logs and refusal responses.
	Name string

	// Expression is the CEL source. It must evaluate to a boolean.
	Expression string

	// Params are user-defined parameters available to the expression.
	Params map[string]string
}

// Config holds the guardrail settings from the filters config section.
type Config struct {
	// ExcludeNamespaces is a list of namespace names or regex patterns.
	// Exact strings match exactly; strings containing regex metacharacters
	// are compiled as anchored regex patterns.
	ExcludeNamespaces []string

	// Rules are the CEL guardrails, evaluated in order.
	Rules []Rule

	// CostLimit is the CEL evaluation cost budget. 0 uses DefaultCostLimit.
	CostLimit uint64
}

// Engine evaluates guardrails against pods to decide whether diagnosis
// should be refused. All patterns and expressions are compiled by NewEngine;
// evaluation itself never fails startup-validated state.
type Engine struct {
	patterns []*namespacePattern
	rules    []*compiledRule
	logger   *slog.Logger
}

// namespacePattern holds either an exact namespace name or a compiled regex.
type namespacePattern struct {
	raw   string
	exact bool
	re    *regexp.Regexp
}

// compiledRule pairs a config rule with its compiled CEL program.
type compiledRule struct {
	name    string
	program cel.Program
	params  map[string]string
}

// NewEngine compiles the configured namespace patterns and CEL rules.
// Any invalid pattern or expression is returned as an error so that
// startup fails rather than running with a partial guardrail set.
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	patterns, err := compileNamespacePatterns(cfg.ExcludeNamespaces)
	if err != nil {
		return nil, fmt.Errorf("invalid excludeNamespaces pattern: %w", err)
	}

	costLimit := cfg.CostLimit
	if costLimit == 0 {
		costLimit = DefaultCostLimit
	}

	rules, err := compileRules(cfg.Rules, costLimit)
	if err != nil {
		return nil, err
	}

	return &Engine{
		patterns: patterns,
		rules:    rules,
		logger:   logger,
	}, nil
}

// ExcludesNamespace reports whether the namespace matches any exclude
// pattern. Matching namespaces are refused for diagnosis and omitted
// from cluster summaries and namespace listings.
func (e *Engine) ExcludesNamespace(namespace string) bool {
	for _, p := range e.patterns {
		if p.exact {
			if p.raw == namespace {
				return true
			}
		} else if p.re.MatchString(namespace) {
			return true
		}
	}
	return false
}

// RuleNames returns the names of the compiled rules in evaluation order.
func (e *Engine) RuleNames() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.name)
	}
	return names
}

// EvaluatePod runs the guardrail chain against a pod. The namespace check
// runs first, then each CEL rule in config order; evaluation stops at the
// first match. A rule that errors at evaluation time is skipped with a
// warning rather than refusing the pod.
func (e *Engine) EvaluatePod(pod *corev1.Pod) Verdict {
	if pod == nil {
		return Verdict{}
	}

	if e.ExcludesNamespace(pod.Namespace) {
		e.logger.Debug("pod refused by namespace exclusion",
			"namespace", pod.Namespace,
			"pod", pod.Name,
		)
		return Verdict{Excluded: true, Reason: ReasonNamespaceExcluded}
	}

	if len(e.rules) == 0 {
		return Verdict{}
	}

	data, err := runtime.DefaultUnstructuredConverter.ToUnstructured(pod)
	if err != nil {
		e.logger.Warn("converting pod for rule evaluation",
			"namespace", pod.Namespace,
			"pod", pod.Name,
			"error", err,
		)
		return Verdict{}
	}

	for _, rule := range e.rules {
		matched, err := evaluateRule(rule, data)
		if err != nil {
			e.logger.Warn("rule evaluation error",
				"rule", rule.name,
				"namespace", pod.Namespace,
				"pod", pod.Name,
				"error", err,
			)
			continue
		}
		if matched {
			e.logger.Debug("pod refused by exclusion rule",
				"rule", rule.name,
				"namespace", pod.Namespace,
				"pod", pod.Name,
			)
			return Verdict{Excluded: true, Reason: ReasonRuleMatched, Rule: rule.name}
		}
	}

	return Verdict{}
}

// evaluateRule runs one compiled CEL program against the pod data.
func evaluateRule(rule *compiledRule, podData map[string]any) (bool, error) {
	params := rule.params
	if params == nil {
		params = make(map[string]string)
	}

	result, _, err := rule.program.Eval(map[string]any{
		"pod":    podData,
		"params": params,
	})
	if err != nil {
		return false, fmt.Errorf("evaluating CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression returned %T, expected bool", result.Value())
	}
	return boolVal, nil
}

// newRuleEnv creates the CEL environment for guardrail expressions. The pod
// is exposed as a dynamic-typed map so expressions can reach arbitrary
// fields without protobuf definitions.
func newRuleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("pod", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("params", cel.MapType(cel.StringType, cel.StringType)),
	)
}

// compileRules compiles every configured rule, rejecting duplicates,
// unnamed rules, empty expressions, and expressions that do not produce
// a boolean.
func compileRules(rules []Rule, costLimit uint64) ([]*compiledRule, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	env, err := newRuleEnv()
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	compiled := make([]*compiledRule, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for i, rule := range rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("rule %d: name must not be empty", i)
		}
		if _, ok := seen[rule.Name]; ok {
			return nil, fmt.Errorf("rule %q: duplicate rule name", rule.Name)
		}
		seen[rule.Name] = struct{}{}

		if rule.Expression == "" {
			return nil, fmt.Errorf("rule %q: expression must not be empty", rule.Name)
		}

		ast, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %q: compiling CEL expression: %w", rule.Name, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule %q: CEL expression must return bool, got %s", rule.Name, ast.OutputType())
		}

		prog, err := env.Program(ast, cel.CostLimit(costLimit))
		if err != nil {
			return nil, fmt.Errorf("rule %q: creating CEL program: %w", rule.Name, err)
		}

		compiled = append(compiled, &compiledRule{
			name:    rule.Name,
			program: prog,
			params:  rule.Params,
		})
	}
	return compiled, nil
}

// hasRegexMeta returns true if the string contains regex metacharacters,
// indicating it should be treated as a regex rather than an exact match.
func hasRegexMeta(s string) bool {
	for _, ch := range s {
		switch ch {
		case '.', '*', '+', '?', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
			return true
		}
	}
	return false
}

// compileNamespacePatterns compiles the excludeNamespaces list. Strings
// without regex metacharacters are exact matches; the rest are compiled
// as regex anchored to the full namespace name.
func compileNamespacePatterns(patterns []string) ([]*namespacePattern, error) {
	result := make([]*namespacePattern, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		np := &namespacePattern{raw: p}
		if hasRegexMeta(p) {
			anchored := p
			if !strings.HasPrefix(anchored, "^") {
				anchored = "^" + anchored
			}
			if !strings.HasSuffix(anchored, "$") {
				anchored = anchored + "$"
			}
			re, err := regexp.Compile(anchored)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", p, err)
			}
			np.re = re
		} else {
			np.exact = true
		}
		result = append(result, np)
	}
	return result, nil
}
