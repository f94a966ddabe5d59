// Package redact scrubs credential-shaped substrings from text before it
// reaches a model prompt or an API response. Container log output and
// literal environment values both pass through here on the diagnostic
// path. Patterns are compiled once at construction time and the engine is
// immutable afterwards, so it is safe for concurrent use.
package redact

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Placeholder replaces every matched credential.
const Placeholder = "[REDACTED]"

// builtinPatterns match credential shapes commonly seen in crash logs and
// pod environment values. Order matters: the specific header forms come
// before the broader assignment forms.
var builtinPatterns = []struct {
	name    string
	pattern string
}{
	{name: "bearer_token", pattern: `(?i)Bearer\s+[A-Za-z0-9._\-]+`},
	{name: "basic_auth", pattern: `(?i)Basic\s+[A-Za-z0-9+/=]+`},
	{name: "aws_access_key", pattern: `AKIA[A-Za-z0-9]{16}`},
	// Userinfo in connection URLs, e.g. postgres://app:hunter2@db:5432.
	// Crash logs quote these constantly.
	{name: "url_credentials", pattern: `://[^/\s:@]+:[^@\s]+@`},
	{name: "password_assignment", pattern: `(?i)password\s*"?\s*[=:]\s*"?\s*\S+`},
	{name: "token_assignment", pattern: `(?i)token\s*[=:]\s*[A-Za-z0-9._\-/+=]+`},
	{name: "authorization_header", pattern: `(?i)Authorization\s*[:=]\s*\S+`},
	{name: "key_assignment", pattern: `(?i)(?:secret[_-]?key|api[_-]?key|access[_-]?key)\s*[=:]\s*\S+`},
}

// Redactor applies a fixed set of compiled patterns to text.
type Redactor struct {
	patterns []*regexp.Regexp
	logger   *slog.Logger
}

// Option configures a Redactor.
type Option func(*Redactor)

// WithLogger sets the logger for the Redactor.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Redactor) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Redactor with the builtin patterns plus any config-supplied
// patterns. Custom patterns are validated at construction time; if any is
// invalid, New returns an error naming all of them. Builtin patterns are
// always included.
func New(customPatterns []string, opts ...Option) (*Redactor, error) {
	r := &Redactor{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	compiled := make([]*regexp.Regexp, 0, len(builtinPatterns)+len(customPatterns))
	for _, bp := range builtinPatterns {
		re, err := regexp.Compile(bp.pattern)
		if err != nil {
			return nil, fmt.Errorf("internal error: builtin pattern %q failed to compile: %w", bp.name, err)
		}
		compiled = append(compiled, re)
	}

	var errs []string
	for i, pat := range customPatterns {
		if pat == "" {
			errs = append(errs, fmt.Sprintf("pattern at index %d: empty pattern", i))
			continue
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			errs = append(errs, fmt.Sprintf("pattern at index %d (%q): %v", i, pat, err))
			continue
		}
		compiled = append(compiled, re)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid redaction patterns: %s", strings.Join(errs, "; "))
	}

	r.patterns = compiled

	r.logger.Debug("redactor initialized",
		"builtin_patterns", len(builtinPatterns),
		"custom_patterns", len(customPatterns),
	)

	return r, nil
}

// Redact replaces every match of any configured pattern in text with
// [REDACTED]. Patterns are applied sequentially in declaration order.
func (r *Redactor) Redact(text string) string {
	if text == "" {
		return text
	}

	result := text
	for _, re := range r.patterns {
		result = re.ReplaceAllString(result, Placeholder)
	}
	return result
}

// PatternCount returns the total number of compiled patterns.
func (r *Redactor) PatternCount() int {
	return len(r.patterns)
}

// BuiltinPatternCount returns the number of builtin patterns.
func BuiltinPatternCount() int {
	return len(builtinPatterns)
}
