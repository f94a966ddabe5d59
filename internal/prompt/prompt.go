// Package prompt renders the text sent to the model: the debug prompt
// built from a pod snapshot and its classified patterns, and the query
// prompt embedding a bounded cluster summary. Rendering is deterministic;
// equal inputs produce equal text.
package prompt

import "encoding/json"

// DebugSystemPrompt pins the model to the JSON-only reply contract for
// pod diagnostics.
const DebugSystemPrompt = "You are a Kubernetes debugging expert. Always respond with valid JSON."

// jsonIndent renders v as two-space indented JSON. The snapshot and
// summary types marshal without error; a failure renders as an empty
// object so the prompt still builds.
func jsonIndent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// truncate bounds s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
