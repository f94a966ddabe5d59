// Package classifier derives deterministic failure patterns from a pod
// snapshot. Rules run in a fixed order over container statuses, then
// events, then log text. The first rule to assign an issue type wins;
// later rules can only add issues or raise confidence, so the result is
// stable for a given snapshot.
package classifier

import (
	"fmt"
	"strings"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

// containerRule examines one container status and records findings.
type containerRule func(r *model.PatternResult, cs model.ContainerStatus)

// eventRule examines one event and records findings.
type eventRule func(r *model.PatternResult, ev model.Event)

// containerRules run per container, in order. The strong waiting-state and
// OOM signals come before exit-code inference so the issue type reflects
// the most specific cause.
var containerRules = []containerRule{
	crashLoopBackOff,
	imagePullFailure,
	oomKilled,
	nonZeroExit,
}

// eventRules run per event, in order, after all container rules.
var eventRules = []eventRule{
	backOffEvent,
	failureEvent,
}

// logCategory groups the keywords that indicate one class of log problem.
type logCategory struct {
	name     string
	keywords []string
}

// logCategories are checked against the combined previous+current log
// text, lowercased. Every matching category contributes one issue.
var logCategories = []logCategory{
	{"database", []string{"connection refused", "database", "postgres", "mysql", "mongodb", "redis"}},
	{"permission", []string{"permission denied", "forbidden", "unauthorized", "access denied"}},
	{"network", []string{"timeout", "connection reset", "connection refused", "no route to host"}},
	{"config", []string{"config", "configuration", "environment variable", "missing"}},
}

// Classify runs all pattern rules over the snapshot and returns the
// accumulated result. It never fails, never mutates the snapshot, and
// returns an equal result for an equal snapshot.
func Classify(snap *model.PodSnapshot) *model.PatternResult {
	r := model.NewPatternResult()
	if snap == nil {
		return r
	}

	for _, cs := range snap.ContainerStatuses {
		for _, rule := range containerRules {
			rule(r, cs)
		}
	}

	for _, ev := range snap.Events {
		for _, rule := range eventRules {
			rule(r, ev)
		}
	}

	scanLogs(r, snap)

	return r
}

// crashLoopBackOff flags containers waiting in CrashLoopBackOff.
func crashLoopBackOff(r *model.PatternResult, cs model.ContainerStatus) {
	w := cs.State.Waiting
	if w == nil || w.Reason != "CrashLoopBackOff" {
		return
	}
	r.Append("CrashLoopBackOff")
	r.SetIssueType("CrashLoopBackOff")
	r.UpgradeConfidence(model.ConfidenceHigh)
}

// imagePullFailure flags containers that cannot pull their image, covering
// both the ImagePull* and ErrImage* reason families.
func imagePullFailure(r *model.PatternResult, cs model.ContainerStatus) {
	w := cs.State.Waiting
	if w == nil {
		return
	}
	if !strings.Contains(w.Reason, "ImagePull") && !strings.Contains(w.Reason, "ErrImage") {
		return
	}
	r.Append(fmt.Sprintf("Image pull error: %s", w.Reason))
	r.SetIssueType("ImagePullError")
	r.UpgradeConfidence(model.ConfidenceHigh)
}

// oomKilled flags containers whose previous instance was OOM killed.
func oomKilled(r *model.PatternResult, cs model.ContainerStatus) {
	t := cs.LastState.Terminated
	if t == nil || t.Reason != "OOMKilled" {
		return
	}
	r.Append("OOMKilled - Out of Memory")
	r.SetIssueType("OOMKilled")
	r.UpgradeConfidence(model.ConfidenceHigh)
}

// nonZeroExit records a non-zero exit from the previous instance. The exit
// code only becomes the issue type when nothing more specific has matched,
// and then at medium confidence.
func nonZeroExit(r *model.PatternResult, cs model.ContainerStatus) {
	t := cs.LastState.Terminated
	if t == nil || t.ExitCode == 0 {
		return
	}
	r.Append(fmt.Sprintf("Container exited with code %d", t.ExitCode))
	if r.IssueType == "" {
		r.SetIssueType(fmt.Sprintf("ExitCode%d", t.ExitCode))
		r.UpgradeConfidence(model.ConfidenceMedium)
	}
}

// backOffEvent records back-off events unless a back-off issue is already
// present, which keeps a CrashLoopBackOff finding from being repeated by
// its own events.
func backOffEvent(r *model.PatternResult, ev model.Event) {
	if !strings.Contains(ev.Reason, "BackOff") && !strings.Contains(ev.Message, "Back-off") {
		return
	}
	if r.Contains("BackOff") {
		return
	}
	r.Append(fmt.Sprintf("Event: %s", ev.Reason))
}

// failureEvent records failure and error events with a bounded message.
func failureEvent(r *model.PatternResult, ev model.Event) {
	if !strings.Contains(ev.Reason, "Failed") && !strings.Contains(ev.Reason, "Error") {
		return
	}
	r.Append(fmt.Sprintf("Event: %s - %s", ev.Reason, truncate(ev.Message, 100)))
}

// scanLogs checks each keyword category against the combined log text.
func scanLogs(r *model.PatternResult, snap *model.PodSnapshot) {
	text := strings.ToLower(snap.PreviousLogs + "\n" + snap.CurrentLogs)
	for _, cat := range logCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(text, kw) {
				r.Append(fmt.Sprintf("Possible %s issue in logs", cat.name))
				break
			}
		}
	}
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
