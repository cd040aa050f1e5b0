package hooks

import "strings"

// Decision is the coarse policy outcome reported to ping callbacks.
type Decision string

const (
	DecisionAllowed Decision = "allowed"
	DecisionBlocked Decision = "blocked"
)

// PolicyDecision is derived per callback and never stored.
type PolicyDecision struct {
	Decision Decision
	Reason   string
}

var blockContextTerms = []string{"domain", "allowlist", "tenant policy"}

// ClassifyPolicy reports "blocked" when the run text mentions "blocked" together
// with a domain, allowlist or tenant policy term. It is a keyword heuristic: a
// block worded differently is reported as allowed, and an unrelated "blocked"
// near one of the terms is reported as blocked.
func ClassifyPolicy(summary, errText string) PolicyDecision {
	text := strings.ToLower(summary + " " + errText)
	if !strings.Contains(text, "blocked") {
		return PolicyDecision{Decision: DecisionAllowed}
	}
	for _, term := range blockContextTerms {
		if strings.Contains(text, term) {
			reason := errText
			if reason == "" {
				reason = summary
			}
			return PolicyDecision{Decision: DecisionBlocked, Reason: reason}
		}
	}
	return PolicyDecision{Decision: DecisionAllowed}
}

// Summarize picks the text that describes a result: the trimmed summary, else
// the trimmed error, else the status.
func Summarize(res ExecutionResult) string {
	return firstNonBlank(res.Summary, res.Error, res.Status)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
