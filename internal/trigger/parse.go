package trigger

import "strings"

// VerdictDelimiter separates the model's hidden reasoning from the
// user-facing verdict in an evaluation response.
const VerdictDelimiter = "%%%"

// AffirmationPrefix marks a verdict that means "do not interrupt".
const AffirmationPrefix = "Keep up the good work"

// parseVerdict extracts the user-facing verdict from a raw evaluation
// response. ok is false when the delimiter is missing or nothing follows it;
// that outcome is "no verdict", not an error.
func parseVerdict(raw string) (verdict string, ok bool) {
	idx := strings.Index(raw, VerdictDelimiter)
	if idx < 0 {
		return "", false
	}
	verdict = strings.TrimSpace(raw[idx+len(VerdictDelimiter):])
	if verdict == "" {
		return "", false
	}
	return verdict, true
}

// isAffirmation reports whether a verdict signals "no interruption": it must
// begin with the exact affirmation literal.
func isAffirmation(verdict string) bool {
	return strings.HasPrefix(verdict, AffirmationPrefix)
}
