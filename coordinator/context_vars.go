package coordinator

import (
	"regexp"
	"strconv"
)

var (
	quarterRe = regexp.MustCompile(`(?i)\bQ([1-4])\b`)
	yearRe    = regexp.MustCompile(`\b(20\d{2})\b`)
)

// extractContextVariables derives session context from temporal references
// in the user message. A mention of "Q1 2024" folds current_quarter=Q1 and
// current_year=2024 into the session so follow-up questions like "and for
// Q2?" can be translated with that context.
func extractContextVariables(message string) map[string]any {
	delta := map[string]any{}
	if m := quarterRe.FindStringSubmatch(message); m != nil {
		delta["current_quarter"] = "Q" + m[1]
	}
	if m := yearRe.FindStringSubmatch(message); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil {
			delta["current_year"] = year
		}
	}
	return delta
}
