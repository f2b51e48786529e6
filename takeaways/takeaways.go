// Package takeaways parses the summary format returned by the generation
// backend when a session is closed.
package takeaways

import "strings"

// Marker separates the bullet section from the reflection section in a
// summary response.
const Marker = "REFLECTION:"

// FallbackReflection is used when a response carries no reflection.
const FallbackReflection = "The unexamined life is not worth living."

// Result is the structured summary of a finished dialogue.
type Result struct {
	Points     []string
	Reflection string
}

// Extract parses a freeform summary response. It is total: any input yields
// a result, worst case an empty point list and the fallback reflection.
// Lines in the bullet section not starting with "-" are dropped.
func Extract(raw string) Result {
	pointsPart := raw
	reflection := ""

	if idx := strings.Index(raw, Marker); idx >= 0 {
		pointsPart = raw[:idx]
		reflection = strings.TrimSpace(raw[idx+len(Marker):])
	}
	if reflection == "" {
		reflection = FallbackReflection
	}

	var points []string
	for _, line := range strings.Split(pointsPart, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-") {
			points = append(points, strings.TrimSpace(strings.TrimPrefix(line, "-")))
		}
	}

	return Result{Points: points, Reflection: reflection}
}
