// Package isolate restricts selection-mode queries to user-supplied text and
// audits answers for context leakage.
package isolate

import (
	"strings"
	"unicode/utf8"

	"github.com/inkstream/bookqa/internal/domain"
)

// DefaultThreshold is the overlap above which an answer counts as isolated.
const DefaultThreshold = 0.7

// Service builds isolated contexts and runs the post-hoc leak audit. It never
// touches the vector index.
type Service struct {
	threshold float64
}

// New creates an isolation guard.
func New(threshold float64) *Service {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Service{threshold: threshold}
}

// ValidationResult is the leak-audit outcome. A heuristic signal, not a hard
// guarantee: it is logged and surfaced, never used to redact the answer.
type ValidationResult struct {
	IsIsolated        bool
	OverlapPercentage float64
}

// Isolate wraps the user's selection as the whole context for the query.
// Always succeeds structurally; empty selections are rejected upstream at
// input validation.
func (s *Service) Isolate(_ string, selectedText string) domain.IsolatedContext {
	return domain.IsolatedContext{
		Text:   selectedText,
		Length: utf8.RuneCountInString(selectedText),
	}
}

// Validate measures how much of the answer's vocabulary stays inside the
// selection: 1 - |responseWords - selectedWords| / |responseWords|, with 1.0
// for an empty answer.
func (s *Service) Validate(responseText, selectedText string) ValidationResult {
	respWords := tokenSet(responseText)
	if len(respWords) == 0 {
		return ValidationResult{IsIsolated: true, OverlapPercentage: 1.0}
	}

	selWords := tokenSet(selectedText)

	outside := 0
	for w := range respWords {
		if _, ok := selWords[w]; !ok {
			outside++
		}
	}

	overlap := 1.0 - float64(outside)/float64(len(respWords))
	return ValidationResult{
		IsIsolated:        overlap > s.threshold,
		OverlapPercentage: overlap,
	}
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
