package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnippetMaxLen bounds citation snippets taken from source chunks.
const SnippetMaxLen = 200

// Citation points from an answer back to the source text that supports it.
type Citation struct {
	SectionTitle string
	PageNumber   int
	TextSnippet  string
	Confidence   float64
}

// Response is the synthesized answer for a query. Created once after
// synthesis, owned 1:1 by its query, immutable thereafter.
type Response struct {
	ID                string
	QueryID           string
	Text              string
	Citations         []Citation
	ConfidenceScore   float64
	RetrievedChunkIDs []string
	CreatedAt         time.Time
}

// NewResponse builds a response owned by queryID. The confidence score is
// clamped into [0,1].
func NewResponse(
	queryID, text string, citations []Citation, confidence float64, chunkIDs []string,
) (Response, error) {
	if queryID == "" {
		return Response{}, fmt.Errorf("%w: response requires an owning query", ErrValidation)
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return Response{
		ID:                uuid.NewString(),
		QueryID:           queryID,
		Text:              text,
		Citations:         citations,
		ConfidenceScore:   confidence,
		RetrievedChunkIDs: chunkIDs,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// TruncateSnippet cuts s to SnippetMaxLen characters for use as a citation
// snippet. Counts runes, not bytes, so multi-byte text is never cut mid-rune.
// Short texts pass through unchanged.
func TruncateSnippet(s string) string {
	if len(s) <= SnippetMaxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= SnippetMaxLen {
		return s
	}
	return string(runes[:SnippetMaxLen])
}
