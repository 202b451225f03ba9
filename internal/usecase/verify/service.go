// Package verify scores answers against their source chunks and checks
// citation integrity.
package verify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/inkstream/bookqa/internal/domain"
)

// DefaultThreshold is the mean relevance above which an answer counts as
// accurate.
const DefaultThreshold = 0.7

// Verdict is the accuracy assessment for one answer.
type Verdict struct {
	IsAccurate    bool
	AccuracyScore float64
	ChunkScores   []float64
}

// CitationCheck reports how many citation snippets quote the answer verbatim.
// Invalid citations are flagged, never dropped: the caller keeps them and may
// log or expose the counts.
type CitationCheck struct {
	Valid   int
	Invalid int
}

// Service grades answers by reranking their source chunks against the query.
type Service struct {
	rerank    Reranker
	threshold float64
	logger    *zap.Logger
}

// New creates a verifier.
func New(rerank Reranker, threshold float64, logger *zap.Logger) *Service {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{rerank: rerank, threshold: threshold, logger: logger}
}

// Verify reranks the source chunks against the query and averages the scores.
// No chunks or a provider failure both yield a conservative zero verdict:
// verification degrades to "not verified", it never fails the pipeline.
func (s *Service) Verify(ctx context.Context, query string, sourceChunks []string) Verdict {
	if len(sourceChunks) == 0 {
		return Verdict{}
	}

	results, err := s.rerank.Rerank(ctx, query, sourceChunks)
	if err != nil {
		s.logger.Warn("rerank failed, falling back to zero accuracy",
			zap.Int("chunks", len(sourceChunks)),
			zap.Error(err),
		)
		return Verdict{}
	}

	scores := make([]float64, len(sourceChunks))
	sum := 0.0
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(scores) {
			continue
		}
		scores[r.Index] = r.Score
	}
	for _, sc := range scores {
		sum += sc
	}

	mean := sum / float64(len(scores))
	return Verdict{
		IsAccurate:    mean >= s.threshold,
		AccuracyScore: mean,
		ChunkScores:   scores,
	}
}

// ValidateCitations counts how many snippets appear verbatim in the answer
// text.
func (s *Service) ValidateCitations(answer string, citations []domain.Citation) CitationCheck {
	var check CitationCheck
	for _, c := range citations {
		if c.TextSnippet != "" && strings.Contains(answer, c.TextSnippet) {
			check.Valid++
		} else {
			check.Invalid++
		}
	}
	return check
}
