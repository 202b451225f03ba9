// Package synthesize builds grounded prompts and turns context chunks into
// answers.
package synthesize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FallbackAnswer is returned when the generation provider fails. Synthesis is
// never fatal for the pipeline: a degraded answer beats a dropped request.
const FallbackAnswer = "I apologize, but I was unable to generate an answer at this time. Please try again."

const promptTemplate = `You are a reading assistant answering questions about a book.

Answer the question using ONLY the context below. Do not use outside knowledge.
If the context does not contain enough information to answer, say so explicitly.

Context:
%s

Question: %s

Answer:`

const emptyContextNote = "(no context found)"

// Service renders the grounding prompt and calls the generation provider.
type Service struct {
	gen    Generator
	logger *zap.Logger
}

// New creates a synthesizer.
func New(gen Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gen: gen, logger: logger}
}

// Generate answers the query from the given context chunks. Provider failures
// degrade to FallbackAnswer instead of erroring; the caller decides how to
// score such answers.
func (s *Service) Generate(ctx context.Context, query string, contextChunks []string) string {
	prompt := buildPrompt(query, contextChunks)

	answer, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("synthesis failed, returning fallback answer",
			zap.Int("context_chunks", len(contextChunks)),
			zap.Error(err),
		)
		return FallbackAnswer
	}
	return answer
}

// buildPrompt joins chunks with blank lines so the model sees chunk
// boundaries. An empty context is stated outright rather than omitted, which
// steers the model toward admitting it cannot answer.
func buildPrompt(query string, chunks []string) string {
	contextBlock := emptyContextNote
	if len(chunks) > 0 {
		contextBlock = strings.Join(chunks, "\n\n")
	}
	return fmt.Sprintf(promptTemplate, contextBlock, query)
}
