// Package rag orchestrates the answer pipeline: context resolution, synthesis,
// verification and persistence.
package rag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inkstream/bookqa/internal/domain"
	"github.com/inkstream/bookqa/internal/metrics"
	"github.com/inkstream/bookqa/internal/usecase/verify"
)

// Canned answers for conversational dead ends. Both are persisted like any
// other response so the log stays complete.
const (
	// AnswerUnknownBook is returned when the requested book is not in the
	// catalog. Conversational by design: the query endpoints answer 200.
	AnswerUnknownBook = "I couldn't find that book in the library. Please check the book and try again."
	// AnswerNoContext is returned when retrieval finds nothing relevant.
	AnswerNoContext = "I couldn't find relevant information in the book to answer your question. Could you try rephrasing it?"

	// NoContextConfidence marks answers produced without any retrieved
	// context.
	NoContextConfidence = 0.1
)

// Config carries per-stage deadlines. Zero values disable the deadline.
type Config struct {
	RetrieveTimeout   time.Duration
	SynthesizeTimeout time.Duration
	VerifyTimeout     time.Duration
}

// Request is one question from a reader.
type Request struct {
	Query            string
	Type             domain.QueryType
	BookID           string
	SelectedText     string
	SessionID        string
	IncludeCitations bool
}

// Result is the finished pipeline output.
type Result struct {
	Query            domain.Query
	Response         domain.Response
	IsAccurate       bool
	IsolationOverlap float64
	Audited          bool
}

// Service drives a query through the fixed stage order: received, context
// resolved, synthesized, verified, persisted. Any escaping failure is wrapped
// with the stage it died at.
type Service struct {
	retriever Retriever
	guard     Guard
	synth     Synthesizer
	verifier  Verifier
	log       Log
	catalog   Catalog
	cfg       Config
	logger    *zap.Logger
}

// New creates the orchestrator.
func New(
	retriever Retriever,
	guard Guard,
	synth Synthesizer,
	verifier Verifier,
	log Log,
	catalog Catalog,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		retriever: retriever,
		guard:     guard,
		synth:     synth,
		verifier:  verifier,
		log:       log,
		catalog:   catalog,
		cfg:       cfg,
		logger:    logger,
	}
}

// Answer runs the full pipeline for one request.
func (s *Service) Answer(ctx context.Context, req Request) (Result, error) {
	query, err := domain.NewQuery(req.Query, req.Type, req.BookID, req.SelectedText, req.SessionID)
	if err != nil {
		return Result{}, domain.NewPipelineError(domain.StageReceived, err)
	}

	switch query.Type {
	case domain.QueryFullBook:
		return s.answerFullBook(ctx, query, req.IncludeCitations)
	default:
		return s.answerSelection(ctx, query)
	}
}

func (s *Service) answerFullBook(ctx context.Context, query domain.Query, includeCitations bool) (Result, error) {
	exists, err := s.catalog.Exists(ctx, query.BookID)
	if err != nil {
		return s.fail(query, domain.StageContextResolved, fmt.Errorf("check book: %w", err))
	}
	if !exists {
		return s.persistCanned(ctx, query, AnswerUnknownBook, 0, "no_context")
	}

	contexts, err := s.retrieve(ctx, query)
	if err != nil {
		return s.fail(query, domain.StageContextResolved, err)
	}

	// Nothing relevant: short-circuit with a canned answer. Synthesis and
	// verification are never invoked on an empty context.
	if len(contexts) == 0 {
		return s.persistCanned(ctx, query, AnswerNoContext, NoContextConfidence, "no_context")
	}

	chunkTexts := make([]string, len(contexts))
	chunkIDs := make([]string, len(contexts))
	for i, c := range contexts {
		chunkTexts[i] = c.Text
		chunkIDs[i] = c.ChunkID
	}

	answer := s.synthesize(ctx, query.Text, chunkTexts)
	verdict := s.verify(ctx, query.Text, chunkTexts)

	var citations []domain.Citation
	if includeCitations {
		citations = buildCitations(contexts)
		check := s.verifier.ValidateCitations(answer, citations)
		if check.Invalid > 0 {
			s.logger.Info("citations not quoted verbatim in answer",
				zap.String("query_id", query.ID),
				zap.Int("valid", check.Valid),
				zap.Int("invalid", check.Invalid),
			)
		}
	}

	resp, err := domain.NewResponse(query.ID, answer, citations, verdict.AccuracyScore, chunkIDs)
	if err != nil {
		return s.fail(query, domain.StageVerified, err)
	}

	if err := s.persist(ctx, query, resp); err != nil {
		return s.fail(query, domain.StagePersisted, err)
	}

	s.observe(query, resp, "answered")
	return Result{Query: query, Response: resp, IsAccurate: verdict.IsAccurate}, nil
}

// answerSelection never touches the vector index: the selection is the whole
// context. Selection answers carry no citations.
func (s *Service) answerSelection(ctx context.Context, query domain.Query) (Result, error) {
	iso := s.guard.Isolate(query.Text, query.SelectedText)

	answer := s.synthesize(ctx, query.Text, []string{iso.Text})
	verdict := s.verify(ctx, query.Text, []string{iso.Text})

	audit := s.guard.Validate(answer, query.SelectedText)
	if !audit.IsIsolated {
		s.logger.Warn("answer may have leaked beyond the selection",
			zap.String("query_id", query.ID),
			zap.Float64("isolation_overlap", audit.OverlapPercentage),
		)
	}

	resp, err := domain.NewResponse(query.ID, answer, nil, verdict.AccuracyScore, nil)
	if err != nil {
		return s.fail(query, domain.StageVerified, err)
	}

	if err := s.persist(ctx, query, resp); err != nil {
		return s.fail(query, domain.StagePersisted, err)
	}

	s.observe(query, resp, "answered")
	return Result{
		Query:            query,
		Response:         resp,
		IsAccurate:       verdict.IsAccurate,
		IsolationOverlap: audit.OverlapPercentage,
		Audited:          true,
	}, nil
}

func (s *Service) retrieve(ctx context.Context, query domain.Query) ([]domain.RetrievedContext, error) {
	ctx, cancel := s.deadline(ctx, s.cfg.RetrieveTimeout)
	defer cancel()
	return s.retriever.Retrieve(ctx, query.Text, query.BookID)
}

func (s *Service) synthesize(ctx context.Context, query string, chunks []string) string {
	ctx, cancel := s.deadline(ctx, s.cfg.SynthesizeTimeout)
	defer cancel()
	return s.synth.Generate(ctx, query, chunks)
}

func (s *Service) verify(ctx context.Context, query string, chunks []string) verify.Verdict {
	ctx, cancel := s.deadline(ctx, s.cfg.VerifyTimeout)
	defer cancel()
	return s.verifier.Verify(ctx, query, chunks)
}

func (s *Service) deadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// persistCanned stores a query with a canned answer. The query is still
// logged: dead ends are product signal, not noise.
func (s *Service) persistCanned(ctx context.Context, query domain.Query, answer string, confidence float64, outcome string) (Result, error) {
	resp, err := domain.NewResponse(query.ID, answer, nil, confidence, nil)
	if err != nil {
		return s.fail(query, domain.StageVerified, err)
	}
	if err := s.persist(ctx, query, resp); err != nil {
		return s.fail(query, domain.StagePersisted, err)
	}
	s.observe(query, resp, outcome)
	return Result{Query: query, Response: resp}, nil
}

// persist writes the query first. A response row never exists without its
// owning query.
func (s *Service) persist(ctx context.Context, query domain.Query, resp domain.Response) error {
	if err := s.log.SaveQuery(ctx, query); err != nil {
		return fmt.Errorf("save query: %w", err)
	}
	if err := s.log.SaveResponse(ctx, resp); err != nil {
		return fmt.Errorf("save response: %w", err)
	}
	return nil
}

func (s *Service) fail(query domain.Query, stage domain.Stage, err error) (Result, error) {
	metrics.QueriesTotal.WithLabelValues(string(query.Type), "error").Inc()
	s.logger.Error("answer pipeline failed",
		zap.String("query_id", query.ID),
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	return Result{}, domain.NewPipelineError(stage, err)
}

func (s *Service) observe(query domain.Query, resp domain.Response, outcome string) {
	metrics.QueriesTotal.WithLabelValues(string(query.Type), outcome).Inc()
	metrics.AnswerConfidence.Observe(resp.ConfidenceScore)
}

// buildCitations maps each retrieved chunk to one citation with a bounded
// snippet.
func buildCitations(contexts []domain.RetrievedContext) []domain.Citation {
	citations := make([]domain.Citation, 0, len(contexts))
	for _, c := range contexts {
		citations = append(citations, domain.Citation{
			SectionTitle: c.SectionTitle,
			PageNumber:   c.PageStart,
			TextSnippet:  domain.TruncateSnippet(c.Text),
			Confidence:   c.RelevanceScore,
		})
	}
	return citations
}
