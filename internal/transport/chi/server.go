// Package chi is the HTTP transport: routing, DTO mapping and error
// translation.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inkstream/bookqa/internal/domain"
	healthuc "github.com/inkstream/bookqa/internal/usecase/health"
	ingestuc "github.com/inkstream/bookqa/internal/usecase/ingest"
	raguc "github.com/inkstream/bookqa/internal/usecase/rag"
)

// Answerer runs the question answering pipeline.
type Answerer interface {
	Answer(ctx context.Context, req raguc.Request) (raguc.Result, error)
}

// Ingester loads books into the catalog and vector index.
type Ingester interface {
	Ingest(ctx context.Context, id, title, author string, sections []domain.Section) (ingestuc.Result, error)
}

// BookReader serves book lookups.
type BookReader interface {
	Get(ctx context.Context, id string) (domain.Book, error)
}

// QueryReader serves the persisted query log.
type QueryReader interface {
	GetQuery(ctx context.Context, id string) (domain.Query, error)
	GetResponse(ctx context.Context, queryID string) (domain.Response, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	rag           Answerer
	ingest        Ingester
	books         BookReader
	queries       QueryReader
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	rag Answerer,
	ingest Ingester,
	books BookReader,
	queries QueryReader,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		rag:     rag,
		ingest:  ingest,
		books:   books,
		queries: queries,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrBookNotFound, http.StatusNotFound, CodeBookNotFound),
		sentinelHandler(domain.ErrQueryNotFound, http.StatusNotFound, CodeQueryNotFound),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, CodeEmbeddingProvider),
		sentinelHandler(domain.ErrGenerationProvider, http.StatusBadGateway, CodeGenerationProvider),
		sentinelHandler(domain.ErrRerankProvider, http.StatusBadGateway, CodeRerankProvider),
		sentinelHandler(domain.ErrVectorIndex, http.StatusServiceUnavailable, CodeVectorIndex),
	}
	return s
}

// RegisterRoutes mounts all API routes on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.AnswerQuery)
		r.Post("/query/selection", s.AnswerSelection)
		r.Get("/queries/{id}", s.GetQuery)
		r.Post("/books", s.IngestBook)
		r.Get("/books/{id}", s.GetBook)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// AnswerQuery handles POST /api/v1/query: a full-book question.
func (s *Server) AnswerQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.rag.Answer(r.Context(), raguc.Request{
		Query:            req.Query,
		Type:             domain.QueryFullBook,
		BookID:           req.BookID,
		SessionID:        req.SessionID,
		IncludeCitations: req.IncludeCitations,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resultToResponse(res))
}

// AnswerSelection handles POST /api/v1/query/selection: a question about
// user-highlighted text.
func (s *Server) AnswerSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.rag.Answer(r.Context(), raguc.Request{
		Query:        req.Query,
		Type:         domain.QueryUserSelection,
		SelectedText: req.SelectedText,
		SessionID:    req.SessionID,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resultToResponse(res))
}

// GetQuery handles GET /api/v1/queries/{id}: a logged query with its answer.
func (s *Server) GetQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	q, err := s.queries.GetQuery(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := storedQueryResponse{
		Query: storedQuery{
			ID:           q.ID,
			Text:         q.Text,
			Type:         string(q.Type),
			BookID:       q.BookID,
			SelectedText: q.SelectedText,
			SessionID:    q.SessionID,
			CreatedAt:    q.CreatedAt,
		},
	}

	// The response row may be missing if the pipeline died before persisting.
	answer, err := s.queries.GetResponse(r.Context(), id)
	if err == nil {
		resp.Response = &storedAnswer{
			ID:              answer.ID,
			Text:            answer.Text,
			Citations:       citationsToItems(answer.Citations),
			ConfidenceScore: answer.ConfidenceScore,
			CreatedAt:       answer.CreatedAt,
		}
	} else if !errors.Is(err, domain.ErrQueryNotFound) {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// IngestBook handles POST /api/v1/books.
func (s *Server) IngestBook(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.ingest.Ingest(r.Context(), req.ID, req.Title, req.Author, sectionsFromItems(req.Sections))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{
		BookID:         res.BookID,
		SectionCount:   res.SectionCount,
		ChunkCount:     res.ChunkCount,
		ReplacedChunks: res.ReplacedCount,
	})
}

// GetBook handles GET /api/v1/books/{id}.
func (s *Server) GetBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	book, err := s.books.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookResponse{
		ID:        book.ID,
		Title:     book.Title,
		Author:    book.Author,
		Sections:  sectionsToItems(book.Sections),
		CreatedAt: book.CreatedAt,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrBookNotFound,
		domain.ErrQueryNotFound,
		domain.ErrEmbeddingProvider,
		domain.ErrGenerationProvider,
		domain.ErrRerankProvider,
		domain.ErrVectorIndex,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
