package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/inkstream/bookqa/internal/domain"
	healthuc "github.com/inkstream/bookqa/internal/usecase/health"
	ingestuc "github.com/inkstream/bookqa/internal/usecase/ingest"
	raguc "github.com/inkstream/bookqa/internal/usecase/rag"
)

type mockAnswerer struct {
	result raguc.Result
	err    error
	req    raguc.Request
}

func (m *mockAnswerer) Answer(_ context.Context, req raguc.Request) (raguc.Result, error) {
	m.req = req
	return m.result, m.err
}

type mockIngester struct {
	result ingestuc.Result
	err    error
}

func (m *mockIngester) Ingest(_ context.Context, _, _, _ string, _ []domain.Section) (ingestuc.Result, error) {
	return m.result, m.err
}

type mockBookReader struct {
	book domain.Book
	err  error
}

func (m *mockBookReader) Get(_ context.Context, _ string) (domain.Book, error) {
	return m.book, m.err
}

type mockQueryReader struct {
	query       domain.Query
	queryErr    error
	response    domain.Response
	responseErr error
}

func (m *mockQueryReader) GetQuery(_ context.Context, _ string) (domain.Query, error) {
	return m.query, m.queryErr
}

func (m *mockQueryReader) GetResponse(_ context.Context, _ string) (domain.Response, error) {
	return m.response, m.responseErr
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report {
	return m.report
}

type serverFixture struct {
	rag     *mockAnswerer
	ingest  *mockIngester
	books   *mockBookReader
	queries *mockQueryReader
	health  *mockHealth
	router  chi.Router
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		rag:     &mockAnswerer{},
		ingest:  &mockIngester{},
		books:   &mockBookReader{},
		queries: &mockQueryReader{},
		health:  &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}},
	}
	srv := NewServer(f.rag, f.ingest, f.books, f.queries, f.health, zap.NewNop())
	f.router = chi.NewRouter()
	srv.RegisterRoutes(f.router)
	return f
}

func TestAnswerQuery_OK(t *testing.T) {
	f := newServerFixture()
	f.rag.result = raguc.Result{
		Query:    domain.Query{ID: "q1", Text: "What color is the whale?", Type: domain.QueryFullBook},
		Response: domain.Response{Text: "The whale is white.", ConfidenceScore: 0.85, Citations: []domain.Citation{{SectionTitle: "Ch1"}}},
	}

	body := `{"query":"What color is the whale?","book_id":"b1","include_citations":true}`
	req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp queryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Response != "The whale is white." || resp.ConfidenceScore != 0.85 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Query != "What color is the whale?" {
		t.Errorf("expected the query text echoed back, got %q", resp.Query)
	}
	if len(resp.Citations) != 1 {
		t.Errorf("expected 1 citation, got %d", len(resp.Citations))
	}
	if resp.IsolationOverlap != nil {
		t.Error("full-book answers carry no isolation overlap")
	}
	if f.rag.req.Type != domain.QueryFullBook || !f.rag.req.IncludeCitations {
		t.Errorf("unexpected pipeline request: %+v", f.rag.req)
	}
}

func TestAnswerQuery_ResponseFieldNames(t *testing.T) {
	f := newServerFixture()
	f.rag.result = raguc.Result{
		Query:    domain.Query{ID: "q1", Text: "What color is the whale?", Type: domain.QueryFullBook},
		Response: domain.Response{Text: "White.", ConfidenceScore: 0.5},
	}

	body := `{"query":"What color is the whale?","book_id":"b1"}`
	req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var fields map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&fields); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, key := range []string{"id", "query", "response", "citations", "confidence_score", "query_type"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing field %q", key)
		}
	}
	if fields["id"] != "q1" || fields["query"] != "What color is the whale?" || fields["response"] != "White." {
		t.Errorf("unexpected payload: %v", fields)
	}
	for _, key := range []string{"query_id", "answer"} {
		if _, ok := fields[key]; ok {
			t.Errorf("unexpected field %q", key)
		}
	}
}

func TestAnswerQuery_MalformedBody_400(t *testing.T) {
	f := newServerFixture()

	req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAnswerQuery_ValidationError_400(t *testing.T) {
	f := newServerFixture()
	f.rag.err = domain.NewPipelineError(domain.StageReceived, domain.ErrValidation)

	req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader(`{"query":""}`))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != CodeValidationFailed {
		t.Errorf("got code %s, want %s", errResp.Code, CodeValidationFailed)
	}
}

func TestAnswerQuery_ProviderError_502(t *testing.T) {
	f := newServerFixture()
	f.rag.err = domain.NewPipelineError(domain.StageContextResolved, domain.ErrEmbeddingProvider)

	req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader(`{"query":"q","book_id":"b1"}`))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadGateway)
	}
}

func TestAnswerQuery_UnknownPipelineError_500(t *testing.T) {
	f := newServerFixture()
	f.rag.err = domain.NewPipelineError(domain.StagePersisted, context.DeadlineExceeded)

	req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader(`{"query":"q","book_id":"b1"}`))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Message != "internal error" {
		t.Errorf("internals leaked to client: %q", errResp.Message)
	}
}

func TestAnswerSelection_OK(t *testing.T) {
	f := newServerFixture()
	f.rag.result = raguc.Result{
		Query:            domain.Query{ID: "q1", Type: domain.QueryUserSelection},
		Response:         domain.Response{Text: "It means the narrator introduces himself."},
		IsolationOverlap: 0.9,
		Audited:          true,
	}

	body := `{"query":"What does this mean?","selected_text":"Call me Ishmael."}`
	req := httptest.NewRequest("POST", "/api/v1/query/selection", strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp queryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IsolationOverlap == nil || *resp.IsolationOverlap != 0.9 {
		t.Errorf("expected isolation overlap 0.9, got %v", resp.IsolationOverlap)
	}
	if len(resp.Citations) != 0 {
		t.Errorf("selection answers carry no citations, got %d", len(resp.Citations))
	}
	if f.rag.req.Type != domain.QueryUserSelection || f.rag.req.SelectedText != "Call me Ishmael." {
		t.Errorf("unexpected pipeline request: %+v", f.rag.req)
	}
}

func TestIngestBook_Created(t *testing.T) {
	f := newServerFixture()
	f.ingest.result = ingestuc.Result{BookID: "b1", SectionCount: 2, ChunkCount: 14}

	body := `{"title":"Moby Dick","author":"Melville","sections":[{"title":"Ch1","content":"text","page_start":1,"page_end":9}]}`
	req := httptest.NewRequest("POST", "/api/v1/books", strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BookID != "b1" || resp.ChunkCount != 14 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestIngestBook_ValidationError_400(t *testing.T) {
	f := newServerFixture()
	f.ingest.err = domain.ErrValidation

	req := httptest.NewRequest("POST", "/api/v1/books", strings.NewReader(`{"title":""}`))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetBook_OK(t *testing.T) {
	f := newServerFixture()
	f.books.book = domain.Book{ID: "b1", Title: "Moby Dick", Author: "Melville"}

	req := httptest.NewRequest("GET", "/api/v1/books/b1", http.NoBody)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp bookResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Title != "Moby Dick" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestGetBook_NotFound_404(t *testing.T) {
	f := newServerFixture()
	f.books.err = domain.ErrBookNotFound

	req := httptest.NewRequest("GET", "/api/v1/books/missing", http.NoBody)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != CodeBookNotFound {
		t.Errorf("got code %s, want %s", errResp.Code, CodeBookNotFound)
	}
}

func TestGetQuery_WithResponse(t *testing.T) {
	f := newServerFixture()
	f.queries.query = domain.Query{ID: "q1", Text: "question", Type: domain.QueryFullBook, BookID: "b1"}
	f.queries.response = domain.Response{ID: "r1", QueryID: "q1", Text: "answer", ConfidenceScore: 0.8}

	req := httptest.NewRequest("GET", "/api/v1/queries/q1", http.NoBody)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp storedQueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Query.ID != "q1" || resp.Response == nil || resp.Response.Text != "answer" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestGetQuery_ResponseMissingIsNotAnError(t *testing.T) {
	f := newServerFixture()
	f.queries.query = domain.Query{ID: "q1", Type: domain.QueryFullBook, BookID: "b1"}
	f.queries.responseErr = domain.ErrQueryNotFound

	req := httptest.NewRequest("GET", "/api/v1/queries/q1", http.NoBody)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp storedQueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Response != nil {
		t.Errorf("expected no response payload, got %+v", resp.Response)
	}
}

func TestGetQuery_NotFound_404(t *testing.T) {
	f := newServerFixture()
	f.queries.queryErr = domain.ErrQueryNotFound

	req := httptest.NewRequest("GET", "/api/v1/queries/missing", http.NoBody)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHealthCheck_Healthy_200(t *testing.T) {
	f := newServerFixture()
	f.health.report = healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
	}

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestHealthCheck_Degraded_503(t *testing.T) {
	f := newServerFixture()
	f.health.report = healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError},
	}

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}
