package chi

import (
	"time"

	"github.com/inkstream/bookqa/internal/domain"
	"github.com/inkstream/bookqa/internal/usecase/rag"
)

// Error codes returned to clients.
const (
	CodeBadRequest         = "bad_request"
	CodeValidationFailed   = "validation_failed"
	CodeBookNotFound       = "book_not_found"
	CodeQueryNotFound      = "query_not_found"
	CodeEmbeddingProvider  = "embedding_provider_error"
	CodeGenerationProvider = "generation_provider_error"
	CodeRerankProvider     = "rerank_provider_error"
	CodeVectorIndex        = "vector_index_unavailable"
	CodeInternalError      = "internal_error"
	CodeUnauthorized       = "unauthorized"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type queryRequest struct {
	Query            string `json:"query"`
	BookID           string `json:"book_id"`
	SessionID        string `json:"session_id,omitempty"`
	IncludeCitations bool   `json:"include_citations,omitempty"`
}

type selectionQueryRequest struct {
	Query        string `json:"query"`
	SelectedText string `json:"selected_text"`
	SessionID    string `json:"session_id,omitempty"`
}

type citationItem struct {
	SectionTitle string  `json:"section_title"`
	PageNumber   int     `json:"page_number"`
	TextSnippet  string  `json:"text_snippet"`
	Confidence   float64 `json:"confidence"`
}

type queryResponse struct {
	ID               string         `json:"id"`
	Query            string         `json:"query"`
	Response         string         `json:"response"`
	Citations        []citationItem `json:"citations"`
	ConfidenceScore  float64        `json:"confidence_score"`
	IsAccurate       bool           `json:"is_accurate"`
	QueryType        string         `json:"query_type"`
	IsolationOverlap *float64       `json:"isolation_overlap,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

type sectionItem struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
}

type ingestRequest struct {
	ID       string        `json:"id,omitempty"`
	Title    string        `json:"title"`
	Author   string        `json:"author"`
	Sections []sectionItem `json:"sections"`
}

type ingestResponse struct {
	BookID         string `json:"book_id"`
	SectionCount   int    `json:"section_count"`
	ChunkCount     int    `json:"chunk_count"`
	ReplacedChunks int    `json:"replaced_chunks"`
}

type bookResponse struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Author    string        `json:"author"`
	Sections  []sectionItem `json:"sections"`
	CreatedAt time.Time     `json:"created_at"`
}

type storedQueryResponse struct {
	Query    storedQuery   `json:"query"`
	Response *storedAnswer `json:"response,omitempty"`
}

type storedQuery struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Type         string    `json:"type"`
	BookID       string    `json:"book_id,omitempty"`
	SelectedText string    `json:"selected_text,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type storedAnswer struct {
	ID              string         `json:"id"`
	Text            string         `json:"text"`
	Citations       []citationItem `json:"citations"`
	ConfidenceScore float64        `json:"confidence_score"`
	CreatedAt       time.Time      `json:"created_at"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func citationsToItems(citations []domain.Citation) []citationItem {
	items := make([]citationItem, 0, len(citations))
	for _, c := range citations {
		items = append(items, citationItem{
			SectionTitle: c.SectionTitle,
			PageNumber:   c.PageNumber,
			TextSnippet:  c.TextSnippet,
			Confidence:   c.Confidence,
		})
	}
	return items
}

func resultToResponse(res rag.Result) queryResponse {
	resp := queryResponse{
		ID:              res.Query.ID,
		Query:           res.Query.Text,
		Response:        res.Response.Text,
		Citations:       citationsToItems(res.Response.Citations),
		ConfidenceScore: res.Response.ConfidenceScore,
		IsAccurate:      res.IsAccurate,
		QueryType:       string(res.Query.Type),
		CreatedAt:       res.Response.CreatedAt,
	}
	if res.Audited {
		overlap := res.IsolationOverlap
		resp.IsolationOverlap = &overlap
	}
	return resp
}

func sectionsToItems(sections []domain.Section) []sectionItem {
	items := make([]sectionItem, 0, len(sections))
	for _, s := range sections {
		items = append(items, sectionItem{
			Title:     s.Title,
			Content:   s.Content,
			PageStart: s.PageStart,
			PageEnd:   s.PageEnd,
		})
	}
	return items
}

func sectionsFromItems(items []sectionItem) []domain.Section {
	sections := make([]domain.Section, 0, len(items))
	for _, it := range items {
		sections = append(sections, domain.Section{
			Title:     it.Title,
			Content:   it.Content,
			PageStart: it.PageStart,
			PageEnd:   it.PageEnd,
		})
	}
	return sections
}
