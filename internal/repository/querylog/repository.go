// Package querylog persists the append-only Query/Response log in Postgres.
package querylog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkstream/bookqa/internal/domain"
)

// Repository writes queries and their responses. Rows are immutable once
// written; there are no update paths.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a Postgres query log repository.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

type citationRow struct {
	SectionTitle string  `json:"section_title"`
	PageNumber   int     `json:"page_number"`
	TextSnippet  string  `json:"text_snippet"`
	Confidence   float64 `json:"confidence"`
}

// SaveQuery appends a query row. Must commit before SaveResponse is called
// for the same query: a response is never written without its owner.
func (r *Repository) SaveQuery(ctx context.Context, q domain.Query) error {
	id, err := uuid.Parse(q.ID)
	if err != nil {
		return fmt.Errorf("%w: invalid query id %q", domain.ErrValidation, q.ID)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO queries (id, text, type, book_id, selected_text, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, q.Text, string(q.Type), q.BookID, q.SelectedText, q.SessionID, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	return nil
}

// SaveResponse appends the response row owned by its query.
func (r *Repository) SaveResponse(ctx context.Context, resp domain.Response) error {
	id, err := uuid.Parse(resp.ID)
	if err != nil {
		return fmt.Errorf("%w: invalid response id %q", domain.ErrValidation, resp.ID)
	}
	queryID, err := uuid.Parse(resp.QueryID)
	if err != nil {
		return fmt.Errorf("%w: invalid query id %q", domain.ErrValidation, resp.QueryID)
	}

	rows := make([]citationRow, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		rows = append(rows, citationRow{
			SectionTitle: c.SectionTitle,
			PageNumber:   c.PageNumber,
			TextSnippet:  c.TextSnippet,
			Confidence:   c.Confidence,
		})
	}
	citations, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO responses (id, query_id, text, citations, confidence_score, retrieved_chunk_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, queryID, resp.Text, citations, resp.ConfidenceScore, resp.RetrievedChunkIDs, resp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

// GetQuery returns a logged query by id.
func (r *Repository) GetQuery(ctx context.Context, id string) (domain.Query, error) {
	queryID, err := uuid.Parse(id)
	if err != nil {
		return domain.Query{}, fmt.Errorf("%w: %q", domain.ErrQueryNotFound, id)
	}

	var q domain.Query
	var qt string
	err = r.db.QueryRow(ctx, `
		SELECT id, text, type, book_id, selected_text, session_id, created_at
		FROM queries WHERE id = $1`, queryID,
	).Scan(&q.ID, &q.Text, &qt, &q.BookID, &q.SelectedText, &q.SessionID, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Query{}, fmt.Errorf("%w: %q", domain.ErrQueryNotFound, id)
		}
		return domain.Query{}, fmt.Errorf("select query: %w", err)
	}
	q.Type = domain.QueryType(qt)

	return q, nil
}

// GetResponse returns the response owned by a query.
func (r *Repository) GetResponse(ctx context.Context, queryID string) (domain.Response, error) {
	qid, err := uuid.Parse(queryID)
	if err != nil {
		return domain.Response{}, fmt.Errorf("%w: %q", domain.ErrQueryNotFound, queryID)
	}

	var resp domain.Response
	var citations []byte
	err = r.db.QueryRow(ctx, `
		SELECT id, query_id, text, citations, confidence_score, retrieved_chunk_ids, created_at
		FROM responses WHERE query_id = $1`, qid,
	).Scan(&resp.ID, &resp.QueryID, &resp.Text, &citations,
		&resp.ConfidenceScore, &resp.RetrievedChunkIDs, &resp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Response{}, fmt.Errorf("%w: no response for query %q", domain.ErrQueryNotFound, queryID)
		}
		return domain.Response{}, fmt.Errorf("select response: %w", err)
	}

	var rows []citationRow
	if err := json.Unmarshal(citations, &rows); err != nil {
		return domain.Response{}, fmt.Errorf("unmarshal citations: %w", err)
	}
	for _, c := range rows {
		resp.Citations = append(resp.Citations, domain.Citation{
			SectionTitle: c.SectionTitle,
			PageNumber:   c.PageNumber,
			TextSnippet:  c.TextSnippet,
			Confidence:   c.Confidence,
		})
	}

	return resp, nil
}

// Ping reports Postgres connectivity for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
