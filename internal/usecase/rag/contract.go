package rag

import (
	"context"

	"github.com/inkstream/bookqa/internal/domain"
	"github.com/inkstream/bookqa/internal/usecase/isolate"
	"github.com/inkstream/bookqa/internal/usecase/verify"
)

// Retriever finds context chunks for full-book queries.
type Retriever interface {
	Retrieve(ctx context.Context, query, bookID string) ([]domain.RetrievedContext, error)
}

// Guard scopes selection queries to the user's text and audits answers for
// leakage.
type Guard interface {
	Isolate(query, selectedText string) domain.IsolatedContext
	Validate(responseText, selectedText string) isolate.ValidationResult
}

// Synthesizer produces the answer from context chunks. It degrades internally
// and never errors.
type Synthesizer interface {
	Generate(ctx context.Context, query string, contextChunks []string) string
}

// Verifier grades the answer against its sources and checks citations.
type Verifier interface {
	Verify(ctx context.Context, query string, sourceChunks []string) verify.Verdict
	ValidateCitations(answer string, citations []domain.Citation) verify.CitationCheck
}

// Log is the append-only query/response store.
type Log interface {
	SaveQuery(ctx context.Context, q domain.Query) error
	SaveResponse(ctx context.Context, resp domain.Response) error
}

// Catalog answers book existence checks.
type Catalog interface {
	Exists(ctx context.Context, id string) (bool, error)
}
