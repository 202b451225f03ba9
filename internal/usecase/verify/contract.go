package verify

import (
	"context"

	"github.com/inkstream/bookqa/internal/domain"
)

// Reranker scores documents against a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]domain.RerankResult, error)
}
