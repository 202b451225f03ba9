package retrieve

import (
	"context"

	"github.com/inkstream/bookqa/internal/domain"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index serves KNN lookups over stored chunks.
type Index interface {
	Search(ctx context.Context, vector []float32, bookID string, k int) ([]domain.RetrievedContext, error)
}
