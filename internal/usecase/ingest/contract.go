package ingest

import (
	"context"

	"github.com/inkstream/bookqa/internal/domain"
)

// Catalog persists book metadata and sections.
type Catalog interface {
	Create(ctx context.Context, book domain.Book) error
}

// Index stores chunk vectors for retrieval.
type Index interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	DeleteBook(ctx context.Context, bookID string) (int, error)
}

// Embedder vectorizes chunk texts in bulk.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Invalidator drops cached existence answers after a re-ingest.
type Invalidator interface {
	Invalidate(id string)
}
