// Package retrieve turns a query into a ranked list of context chunks.
package retrieve

import (
	"context"
	"fmt"
	"sort"

	"github.com/inkstream/bookqa/internal/domain"
)

// DefaultLimit is how many chunks a query retrieves when unconfigured.
const DefaultLimit = 5

// Service embeds the query once and runs a single KNN search. Pure read: no
// side effects on the index.
type Service struct {
	embed Embedder
	index Index
	limit int
}

// New creates a retriever.
func New(embed Embedder, index Index, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{embed: embed, index: index, limit: limit}
}

// Retrieve returns up to the configured limit of chunks scoped to bookID,
// descending by relevance. An empty result means no relevant content, not a
// failure.
func (s *Service) Retrieve(ctx context.Context, query, bookID string) ([]domain.RetrievedContext, error) {
	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	contexts, err := s.index.Search(ctx, emb.Embedding, bookID, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	sort.SliceStable(contexts, func(i, j int) bool {
		return contexts[i].RelevanceScore > contexts[j].RelevanceScore
	})

	return contexts, nil
}
