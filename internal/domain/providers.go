package domain

import "context"

// Generator produces a grounded answer from a synthesis prompt. Sampling
// parameters are fixed at construction.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RerankResult scores one document against a query. Index refers to the
// position in the submitted document slice.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker scores documents for relevance to a query, one result per
// document, input order preserved.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error)
}
