// Package chunkindex persists book chunks and their vectors in the Redis FT
// index and serves KNN lookups over them.
package chunkindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/inkstream/bookqa/internal/db"
	"github.com/inkstream/bookqa/internal/domain"
)

// store is the consumer interface for the chunk index.
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	Ping(ctx context.Context) error
}

// Config holds index construction parameters.
type Config struct {
	KeyPrefix       string
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
}

// Repository owns the chunk hash layout and the FT index over it.
type Repository struct {
	store  store
	cfg    Config
	logger *zap.Logger
}

// New creates a chunk index repository.
func New(s store, cfg Config, logger *zap.Logger) *Repository {
	return &Repository{store: s, cfg: cfg, logger: logger}
}

func (r *Repository) indexName() string {
	return r.cfg.KeyPrefix + "chunks_idx"
}

func (r *Repository) chunkPrefix() string {
	return r.cfg.KeyPrefix + "chunk:"
}

func (r *Repository) chunkKey(bookID, chunkID string) string {
	return r.chunkPrefix() + bookID + ":" + chunkID
}

// EnsureIndex creates the FT index if it does not exist yet. The vector field
// dimensionality is fixed by the embedding model for the process lifetime.
func (r *Repository) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("%w: probe index: %v", domain.ErrVectorIndex, err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:        r.indexName(),
		StorageType: db.StorageHash,
		Prefixes:    []string{r.chunkPrefix()},
		Fields: []db.IndexField{
			{Name: "book_id", Type: db.IndexFieldTag},
			{Name: "order", Type: db.IndexFieldNumeric},
			{
				Name:              "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.cfg.Dimensions,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.cfg.HNSWM,
				VectorEFConstruct: r.cfg.HNSWEFConstruct,
			},
		},
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: index definition: %v", domain.ErrVectorIndex, err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("%w: create index: %v", domain.ErrVectorIndex, err)
	}

	r.logger.Info("Created chunk index",
		zap.String("index", r.indexName()),
		zap.Int("dimensions", r.cfg.Dimensions))
	return nil
}

// Upsert writes chunks and their vectors. vectors[i] belongs to chunks[i].
func (r *Repository) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks vs %d vectors", domain.ErrValidation, len(chunks), len(vectors))
	}

	items := make([]db.HashSetItem, len(chunks))
	for i, c := range chunks {
		items[i] = db.HashSetItem{
			Key: r.chunkKey(c.BookID, c.ID),
			Fields: map[string]string{
				"chunk_id":      c.ID,
				"book_id":       c.BookID,
				"section_title": c.SectionTitle,
				"text":          c.Text,
				"order":         strconv.Itoa(c.Order),
				"page_start":    strconv.Itoa(c.PageStart),
				"page_end":      strconv.Itoa(c.PageEnd),
				"vector":        encodeVector(vectors[i]),
			},
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: upsert chunks: %v", domain.ErrVectorIndex, err)
	}
	return nil
}

// Search runs a KNN lookup and maps hits back to retrieval contexts, in the
// index's native descending-similarity order. No matches is an empty slice,
// not an error.
func (r *Repository) Search(
	ctx context.Context, vector []float32, bookID string, k int,
) ([]domain.RetrievedContext, error) {
	q := &db.KNNQuery{
		IndexName: r.indexName(),
		Vector:    vector,
		K:         k,
		ReturnFields: []string{
			"chunk_id", "book_id", "section_title", "text",
			"order", "page_start", "page_end", "__vector_score",
		},
	}
	if bookID != "" {
		q.Tags = map[string]string{"book_id": bookID}
	}

	res, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: knn search: %v", domain.ErrVectorIndex, err)
	}

	contexts := make([]domain.RetrievedContext, 0, len(res.Entries))
	for _, e := range res.Entries {
		contexts = append(contexts, entryToContext(e))
	}
	return contexts, nil
}

// DeleteBook removes every chunk belonging to a book. Used before
// re-ingestion so stale vectors never survive.
func (r *Repository) DeleteBook(ctx context.Context, bookID string) (int, error) {
	keys, err := r.store.Scan(ctx, r.chunkPrefix()+bookID+":*")
	if err != nil {
		return 0, fmt.Errorf("%w: scan book chunks: %v", domain.ErrVectorIndex, err)
	}

	for _, key := range keys {
		if err := r.store.Del(ctx, key); err != nil {
			return 0, fmt.Errorf("%w: delete chunk %s: %v", domain.ErrVectorIndex, key, err)
		}
	}
	return len(keys), nil
}

// Ping reports vector store connectivity for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func entryToContext(e db.SearchEntry) domain.RetrievedContext {
	order, _ := strconv.Atoi(e.Fields["order"])
	pageStart, _ := strconv.Atoi(e.Fields["page_start"])
	pageEnd, _ := strconv.Atoi(e.Fields["page_end"])

	return domain.RetrievedContext{
		ChunkID:        e.Fields["chunk_id"],
		BookID:         e.Fields["book_id"],
		Text:           e.Fields["text"],
		RelevanceScore: e.Score,
		SectionTitle:   e.Fields["section_title"],
		PageStart:      pageStart,
		PageEnd:        pageEnd,
		Order:          order,
	}
}

func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
