// Package ingest loads books: chunking, embedding and indexing their sections.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkstream/bookqa/internal/chunk"
	"github.com/inkstream/bookqa/internal/domain"
)

// Config tunes the chunking pass.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Result summarizes one ingestion.
type Result struct {
	BookID        string
	SectionCount  int
	ChunkCount    int
	ReplacedCount int
}

// Service runs the ingestion pipeline: persist metadata, split sections into
// chunks, embed them and upsert into the vector index.
type Service struct {
	catalog Catalog
	index   Index
	embed   Embedder
	cache   Invalidator
	cfg     Config
	logger  *zap.Logger
}

// New creates an ingester. cache may be nil when existence answers are not
// cached.
func New(catalog Catalog, index Index, embed Embedder, cache Invalidator, cfg Config, logger *zap.Logger) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = chunk.DefaultOverlap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalog, index: index, embed: embed, cache: cache, cfg: cfg, logger: logger}
}

// Ingest stores a book and indexes its content. A non-empty id re-ingests an
// existing book: its previous vectors are dropped first so stale chunks never
// linger in the index. Embedding failures abort the whole ingestion; a book
// without vectors would silently answer nothing.
func (s *Service) Ingest(ctx context.Context, id, title, author string, sections []domain.Section) (Result, error) {
	book, err := domain.NewBook(title, author, sections)
	if err != nil {
		return Result{}, err
	}
	if id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return Result{}, fmt.Errorf("%w: invalid book id %q", domain.ErrValidation, id)
		}
		book.ID = id
	}

	if err := s.catalog.Create(ctx, book); err != nil {
		return Result{}, fmt.Errorf("store book: %w", err)
	}

	chunks := s.splitSections(book)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	batch, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(batch.Embeddings) != len(chunks) {
		return Result{}, fmt.Errorf("%w: embedded %d of %d chunks",
			domain.ErrEmbeddingProvider, len(batch.Embeddings), len(chunks))
	}

	if err := s.index.EnsureIndex(ctx); err != nil {
		return Result{}, fmt.Errorf("ensure index: %w", err)
	}

	replaced, err := s.index.DeleteBook(ctx, book.ID)
	if err != nil {
		return Result{}, fmt.Errorf("drop stale chunks: %w", err)
	}

	if err := s.index.Upsert(ctx, chunks, batch.Embeddings); err != nil {
		return Result{}, fmt.Errorf("index chunks: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(book.ID)
	}

	s.logger.Info("book ingested",
		zap.String("book_id", book.ID),
		zap.Int("sections", len(book.Sections)),
		zap.Int("chunks", len(chunks)),
		zap.Int("replaced", replaced),
		zap.Int("tokens", batch.TotalTokens),
	)

	return Result{
		BookID:        book.ID,
		SectionCount:  len(book.Sections),
		ChunkCount:    len(chunks),
		ReplacedCount: replaced,
	}, nil
}

// splitSections chunks each section independently so no chunk spans a section
// boundary. Order is global across the book to preserve reading order.
func (s *Service) splitSections(book domain.Book) []domain.Chunk {
	var chunks []domain.Chunk
	order := 0
	for _, sec := range book.Sections {
		for _, text := range chunk.Split(sec.Content, s.cfg.ChunkSize, s.cfg.ChunkOverlap) {
			chunks = append(chunks, domain.Chunk{
				ID:           uuid.NewString(),
				BookID:       book.ID,
				SectionTitle: sec.Title,
				Text:         text,
				Order:        order,
				PageStart:    sec.PageStart,
				PageEnd:      sec.PageEnd,
			})
			order++
		}
	}
	return chunks
}
