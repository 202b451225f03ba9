package chunkindex

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/inkstream/bookqa/internal/db"
	"github.com/inkstream/bookqa/internal/domain"
)

type mockStore struct {
	hsetItems    []db.HashSetItem
	hsetErr      error
	delKeys      []string
	scanKeys     []string
	scanPattern  string
	createCalled bool
	createErr    error
	indexExists  bool
	existsErr    error
	knnQuery     *db.KNNQuery
	knnResult    *db.SearchResult
	knnErr       error
}

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	m.hsetItems = items
	return m.hsetErr
}

func (m *mockStore) Del(_ context.Context, key string) error {
	m.delKeys = append(m.delKeys, key)
	return nil
}

func (m *mockStore) Scan(_ context.Context, pattern string) ([]string, error) {
	m.scanPattern = pattern
	return m.scanKeys, nil
}

func (m *mockStore) CreateIndex(_ context.Context, _ *db.IndexDefinition) error {
	m.createCalled = true
	return m.createErr
}

func (m *mockStore) IndexExists(_ context.Context, _ string) (bool, error) {
	return m.indexExists, m.existsErr
}

func (m *mockStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.knnQuery = q
	if m.knnErr != nil {
		return nil, m.knnErr
	}
	if m.knnResult != nil {
		return m.knnResult, nil
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Ping(_ context.Context) error { return nil }

func newRepo(s *mockStore) *Repository {
	return New(s, Config{KeyPrefix: "bookqa:", Dimensions: 4}, zap.NewNop())
}

func TestEnsureIndex_SkipsWhenPresent(t *testing.T) {
	s := &mockStore{indexExists: true}

	if err := newRepo(s).EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.createCalled {
		t.Error("expected no FT.CREATE when index exists")
	}
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	s := &mockStore{}

	if err := newRepo(s).EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.createCalled {
		t.Error("expected FT.CREATE for missing index")
	}
}

func TestEnsureIndex_ToleratesConcurrentCreate(t *testing.T) {
	s := &mockStore{createErr: db.ErrIndexExists}

	if err := newRepo(s).EnsureIndex(context.Background()); err != nil {
		t.Fatalf("expected concurrent create to be tolerated, got %v", err)
	}
}

func TestUpsert_MismatchedLengths(t *testing.T) {
	s := &mockStore{}
	chunks := []domain.Chunk{{ID: "c1", BookID: "b1", Text: "x"}}

	err := newRepo(s).Upsert(context.Background(), chunks, nil)

	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpsert_WritesChunkHashes(t *testing.T) {
	s := &mockStore{}
	chunks := []domain.Chunk{
		{ID: "c1", BookID: "b1", SectionTitle: "Intro", Text: "first", Order: 0, PageStart: 1, PageEnd: 2},
		{ID: "c2", BookID: "b1", SectionTitle: "Intro", Text: "second", Order: 1, PageStart: 2, PageEnd: 3},
	}
	vectors := [][]float32{{0.1, 0.2, 0.3, 0.4}, {0.5, 0.6, 0.7, 0.8}}

	if err := newRepo(s).Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(s.hsetItems) != 2 {
		t.Fatalf("expected 2 hash writes, got %d", len(s.hsetItems))
	}
	if s.hsetItems[0].Key != "bookqa:chunk:b1:c1" {
		t.Errorf("unexpected key %q", s.hsetItems[0].Key)
	}
	if s.hsetItems[1].Fields["text"] != "second" {
		t.Errorf("unexpected text %q", s.hsetItems[1].Fields["text"])
	}
	if s.hsetItems[0].Fields["order"] != "0" || s.hsetItems[1].Fields["order"] != "1" {
		t.Error("expected chunk order preserved in fields")
	}
	if len(s.hsetItems[0].Fields["vector"]) != 16 {
		t.Errorf("expected 16-byte vector blob, got %d", len(s.hsetItems[0].Fields["vector"]))
	}
}

func TestSearch_MapsEntriesAndFilter(t *testing.T) {
	s := &mockStore{knnResult: &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			{Key: "bookqa:chunk:b1:c1", Score: 0.9, Fields: map[string]string{
				"chunk_id": "c1", "book_id": "b1", "section_title": "Intro",
				"text": "first", "order": "0", "page_start": "1", "page_end": "2",
			}},
			{Key: "bookqa:chunk:b1:c2", Score: 0.8, Fields: map[string]string{
				"chunk_id": "c2", "book_id": "b1", "text": "second", "order": "1",
			}},
		},
	}}

	got, err := newRepo(s).Search(context.Background(), []float32{0.1, 0.2, 0.3, 0.4}, "b1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 contexts, got %d", len(got))
	}
	if got[0].ChunkID != "c1" || got[0].RelevanceScore != 0.9 {
		t.Errorf("unexpected first hit: %+v", got[0])
	}
	if got[0].SectionTitle != "Intro" || got[0].PageStart != 1 || got[0].PageEnd != 2 {
		t.Errorf("expected citation metadata mapped, got %+v", got[0])
	}
	if s.knnQuery.Tags["book_id"] != "b1" {
		t.Errorf("expected book_id tag filter, got %v", s.knnQuery.Tags)
	}
	if s.knnQuery.K != 5 {
		t.Errorf("expected k=5, got %d", s.knnQuery.K)
	}
}

func TestSearch_EmptyResultIsNotError(t *testing.T) {
	s := &mockStore{}

	got, err := newRepo(s).Search(context.Background(), []float32{0.1}, "", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
	if s.knnQuery.Tags != nil {
		t.Errorf("expected no tag filter without book scope, got %v", s.knnQuery.Tags)
	}
}

func TestSearch_WrapsStoreError(t *testing.T) {
	s := &mockStore{knnErr: errors.New("connection refused")}

	_, err := newRepo(s).Search(context.Background(), []float32{0.1}, "b1", 3)

	if !errors.Is(err, domain.ErrVectorIndex) {
		t.Fatalf("expected vector index error, got %v", err)
	}
}

func TestDeleteBook_RemovesAllChunks(t *testing.T) {
	s := &mockStore{scanKeys: []string{"bookqa:chunk:b1:c1", "bookqa:chunk:b1:c2"}}

	n, err := newRepo(s).DeleteBook(context.Background(), "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n != 2 {
		t.Errorf("expected 2 deletions, got %d", n)
	}
	if s.scanPattern != "bookqa:chunk:b1:*" {
		t.Errorf("unexpected scan pattern %q", s.scanPattern)
	}
	if len(s.delKeys) != 2 {
		t.Errorf("expected 2 DEL calls, got %d", len(s.delKeys))
	}
}
