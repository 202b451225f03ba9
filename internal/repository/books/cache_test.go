package books

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inkstream/bookqa/internal/domain"
)

type mockCatalog struct {
	exists      bool
	existsErr   error
	existsCalls int
	getCalls    int
}

func (m *mockCatalog) Get(_ context.Context, _ string) (domain.Book, error) {
	m.getCalls++
	return domain.Book{ID: "b1"}, nil
}

func (m *mockCatalog) Exists(_ context.Context, _ string) (bool, error) {
	m.existsCalls++
	return m.exists, m.existsErr
}

func TestExists_CachesPositiveAnswer(t *testing.T) {
	inner := &mockCatalog{exists: true}
	c := NewCachedCatalog(inner, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := c.Exists(context.Background(), "b1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatal("expected book to exist")
		}
	}

	if inner.existsCalls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.existsCalls)
	}
}

func TestExists_DoesNotCacheNegativeAnswer(t *testing.T) {
	inner := &mockCatalog{exists: false}
	c := NewCachedCatalog(inner, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := c.Exists(context.Background(), "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Fatal("expected book to be missing")
		}
	}

	if inner.existsCalls != 2 {
		t.Errorf("expected negative answers to bypass cache, got %d inner calls", inner.existsCalls)
	}
}

func TestExists_PropagatesError(t *testing.T) {
	inner := &mockCatalog{existsErr: errors.New("db down")}
	c := NewCachedCatalog(inner, time.Minute)

	_, err := c.Exists(context.Background(), "b1")
	if err == nil {
		t.Fatal("expected error from inner catalog")
	}
}

func TestInvalidate_DropsCachedAnswer(t *testing.T) {
	inner := &mockCatalog{exists: true}
	c := NewCachedCatalog(inner, time.Minute)

	if _, err := c.Exists(context.Background(), "b1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Invalidate("b1")
	if _, err := c.Exists(context.Background(), "b1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.existsCalls != 2 {
		t.Errorf("expected invalidation to force a fresh lookup, got %d inner calls", inner.existsCalls)
	}
}

func TestGet_AlwaysDelegates(t *testing.T) {
	inner := &mockCatalog{}
	c := NewCachedCatalog(inner, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background(), "b1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if inner.getCalls != 2 {
		t.Errorf("expected Get to bypass cache, got %d inner calls", inner.getCalls)
	}
}
