package synthesize

import (
	"context"
	"strings"
	"testing"

	"github.com/inkstream/bookqa/internal/domain"
)

type mockGenerator struct {
	answer string
	err    error
	calls  int
	prompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.calls++
	m.prompt = prompt
	return m.answer, m.err
}

func TestGenerate_PromptContainsQueryAndChunks(t *testing.T) {
	gen := &mockGenerator{answer: "The fox jumps."}
	svc := New(gen, nil)

	got := svc.Generate(context.Background(), "what does the fox do", []string{"chunk one", "chunk two"})
	if got != "The fox jumps." {
		t.Errorf("unexpected answer: %q", got)
	}
	if !strings.Contains(gen.prompt, "what does the fox do") {
		t.Error("expected prompt to contain the query")
	}
	if !strings.Contains(gen.prompt, "chunk one\n\nchunk two") {
		t.Error("expected chunks joined by a blank line")
	}
	if !strings.Contains(gen.prompt, "ONLY the context") {
		t.Error("expected grounding instruction in the prompt")
	}
}

func TestGenerate_ProviderFailureReturnsFallback(t *testing.T) {
	gen := &mockGenerator{err: domain.ErrGenerationProvider}
	svc := New(gen, nil)

	got := svc.Generate(context.Background(), "q", []string{"chunk"})
	if got != FallbackAnswer {
		t.Errorf("expected fallback answer, got %q", got)
	}
}

func TestGenerate_EmptyContextIsStatedInPrompt(t *testing.T) {
	gen := &mockGenerator{answer: "I don't have enough context."}
	svc := New(gen, nil)

	svc.Generate(context.Background(), "q", nil)
	if !strings.Contains(gen.prompt, emptyContextNote) {
		t.Error("expected prompt to state that no context was found")
	}
}
