package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals malformed or missing request fields.
	ErrValidation = errors.New("validation failed")
	// ErrBookNotFound signals a missing book.
	ErrBookNotFound = errors.New("book not found")
	// ErrQueryNotFound signals a missing query record.
	ErrQueryNotFound = errors.New("query not found")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrGenerationProvider signals a generation provider failure.
	ErrGenerationProvider = errors.New("generation provider error")
	// ErrRerankProvider signals a rerank provider failure.
	ErrRerankProvider = errors.New("rerank provider error")
	// ErrVectorIndex signals a vector index failure.
	ErrVectorIndex = errors.New("vector index error")
)

// Stage names a step of the answer pipeline for error context.
type Stage string

const (
	// StageReceived is the input validation step.
	StageReceived Stage = "received"
	// StageContextResolved is the retrieval / isolation step.
	StageContextResolved Stage = "context_resolved"
	// StageSynthesized is the answer generation step.
	StageSynthesized Stage = "synthesized"
	// StageVerified is the accuracy verification step.
	StageVerified Stage = "verified"
	// StagePersisted is the database write step.
	StagePersisted Stage = "persisted"
)

// PipelineError wraps a failure at a named pipeline stage. The orchestrator is
// the only producer; transport maps it by the wrapped sentinel.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError creates a pipeline error for the given stage.
func NewPipelineError(stage Stage, err error) error {
	return &PipelineError{Stage: stage, Err: err}
}
