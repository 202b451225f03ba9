package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Section is one titled span of a book's source text.
type Section struct {
	Title     string
	Content   string
	PageStart int
	PageEnd   int
}

// Book is an ingested source document. Sections are kept in ingestion order.
type Book struct {
	ID        string
	Title     string
	Author    string
	Sections  []Section
	CreatedAt time.Time
}

// NewBook builds a validated book. At least one non-empty section is required.
func NewBook(title, author string, sections []Section) (Book, error) {
	if strings.TrimSpace(title) == "" {
		return Book{}, fmt.Errorf("%w: book title is required", ErrValidation)
	}
	if len(sections) == 0 {
		return Book{}, fmt.Errorf("%w: at least one section is required", ErrValidation)
	}
	for i, s := range sections {
		if strings.TrimSpace(s.Content) == "" {
			return Book{}, fmt.Errorf("%w: section %d has no content", ErrValidation, i)
		}
	}

	return Book{
		ID:        uuid.NewString(),
		Title:     title,
		Author:    author,
		Sections:  sections,
		CreatedAt: time.Now().UTC(),
	}, nil
}
