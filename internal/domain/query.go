package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QueryType distinguishes full-book retrieval from user-selection isolation.
type QueryType string

const (
	// QueryFullBook answers against the whole book via vector retrieval.
	QueryFullBook QueryType = "FULL_BOOK"
	// QueryUserSelection answers against user-highlighted text only.
	QueryUserSelection QueryType = "USER_SELECTION"
)

// Query is an inbound question. Append-only: created once per request,
// immutable afterwards. Exactly one of BookID / SelectedText is populated,
// matching Type.
type Query struct {
	ID           string
	Text         string
	Type         QueryType
	BookID       string
	SelectedText string
	SessionID    string
	CreatedAt    time.Time
}

// NewQuery builds a validated query. Enforces the shape invariant: FULL_BOOK
// requires a book id and no selection, USER_SELECTION the reverse.
func NewQuery(text string, qt QueryType, bookID, selectedText, sessionID string) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return Query{}, fmt.Errorf("%w: query text is required", ErrValidation)
	}

	switch qt {
	case QueryFullBook:
		if bookID == "" {
			return Query{}, fmt.Errorf("%w: book_id is required for full-book queries", ErrValidation)
		}
		if selectedText != "" {
			return Query{}, fmt.Errorf("%w: selected_text must be empty for full-book queries", ErrValidation)
		}
	case QueryUserSelection:
		if strings.TrimSpace(selectedText) == "" {
			return Query{}, fmt.Errorf("%w: selected_text is required for selection queries", ErrValidation)
		}
		if bookID != "" {
			return Query{}, fmt.Errorf("%w: book_id must be empty for selection queries", ErrValidation)
		}
	default:
		return Query{}, fmt.Errorf("%w: unsupported query type %q", ErrValidation, qt)
	}

	return Query{
		ID:           uuid.NewString(),
		Text:         text,
		Type:         qt,
		BookID:       bookID,
		SelectedText: selectedText,
		SessionID:    sessionID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
