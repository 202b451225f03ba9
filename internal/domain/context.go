package domain

// RetrievedContext is one retrieval hit. Ephemeral: produced per query,
// consumed within the same request, never persisted.
type RetrievedContext struct {
	ChunkID        string
	BookID         string
	Text           string
	RelevanceScore float64
	SectionTitle   string
	PageStart      int
	PageEnd        int
	Order          int
}

// IsolatedContext is the context for a user-selection query: exactly the
// user-supplied text, nothing from the vector index. Length counts characters,
// not bytes.
type IsolatedContext struct {
	Text   string
	Length int
}

// Chunk is a bounded span of source text, the unit of retrieval. Immutable
// once embedded; deleted only when its book is re-ingested.
type Chunk struct {
	ID           string
	BookID       string
	SectionTitle string
	Text         string
	Order        int
	PageStart    int
	PageEnd      int
}
