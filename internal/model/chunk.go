package model

// NoteChunk is one embedded slice of a document's plain text. Positions are
// dense and zero-based per document; the whole set is replaced on re-index,
// never edited in place.
type NoteChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	Position   int       `json:"position"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"embedding,omitempty"`
	ModelName  string    `json:"model_name"`
	Ctime      int64     `json:"ctime"`
}

// ChunkMatch is a single nearest-neighbour hit from the vector index.
type ChunkMatch struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

// SearchResult is one ranked document returned by semantic search or
// related-documents, deduplicated to the best-matching chunk.
type SearchResult struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Preview    string  `json:"preview"`
	Similarity float32 `json:"similarity"`
}
