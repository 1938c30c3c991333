package service

import (
	"context"

	"github.com/phillipshepard1/phillipsnotes/internal/model"
	"github.com/phillipshepard1/phillipsnotes/internal/repo"
)

// DocumentStore is the slice of the documents table the retrieval engine
// needs. *repo.DocumentRepo implements it.
type DocumentStore interface {
	GetByID(ctx context.Context, userID, docID string) (*model.Document, error)
	ListRecentExcluding(ctx context.Context, userID, excludeID string, limit int) ([]model.Document, error)
	ListStaleForIndex(ctx context.Context, limit int) ([]model.Document, error)
}

// ChunkIndex is the vector index contract. *repo.ChunkRepo implements it.
type ChunkIndex interface {
	ReplaceForDocument(ctx context.Context, userID, docID string, indexedMtime int64, chunks []*model.NoteChunk) error
	SearchSimilar(ctx context.Context, userID string, vec []float32, opts repo.SearchOptions) ([]model.ChunkMatch, error)
	ListByDocument(ctx context.Context, userID, docID string, limit int) ([]*model.NoteChunk, error)
	DeleteByDocument(ctx context.Context, userID, docID string) error
}
