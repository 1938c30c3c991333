package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/phillipshepard1/phillipsnotes/internal/ai"
	"github.com/phillipshepard1/phillipsnotes/internal/chunker"
	"github.com/phillipshepard1/phillipsnotes/internal/model"
	appErr "github.com/phillipshepard1/phillipsnotes/internal/pkg/errors"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/mdtext"
)

// IndexerService keeps a document's chunk set consistent with its content.
// Each call is stateless; debouncing ("content has settled") is the caller's
// job. Failures never block the document save that triggered them.
type IndexerService struct {
	docs     DocumentStore
	index    ChunkIndex
	embedder ai.IEmbedder
	opts     chunker.Options
}

func NewIndexerService(docs DocumentStore, index ChunkIndex, embedder ai.IEmbedder, opts chunker.Options) *IndexerService {
	return &IndexerService{docs: docs, index: index, embedder: embedder, opts: opts}
}

// IndexDocument re-chunks and re-embeds one document, then swaps its whole
// chunk set. All embeddings are gathered before any write, so an embedding
// failure leaves the previous chunk set untouched.
func (s *IndexerService) IndexDocument(ctx context.Context, userID, docID string) error {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("doc_id", docID))
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return err
	}
	plain := mdtext.Extract(doc.Content)
	pieces := chunker.SplitDocument(doc.Title, plain, s.opts)

	now := time.Now().UnixMilli()
	modelName := s.embedder.ModelName()
	chunks := make([]*model.NoteChunk, 0, len(pieces))
	for _, piece := range pieces {
		emb, err := s.embedder.Embed(ctx, piece.Content, ai.TaskTypeDocument)
		if err != nil {
			logger.Error("embedding failed, previous chunk set kept", zap.Int("position", piece.Index), zap.Error(err))
			return err
		}
		chunks = append(chunks, &model.NoteChunk{
			ID:         newID(),
			DocumentID: docID,
			UserID:     userID,
			Position:   piece.Index,
			Content:    piece.Content,
			TokenCount: piece.TokenCount,
			Embedding:  emb,
			ModelName:  modelName,
			Ctime:      now,
		})
	}
	if err := s.index.ReplaceForDocument(ctx, userID, docID, doc.Mtime, chunks); err != nil {
		logger.Error("failed to replace chunk set", zap.Error(err))
		return err
	}
	logger.Info("document indexed", zap.Int("chunks", len(chunks)))
	return nil
}

// RemoveDocument drops a document's chunk set after a permanent delete.
func (s *IndexerService) RemoveDocument(ctx context.Context, userID, docID string) error {
	return s.index.DeleteByDocument(ctx, userID, docID)
}

// ProcessStaleDocuments re-indexes documents whose content changed after
// their last index run. Best effort: individual failures are logged and the
// sweep moves on.
func (s *IndexerService) ProcessStaleDocuments(ctx context.Context, limit int) error {
	docs, err := s.docs.ListStaleForIndex(ctx, limit)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	failed := 0
	for i := range docs {
		doc := &docs[i]
		if err := s.IndexDocument(ctx, doc.UserID, doc.ID); err != nil {
			// Deleted between the listing and the fetch.
			if appErr.IsNotFound(err) {
				continue
			}
			failed++
			logger.Warn("stale re-index failed", zap.String("doc_id", doc.ID), zap.Error(err))
		}
	}
	if len(docs) > 0 {
		logger.Info("stale re-index sweep finished", zap.Int("total", len(docs)), zap.Int("failed", failed))
	}
	return nil
}
