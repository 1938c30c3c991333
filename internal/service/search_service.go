package service

import (
	"context"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/phillipshepard1/phillipsnotes/internal/ai"
	"github.com/phillipshepard1/phillipsnotes/internal/config"
	"github.com/phillipshepard1/phillipsnotes/internal/model"
	appErr "github.com/phillipshepard1/phillipsnotes/internal/pkg/errors"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/mdtext"
	"github.com/phillipshepard1/phillipsnotes/internal/repo"
)

const (
	previewLength = 200

	// Similarity reported for recency-fallback results, which carry no real
	// similarity score.
	fallbackSimilarity = 0.5

	// How many leading chunks are read as representative vectors for a
	// related-documents query. Chunk 0 carries the title prefix, so it is
	// usually the best single summary of the note.
	representativeChunks = 3
)

type SearchService struct {
	index    ChunkIndex
	docs     DocumentStore
	embedder ai.IEmbedder
	cfg      config.RetrievalConfig
}

func NewSearchService(index ChunkIndex, docs DocumentStore, embedder ai.IEmbedder, cfg config.RetrievalConfig) *SearchService {
	return &SearchService{index: index, docs: docs, embedder: embedder, cfg: cfg}
}

// SemanticSearch ranks the owner's documents by similarity to a free-text
// query. Queries shorter than two characters return an empty list without
// touching the embedding provider.
func (s *SearchService) SemanticSearch(ctx context.Context, userID, query string, limit int) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.cfg.SearchLimit
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	vec, err := s.embedder.Embed(ctx, query, ai.TaskTypeQuery)
	if err != nil {
		logger.Error("failed to embed search query", zap.Error(err))
		return nil, err
	}
	matches, err := s.index.SearchSimilar(ctx, userID, vec, repo.SearchOptions{
		Threshold: s.cfg.SearchThreshold,
		Limit:     limit * 2,
	})
	if err != nil {
		logger.Error("similarity search failed", zap.Error(err))
		return nil, err
	}
	return rankMatches(matches, limit), nil
}

// RelatedDocuments finds the owner's other documents most similar to one
// source document. Two paths: the primary similarity search, and a recency
// fallback when the index query itself fails, so the operation always
// returns a list for that failure class.
func (s *SearchService) RelatedDocuments(ctx context.Context, userID, docID string, limit int) ([]model.SearchResult, error) {
	if docID == "" {
		return nil, appErr.ErrInvalid
	}
	if limit <= 0 {
		limit = s.cfg.RelatedLimit
	}
	chunks, err := s.index.ListByDocument(ctx, userID, docID, representativeChunks)
	if err != nil {
		return nil, err
	}
	var vec []float32
	for _, chunk := range chunks {
		if len(chunk.Embedding) > 0 {
			vec = chunk.Embedding
			break
		}
	}
	if vec == nil {
		// Not indexed yet; nothing to relate.
		return nil, nil
	}
	matches, err := s.index.SearchSimilar(ctx, userID, vec, repo.SearchOptions{
		Threshold:    s.cfg.RelatedThreshold,
		Limit:        limit * 2,
		ExcludeDocID: docID,
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("similarity search unavailable, falling back to recent documents",
			zap.String("user_id", userID), zap.String("doc_id", docID), zap.Error(err))
		return s.recentFallback(ctx, userID, docID, limit)
	}
	return rankMatches(matches, limit), nil
}

func (s *SearchService) recentFallback(ctx context.Context, userID, excludeID string, limit int) ([]model.SearchResult, error) {
	docs, err := s.docs.ListRecentExcluding(ctx, userID, excludeID, limit)
	if err != nil {
		return nil, err
	}
	results := make([]model.SearchResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, model.SearchResult{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Preview:    makePreview(mdtext.Extract(doc.Content)),
			Similarity: fallbackSimilarity,
		})
	}
	return results, nil
}

// rankMatches deduplicates chunk hits by document, keeping the best chunk
// per document, then orders by descending similarity.
func rankMatches(matches []model.ChunkMatch, limit int) []model.SearchResult {
	best := make(map[string]model.ChunkMatch, len(matches))
	for _, match := range matches {
		prev, ok := best[match.DocumentID]
		if !ok || match.Similarity > prev.Similarity {
			best[match.DocumentID] = match
		}
	}
	results := make([]model.SearchResult, 0, len(best))
	for _, match := range best {
		results = append(results, model.SearchResult{
			DocumentID: match.DocumentID,
			Title:      match.Title,
			Preview:    makePreview(match.Content),
			Similarity: match.Similarity,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func makePreview(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength])
}
