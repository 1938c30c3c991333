package service

import (
	"context"
	"sort"

	"github.com/phillipshepard1/phillipsnotes/internal/model"
	appErr "github.com/phillipshepard1/phillipsnotes/internal/pkg/errors"
	"github.com/phillipshepard1/phillipsnotes/internal/repo"
)

type fakeEmbedder struct {
	calls int
	fn    func(text string, taskType string) ([]float32, error)
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(text, taskType)
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "test-embed"
}

// fakeIndex mirrors the vector index contract in memory. Similarity is the
// dot product of the query vector and stored embeddings, which matches
// cosine similarity for unit vectors.
type fakeIndex struct {
	chunks       []*model.NoteChunk
	titles       map[string]string
	searchErr    error
	replaceErr   error
	replaceCalls int
	lastMtime    int64
	lastOpts     repo.SearchOptions
}

func (f *fakeIndex) ReplaceForDocument(ctx context.Context, userID, docID string, indexedMtime int64, chunks []*model.NoteChunk) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaceCalls++
	f.lastMtime = indexedMtime
	kept := make([]*model.NoteChunk, 0, len(f.chunks)+len(chunks))
	for _, c := range f.chunks {
		if c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	f.chunks = append(kept, chunks...)
	return nil
}

func (f *fakeIndex) SearchSimilar(ctx context.Context, userID string, vec []float32, opts repo.SearchOptions) ([]model.ChunkMatch, error) {
	f.lastOpts = opts
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []model.ChunkMatch
	for _, c := range f.chunks {
		if c.UserID != userID {
			continue
		}
		if opts.ExcludeDocID != "" && c.DocumentID == opts.ExcludeDocID {
			continue
		}
		if opts.OnlyDocID != "" && c.DocumentID != opts.OnlyDocID {
			continue
		}
		sim := dot(vec, c.Embedding)
		if sim < opts.Threshold {
			continue
		}
		out = append(out, model.ChunkMatch{
			DocumentID: c.DocumentID,
			Title:      f.titles[c.DocumentID],
			Content:    c.Content,
			Similarity: sim,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeIndex) ListByDocument(ctx context.Context, userID, docID string, limit int) ([]*model.NoteChunk, error) {
	var out []*model.NoteChunk
	for _, c := range f.chunks {
		if c.UserID == userID && c.DocumentID == docID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeIndex) DeleteByDocument(ctx context.Context, userID, docID string) error {
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if c.UserID != userID || c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

func (f *fakeIndex) countChunks(docID string) int {
	n := 0
	for _, c := range f.chunks {
		if c.DocumentID == docID {
			n++
		}
	}
	return n
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := 0; i < len(a) && i < len(b); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

type fakeDocs struct {
	docs   map[string]*model.Document
	recent []model.Document
	stale  []model.Document
}

func (f *fakeDocs) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	doc, ok := f.docs[docID]
	if !ok || doc.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocs) ListRecentExcluding(ctx context.Context, userID, excludeID string, limit int) ([]model.Document, error) {
	var out []model.Document
	for _, doc := range f.recent {
		if doc.UserID != userID || doc.ID == excludeID {
			continue
		}
		out = append(out, doc)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDocs) ListStaleForIndex(ctx context.Context, limit int) ([]model.Document, error) {
	if limit > 0 && len(f.stale) > limit {
		return f.stale[:limit], nil
	}
	return f.stale, nil
}
