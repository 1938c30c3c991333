package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/phillipshepard1/phillipsnotes/internal/model"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/dbutil"
	appErr "github.com/phillipshepard1/phillipsnotes/internal/pkg/errors"
)

// ChunkRepo is the vector index: chunk rows keyed by owning document and
// position, with a pgvector embedding column for nearest-neighbour search.
// Every query carries the user_id filter; it is the authorization boundary.
type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

type SearchOptions struct {
	Threshold    float32
	Limit        int
	ExcludeDocID string
	OnlyDocID    string
}

// ReplaceForDocument swaps a document's whole chunk set in one transaction.
// Concurrent replacements for the same document serialize on the row locks;
// the last writer's set wins.
func (r *ChunkRepo) ReplaceForDocument(ctx context.Context, userID, docID string, indexedMtime int64, chunks []*model.NoteChunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_chunks WHERE document_id = $1 AND user_id = $2`, docID, userID); err != nil {
		return err
	}
	const insert = `
		INSERT INTO note_chunks (id, document_id, user_id, position, content, token_count, embedding, model_name, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	modelName := ""
	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, insert,
			chunk.ID,
			docID,
			userID,
			chunk.Position,
			chunk.Content,
			chunk.TokenCount,
			pgvector.NewVector(chunk.Embedding),
			chunk.ModelName,
			chunk.Ctime,
		); err != nil {
			// A racing replacement for the same document can trip the
			// (document_id, position) unique constraint.
			if dbutil.IsConflict(err) {
				return appErr.ErrConflict
			}
			return err
		}
		modelName = chunk.ModelName
	}
	const upsertState = `
		INSERT INTO chunk_index_state (document_id, user_id, indexed_mtime, chunk_count, model_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id) DO UPDATE SET
			indexed_mtime = EXCLUDED.indexed_mtime,
			chunk_count = EXCLUDED.chunk_count,
			model_name = EXCLUDED.model_name
	`
	if _, err := tx.ExecContext(ctx, upsertState, docID, userID, indexedMtime, len(chunks), modelName); err != nil {
		return err
	}
	return tx.Commit()
}

// SearchSimilar runs a cosine nearest-neighbour query scoped to one owner.
// Matches below opts.Threshold are filtered in the query itself.
func (r *ChunkRepo) SearchSimilar(ctx context.Context, userID string, vec []float32, opts SearchOptions) ([]model.ChunkMatch, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("search limit must be positive")
	}
	var sb strings.Builder
	sb.WriteString(`
		SELECT c.document_id, d.title, c.content, 1 - (c.embedding <=> $1) AS similarity
		FROM note_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.user_id = $2 AND c.embedding IS NOT NULL AND d.state = `)
	sb.WriteString(strconv.Itoa(DocumentStateNormal))
	args := []interface{}{pgvector.NewVector(vec), userID}
	if opts.ExcludeDocID != "" {
		args = append(args, opts.ExcludeDocID)
		sb.WriteString(" AND c.document_id <> $" + strconv.Itoa(len(args)))
	}
	if opts.OnlyDocID != "" {
		args = append(args, opts.OnlyDocID)
		sb.WriteString(" AND c.document_id = $" + strconv.Itoa(len(args)))
	}
	args = append(args, opts.Threshold)
	sb.WriteString(" AND 1 - (c.embedding <=> $1) >= $" + strconv.Itoa(len(args)))
	args = append(args, opts.Limit)
	sb.WriteString(" ORDER BY c.embedding <=> $1 LIMIT $" + strconv.Itoa(len(args)))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []model.ChunkMatch
	for rows.Next() {
		var match model.ChunkMatch
		if err := rows.Scan(&match.DocumentID, &match.Title, &match.Content, &match.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

// ListByDocument returns a document's chunks in position order, embeddings
// included.
func (r *ChunkRepo) ListByDocument(ctx context.Context, userID, docID string, limit int) ([]*model.NoteChunk, error) {
	const query = `
		SELECT id, document_id, user_id, position, content, token_count, embedding, model_name, ctime
		FROM note_chunks
		WHERE document_id = $1 AND user_id = $2
		ORDER BY position ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, docID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []*model.NoteChunk
	for rows.Next() {
		var chunk model.NoteChunk
		var embedding pgvector.Vector
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.UserID, &chunk.Position, &chunk.Content, &chunk.TokenCount, &embedding, &chunk.ModelName, &chunk.Ctime); err != nil {
			return nil, err
		}
		chunk.Embedding = embedding.Slice()
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepo) DeleteByDocument(ctx context.Context, userID, docID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_chunks WHERE document_id = $1 AND user_id = $2`, docID, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_index_state WHERE document_id = $1 AND user_id = $2`, docID, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ChunkRepo) CountByDocument(ctx context.Context, userID, docID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM note_chunks WHERE document_id = $1 AND user_id = $2`, docID, userID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
