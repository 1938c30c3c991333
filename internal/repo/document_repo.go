package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/phillipshepard1/phillipsnotes/internal/model"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/dbutil"
	appErr "github.com/phillipshepard1/phillipsnotes/internal/pkg/errors"
)

const (
	DocumentStateNormal  = 1
	DocumentStateDeleted = 2
)

var documentFields = []string{"id", "user_id", "title", "content", "state", "ctime", "mtime"}

// DocumentRepo is the retrieval engine's view of the documents table. The
// editing surface owns writes to it; this service mostly reads, plus the
// Create/Delete paths used by tests and permanent-delete cleanup.
type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":      doc.ID,
		"user_id": doc.UserID,
		"title":   doc.Title,
		"content": doc.Content,
		"state":   doc.State,
		"ctime":   doc.Ctime,
		"mtime":   doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err = r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
		"state":   DocumentStateNormal,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var doc model.Document
	if err := row.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Content, &doc.State, &doc.Ctime, &doc.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// ListRecentExcluding returns the owner's most recently modified documents,
// skipping excludeID. This feeds the related-documents recency fallback.
func (r *DocumentRepo) ListRecentExcluding(ctx context.Context, userID, excludeID string, limit int) ([]model.Document, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"state":    DocumentStateNormal,
		"id !=":    excludeID,
		"_orderby": "mtime desc",
		"_limit":   []uint{uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Content, &doc.State, &doc.Ctime, &doc.Mtime); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListStaleForIndex returns documents whose content changed after their last
// successful index run (or that were never indexed).
func (r *DocumentRepo) ListStaleForIndex(ctx context.Context, limit int) ([]model.Document, error) {
	const query = `
		SELECT d.id, d.user_id, d.title, d.content, d.state, d.ctime, d.mtime
		FROM documents d
		LEFT JOIN chunk_index_state s ON d.id = s.document_id
		WHERE (s.document_id IS NULL OR d.mtime > s.indexed_mtime) AND d.state = $1
		ORDER BY d.mtime ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, DocumentStateNormal, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Content, &doc.State, &doc.Ctime, &doc.Mtime); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) Delete(ctx context.Context, userID, docID string) error {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
	}
	update := map[string]interface{}{
		"state": DocumentStateDeleted,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
