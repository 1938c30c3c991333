package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phillipshepard1/phillipsnotes/internal/model"
	appErr "github.com/phillipshepard1/phillipsnotes/internal/pkg/errors"
	"github.com/phillipshepard1/phillipsnotes/internal/repo"
	"github.com/phillipshepard1/phillipsnotes/test/testutil"
)

func TestDocumentRepoCRUDAndIsolation(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	now := time.Now().UnixMilli()
	doc := &model.Document{
		ID:      "doc-1",
		UserID:  "user-1",
		Title:   "title",
		Content: "content",
		State:   repo.DocumentStateNormal,
		Ctime:   now,
		Mtime:   now,
	}
	require.NoError(t, docs.Create(context.Background(), doc))

	fetched, err := docs.GetByID(context.Background(), "user-1", "doc-1")
	require.NoError(t, err)
	require.Equal(t, "title", fetched.Title)

	_, err = docs.GetByID(context.Background(), "user-2", "doc-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, docs.Delete(context.Background(), "user-1", "doc-1"))

	_, err = docs.GetByID(context.Background(), "user-1", "doc-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDocumentRepoListRecentExcluding(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	base := time.Now().UnixMilli()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, docs.Create(context.Background(), &model.Document{
			ID:      id,
			UserID:  "user-1",
			Title:   id,
			Content: "content " + id,
			State:   repo.DocumentStateNormal,
			Ctime:   base + int64(i),
			Mtime:   base + int64(i),
		}))
	}
	require.NoError(t, docs.Create(context.Background(), &model.Document{
		ID:      "other-user",
		UserID:  "user-2",
		Title:   "other",
		Content: "content",
		State:   repo.DocumentStateNormal,
		Ctime:   base + 100,
		Mtime:   base + 100,
	}))

	recent, err := docs.ListRecentExcluding(context.Background(), "user-1", "new", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "mid", recent[0].ID)
	require.Equal(t, "old", recent[1].ID)
}

func TestDocumentRepoListStaleForIndex(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	now := time.Now().UnixMilli()

	// Never indexed.
	require.NoError(t, docs.Create(context.Background(), &model.Document{
		ID: "unindexed", UserID: "user-1", Title: "a", Content: "c",
		State: repo.DocumentStateNormal, Ctime: now, Mtime: now,
	}))
	// Indexed, then modified.
	require.NoError(t, docs.Create(context.Background(), &model.Document{
		ID: "stale", UserID: "user-1", Title: "b", Content: "c",
		State: repo.DocumentStateNormal, Ctime: now, Mtime: now + 50,
	}))
	require.NoError(t, chunks.ReplaceForDocument(context.Background(), "user-1", "stale", now, nil))
	// Indexed and current.
	require.NoError(t, docs.Create(context.Background(), &model.Document{
		ID: "fresh", UserID: "user-1", Title: "c", Content: "c",
		State: repo.DocumentStateNormal, Ctime: now, Mtime: now,
	}))
	require.NoError(t, chunks.ReplaceForDocument(context.Background(), "user-1", "fresh", now, nil))

	stale, err := docs.ListStaleForIndex(context.Background(), 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(stale))
	for _, doc := range stale {
		ids = append(ids, doc.ID)
	}
	require.ElementsMatch(t, []string{"unindexed", "stale"}, ids)
}
