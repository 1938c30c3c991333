package job

import (
	"context"

	"github.com/phillipshepard1/phillipsnotes/internal/service"
)

// ReindexJob sweeps documents whose content changed after their last
// successful index pass and rebuilds their chunk sets.
type ReindexJob struct {
	indexer   *service.IndexerService
	batchSize int
}

func NewReindexJob(indexer *service.IndexerService, batchSize int) *ReindexJob {
	return &ReindexJob{indexer: indexer, batchSize: batchSize}
}

func (j *ReindexJob) Name() string {
	return "retrieval_reindex"
}

func (j *ReindexJob) Run(ctx context.Context) error {
	if j.indexer == nil {
		return nil
	}
	batchSize := j.batchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	return j.indexer.ProcessStaleDocuments(ctx, batchSize)
}
