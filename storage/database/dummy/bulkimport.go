package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/bulkimport"
)

type importRepository struct {
	db *batchTable
}

var _ bulkimport.Repository = (*importRepository)(nil) // interface compliance check

func NewImportRepository(db *DB) bulkimport.Repository {
	return &importRepository{db: db.batch}
}

func (repo *importRepository) CreateBatch(_ context.Context, batch bulkimport.UploadBatch, _ ...core.DBExecutor) (bulkimport.UploadBatch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	batch.ID = uuid.New().String()
	repo.db.table[batch.ID] = &batch
	return batch, nil
}

func (repo *importRepository) UpdateBatch(_ context.Context, batch bulkimport.UploadBatch, _ ...core.DBExecutor) (bulkimport.UploadBatch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[batch.ID]; !ok {
		return bulkimport.UploadBatch{}, bulkimport.ErrNotFound
	}
	repo.db.table[batch.ID] = &batch
	return batch, nil
}

func (repo *importRepository) GetBatch(_ context.Context, id string, _ ...core.DBExecutor) (bulkimport.UploadBatch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if batch, ok := repo.db.table[id]; ok {
		return *batch, nil
	}
	return bulkimport.UploadBatch{}, bulkimport.ErrNotFound
}

func (repo *importRepository) QueryBatches(_ context.Context, collegeID string, _ ...core.DBExecutor) ([]bulkimport.UploadBatch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var batches []bulkimport.UploadBatch
	for _, batch := range repo.db.table {
		if batch.CollegeID == collegeID {
			batches = append(batches, *batch)
		}
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].CreatedAt.After(batches[j].CreatedAt) })
	return batches, nil
}

func (repo *importRepository) CreateRowResult(_ context.Context, res bulkimport.RowResult, _ ...core.DBExecutor) (bulkimport.RowResult, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	res.ID = uuid.New().String()
	repo.db.results[res.BatchID] = append(repo.db.results[res.BatchID], &res)
	return res, nil
}

func (repo *importRepository) QueryRowResults(_ context.Context, batchID string, _ ...core.DBExecutor) ([]bulkimport.RowResult, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := make([]bulkimport.RowResult, 0, len(repo.db.results[batchID]))
	for _, res := range repo.db.results[batchID] {
		results = append(results, *res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].RowNumber < results[j].RowNumber })
	return results, nil
}
