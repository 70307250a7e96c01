package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/college"
)

type collegeRepository struct {
	db *collegeTable
}

var _ college.Repository = (*collegeRepository)(nil) // interface compliance check

func NewCollegeRepository(db *DB) college.Repository {
	return &collegeRepository{db: db.college}
}

func (repo *collegeRepository) CreateCollege(_ context.Context, col college.College, _ ...core.DBExecutor) (college.College, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	col.ID = uuid.New().String()
	repo.db.table[col.ID] = &col
	return col, nil
}

func (repo *collegeRepository) GetCollegeByID(_ context.Context, id string, _ ...core.DBExecutor) (college.College, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if col, ok := repo.db.table[id]; ok {
		return *col, nil
	}
	return college.College{}, college.ErrNotFound
}

func (repo *collegeRepository) GetCollegeByCode(_ context.Context, code string, _ ...core.DBExecutor) (college.College, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, col := range repo.db.table {
		if col.Code == code {
			return *col, nil
		}
	}
	return college.College{}, college.ErrNotFound
}

func (repo *collegeRepository) QueryColleges(_ context.Context, _ ...core.DBExecutor) ([]college.College, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	colleges := make([]college.College, 0, len(repo.db.table))
	for _, col := range repo.db.table {
		colleges = append(colleges, *col)
	}
	sort.Slice(colleges, func(i, j int) bool { return colleges[i].Name < colleges[j].Name })
	return colleges, nil
}
