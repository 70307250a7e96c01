package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/college"
)

const collegeTable = "college"

var collegeColumns = []string{"id", "name", "code", "created_at", "updated_at"}

type collegeRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r collegeRow) college() college.College {
	return college.College(r)
}

type collegeRepository struct {
	exec core.DBExecutor
}

var _ college.Repository = (*collegeRepository)(nil) // interface compliance check

func NewCollegeRepository(exec core.DBExecutor) *collegeRepository {
	return &collegeRepository{exec: exec}
}

func (repo collegeRepository) getOne(ctx context.Context, exec core.DBExecutor, pred interface{}) (college.College, error) {
	var rows []collegeRow
	q := psql.Select(collegeColumns...).From(collegeTable).Where(pred).Limit(1)
	if err := queryAll(ctx, exec, q, &rows); err != nil {
		return college.College{}, errors.Wrap(err, "getting college")
	}
	if len(rows) == 0 {
		return college.College{}, college.ErrNotFound
	}
	return rows[0].college(), nil
}

func (repo collegeRepository) CreateCollege(ctx context.Context, col college.College, exec ...core.DBExecutor) (college.College, error) {
	col.ID = uuid.New().String()
	q := psql.Insert(collegeTable).Columns(collegeColumns...).
		Values(col.ID, col.Name, col.Code, col.CreatedAt.UTC(), col.UpdatedAt.UTC())
	if _, err := execStmt(ctx, getExec(repo.exec, exec), q); err != nil {
		return college.College{}, errors.Wrap(err, "inserting college")
	}
	return col, nil
}

func (repo collegeRepository) GetCollegeByID(ctx context.Context, id string, exec ...core.DBExecutor) (college.College, error) {
	return repo.getOne(ctx, getExec(repo.exec, exec), sq.Eq{"id": id})
}

func (repo collegeRepository) GetCollegeByCode(ctx context.Context, code string, exec ...core.DBExecutor) (college.College, error) {
	return repo.getOne(ctx, getExec(repo.exec, exec), sq.Eq{"code": code})
}

func (repo collegeRepository) QueryColleges(ctx context.Context, exec ...core.DBExecutor) ([]college.College, error) {
	var rows []collegeRow
	q := psql.Select(collegeColumns...).From(collegeTable).OrderBy("name ASC")
	if err := queryAll(ctx, getExec(repo.exec, exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying colleges")
	}
	colleges := make([]college.College, 0, len(rows))
	for _, row := range rows {
		colleges = append(colleges, row.college())
	}
	return colleges, nil
}
