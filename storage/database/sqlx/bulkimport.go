package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/bulkimport"
)

const (
	batchTable     = "upload_batch"
	rowResultTable = "upload_row_result"
)

var (
	batchColumns = []string{
		"id", "college_id", "submitted_by", "kind", "file_name",
		"total_rows", "successful_rows", "failed_rows", "status", "error_report",
		"created_at", "completed_at",
	}
	rowResultColumns = []string{
		"id", "batch_id", "row_number", "outcome", "created_user_id",
		"error_message", "row_data", "created_at",
	}
)

type batchRow struct {
	ID             string       `db:"id"`
	CollegeID      string       `db:"college_id"`
	SubmittedBy    string       `db:"submitted_by"`
	Kind           string       `db:"kind"`
	FileName       string       `db:"file_name"`
	TotalRows      int          `db:"total_rows"`
	SuccessfulRows int          `db:"successful_rows"`
	FailedRows     int          `db:"failed_rows"`
	Status         string       `db:"status"`
	ErrorReport    string       `db:"error_report"`
	CreatedAt      time.Time    `db:"created_at"`
	CompletedAt    sql.NullTime `db:"completed_at"`
}

func newBatchRow(batch bulkimport.UploadBatch) batchRow {
	return batchRow{
		ID:             batch.ID,
		CollegeID:      batch.CollegeID,
		SubmittedBy:    batch.SubmittedBy,
		Kind:           string(batch.Kind),
		FileName:       batch.FileName,
		TotalRows:      batch.TotalRows,
		SuccessfulRows: batch.SuccessfulRows,
		FailedRows:     batch.FailedRows,
		Status:         string(batch.Status),
		ErrorReport:    batch.ErrorReport,
		CreatedAt:      batch.CreatedAt.UTC(),
		CompletedAt:    sql.NullTime{Time: batch.CompletedAt.UTC(), Valid: !batch.CompletedAt.IsZero()},
	}
}

func (r batchRow) batch() bulkimport.UploadBatch {
	return bulkimport.UploadBatch{
		ID:             r.ID,
		CollegeID:      r.CollegeID,
		SubmittedBy:    r.SubmittedBy,
		Kind:           bulkimport.Kind(r.Kind),
		FileName:       r.FileName,
		TotalRows:      r.TotalRows,
		SuccessfulRows: r.SuccessfulRows,
		FailedRows:     r.FailedRows,
		Status:         bulkimport.BatchStatus(r.Status),
		ErrorReport:    r.ErrorReport,
		CreatedAt:      r.CreatedAt,
		CompletedAt:    r.CompletedAt.Time,
	}
}

type rowResultRow struct {
	ID            string         `db:"id"`
	BatchID       string         `db:"batch_id"`
	RowNumber     int            `db:"row_number"`
	Outcome       string         `db:"outcome"`
	CreatedUserID sql.NullString `db:"created_user_id"`
	ErrorMessage  string         `db:"error_message"`
	RowData       string         `db:"row_data"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r rowResultRow) result() bulkimport.RowResult {
	return bulkimport.RowResult{
		ID:            r.ID,
		BatchID:       r.BatchID,
		RowNumber:     r.RowNumber,
		Outcome:       bulkimport.RowOutcome(r.Outcome),
		CreatedUserID: r.CreatedUserID.String,
		ErrorMessage:  r.ErrorMessage,
		RowData:       r.RowData,
		CreatedAt:     r.CreatedAt,
	}
}

type importRepository struct {
	exec core.DBExecutor
}

var _ bulkimport.Repository = (*importRepository)(nil) // interface compliance check

func NewImportRepository(exec core.DBExecutor) *importRepository {
	return &importRepository{exec: exec}
}

func (repo importRepository) CreateBatch(ctx context.Context, batch bulkimport.UploadBatch, exec ...core.DBExecutor) (bulkimport.UploadBatch, error) {
	batch.ID = uuid.New().String()
	row := newBatchRow(batch)
	q := psql.Insert(batchTable).Columns(batchColumns...).Values(
		row.ID, row.CollegeID, row.SubmittedBy, row.Kind, row.FileName,
		row.TotalRows, row.SuccessfulRows, row.FailedRows, row.Status, row.ErrorReport,
		row.CreatedAt, row.CompletedAt)
	if _, err := execStmt(ctx, getExec(repo.exec, exec), q); err != nil {
		return bulkimport.UploadBatch{}, errors.Wrap(err, "inserting upload batch")
	}
	return batch, nil
}

func (repo importRepository) UpdateBatch(ctx context.Context, batch bulkimport.UploadBatch, exec ...core.DBExecutor) (bulkimport.UploadBatch, error) {
	row := newBatchRow(batch)
	q := psql.Update(batchTable).
		Set("total_rows", row.TotalRows).
		Set("successful_rows", row.SuccessfulRows).
		Set("failed_rows", row.FailedRows).
		Set("status", row.Status).
		Set("error_report", row.ErrorReport).
		Set("completed_at", row.CompletedAt).
		Where(sq.Eq{"id": row.ID})
	res, err := execStmt(ctx, getExec(repo.exec, exec), q)
	if err != nil {
		return bulkimport.UploadBatch{}, errors.Wrap(err, "updating upload batch")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return bulkimport.UploadBatch{}, bulkimport.ErrNotFound
	}
	return batch, nil
}

func (repo importRepository) GetBatch(ctx context.Context, id string, exec ...core.DBExecutor) (bulkimport.UploadBatch, error) {
	var rows []batchRow
	q := psql.Select(batchColumns...).From(batchTable).Where(sq.Eq{"id": id}).Limit(1)
	if err := queryAll(ctx, getExec(repo.exec, exec), q, &rows); err != nil {
		return bulkimport.UploadBatch{}, errors.Wrap(err, "getting upload batch")
	}
	if len(rows) == 0 {
		return bulkimport.UploadBatch{}, bulkimport.ErrNotFound
	}
	return rows[0].batch(), nil
}

func (repo importRepository) QueryBatches(ctx context.Context, collegeID string, exec ...core.DBExecutor) ([]bulkimport.UploadBatch, error) {
	var rows []batchRow
	q := psql.Select(batchColumns...).From(batchTable).
		Where(sq.Eq{"college_id": collegeID}).
		OrderBy("created_at DESC")
	if err := queryAll(ctx, getExec(repo.exec, exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying upload batches")
	}
	batches := make([]bulkimport.UploadBatch, 0, len(rows))
	for _, row := range rows {
		batches = append(batches, row.batch())
	}
	return batches, nil
}

func (repo importRepository) CreateRowResult(ctx context.Context, res bulkimport.RowResult, exec ...core.DBExecutor) (bulkimport.RowResult, error) {
	res.ID = uuid.New().String()
	q := psql.Insert(rowResultTable).Columns(rowResultColumns...).Values(
		res.ID, res.BatchID, res.RowNumber, string(res.Outcome),
		sql.NullString{String: res.CreatedUserID, Valid: res.CreatedUserID != ""},
		res.ErrorMessage, res.RowData, res.CreatedAt.UTC())
	if _, err := execStmt(ctx, getExec(repo.exec, exec), q); err != nil {
		return bulkimport.RowResult{}, errors.Wrap(err, "inserting row result")
	}
	return res, nil
}

func (repo importRepository) QueryRowResults(ctx context.Context, batchID string, exec ...core.DBExecutor) ([]bulkimport.RowResult, error) {
	var rows []rowResultRow
	q := psql.Select(rowResultColumns...).From(rowResultTable).
		Where(sq.Eq{"batch_id": batchID}).
		OrderBy("row_number ASC")
	if err := queryAll(ctx, getExec(repo.exec, exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying row results")
	}
	results := make([]bulkimport.RowResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.result())
	}
	return results, nil
}
