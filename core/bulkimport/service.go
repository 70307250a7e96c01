package bulkimport

import (
	"context"
	"encoding/csv"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("upload batch not found")
	ErrInvalidKind = errors.New("invalid import kind")
)

type (
	Repository interface {
		CreateBatch(ctx context.Context, batch UploadBatch, exec ...core.DBExecutor) (UploadBatch, error)
		UpdateBatch(ctx context.Context, batch UploadBatch, exec ...core.DBExecutor) (UploadBatch, error)
		GetBatch(ctx context.Context, id string, exec ...core.DBExecutor) (UploadBatch, error)
		// QueryBatches returns a college's batches, most recent first.
		QueryBatches(ctx context.Context, collegeID string, exec ...core.DBExecutor) ([]UploadBatch, error)
		CreateRowResult(ctx context.Context, res RowResult, exec ...core.DBExecutor) (RowResult, error)
		// QueryRowResults returns a batch's row results ordered by row number.
		QueryRowResults(ctx context.Context, batchID string, exec ...core.DBExecutor) ([]RowResult, error)
	}

	Service interface {
		// Import runs the whole pipeline synchronously and returns the batch summary.
		// A structural failure (bad file name, unreadable or headerless file, missing
		// mandatory columns) returns a core.ValidationError and a FAILED batch with
		// no row results; row-level failures are reported in the summary instead.
		Import(ctx context.Context, in ImportInput) (Summary, error)
		GetBatch(ctx context.Context, id string) (UploadBatch, error)
		QueryBatches(ctx context.Context, collegeID string) ([]UploadBatch, error)
		// GetSummary rebuilds the Summary of a finished batch from its stored
		// row results. Safe to call any number of times.
		GetSummary(ctx context.Context, id string) (Summary, error)
		QueryRowResults(ctx context.Context, batchID string) ([]RowResult, error)
	}

	// ImportInput is one upload submission.
	ImportInput struct {
		Kind        Kind
		CollegeID   string
		SubmittedBy string
		FileName    string
		File        io.Reader
	}

	service struct {
		db     core.DB
		repo   Repository
		usrSvc user.Service
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, usrSvc user.Service, logger core.Logger) Service {
	return &service{
		db:     db,
		repo:   repo,
		usrSvc: usrSvc,
		logger: logger,
	}
}

func (svc *service) Import(ctx context.Context, in ImportInput) (Summary, error) {
	if !in.Kind.Valid() {
		return Summary{}, core.NewValidationError(ErrInvalidKind)
	}

	batch, err := svc.repo.CreateBatch(ctx, UploadBatch{
		CollegeID:   in.CollegeID,
		SubmittedBy: in.SubmittedBy,
		Kind:        in.Kind,
		FileName:    in.FileName,
		Status:      StatusProcessing,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Summary{}, errors.Wrap(err, "creating upload batch")
	}

	cr, cols, structErr := svc.validateFormat(in)
	if structErr != nil {
		if batch, err = svc.failBatch(ctx, batch, structErr); err != nil {
			return Summary{}, err
		}
		return Summary{}, core.NewValidationError(structErr)
	}

	rows := parseRows(cr, in.Kind, cols)
	handler := handlerFor(in.Kind, svc.usrSvc)

	var rowErrs []RowError
	for _, row := range rows {
		if err = svc.processRow(ctx, batch, handler, row); err != nil {
			batch.FailedRows++
			rowErrs = append(rowErrs, RowError{
				RowNumber: row.Number,
				Message:   err.Error(),
				Fields:    row.Fields,
			})
			if err = svc.recordRowFailure(ctx, batch, row, err); err != nil {
				return Summary{}, err
			}
			continue
		}
		batch.SuccessfulRows++
	}

	batch.TotalRows = len(rows)
	batch.Status = StatusCompleted
	batch.CompletedAt = time.Now().UTC()
	if batch, err = svc.repo.UpdateBatch(ctx, batch); err != nil {
		return Summary{}, errors.Wrap(err, "finalizing upload batch")
	}

	return Summary{
		BatchID:        batch.ID,
		TotalRows:      batch.TotalRows,
		SuccessfulRows: batch.SuccessfulRows,
		FailedRows:     batch.FailedRows,
		Status:         batch.Status,
		Errors:         rowErrs,
	}, nil
}

// validateFormat runs the structural checks that must all pass before any
// row is processed. The returned reader is positioned past the header.
func (svc *service) validateFormat(in ImportInput) (*csv.Reader, columnIndex, error) {
	if err := checkFileName(in.FileName); err != nil {
		return nil, nil, err
	}

	cr := newCSVReader(in.File)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, errEmptyFile
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading header")
	}
	cols, err := validateHeader(in.Kind, header)
	if err != nil {
		return nil, nil, err
	}
	return cr, cols, nil
}

// processRow imports one row atomically: the identity, its profile and the
// SUCCESS row result commit together or not at all. The welcome email is
// dispatched only after the commit.
func (svc *service) processRow(ctx context.Context, batch UploadBatch, handler rowHandler, row Row) error {
	if row.ParseError != "" {
		return errors.New(row.ParseError)
	}
	if err := handler.validate(ctx, batch.CollegeID, row); err != nil {
		return err
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning row transaction")
	}

	usr, err := svc.usrSvc.CreateImported(ctx, handler.identity(batch.CollegeID, row), tx)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = handler.createProfile(ctx, batch.CollegeID, row, usr, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err = svc.repo.CreateRowResult(ctx, RowResult{
		BatchID:       batch.ID,
		RowNumber:     row.Number,
		Outcome:       RowSuccess,
		CreatedUserID: usr.ID,
		RowData:       row.snapshot(),
		CreatedAt:     time.Now().UTC(),
	}, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing row transaction")
	}

	svc.usrSvc.SendWelcomeEmail(usr)
	return nil
}

// recordRowFailure writes the FAILED row result outside any transaction so
// it survives regardless of what happened to the row itself.
func (svc *service) recordRowFailure(ctx context.Context, batch UploadBatch, row Row, rowErr error) error {
	_, err := svc.repo.CreateRowResult(ctx, RowResult{
		BatchID:      batch.ID,
		RowNumber:    row.Number,
		Outcome:      RowFailed,
		ErrorMessage: rowErr.Error(),
		RowData:      row.snapshot(),
		CreatedAt:    time.Now().UTC(),
	})
	return errors.Wrap(err, "recording row failure")
}

// failBatch marks the batch FAILED with the structural error. No row results
// exist for such a batch.
func (svc *service) failBatch(ctx context.Context, batch UploadBatch, structErr error) (UploadBatch, error) {
	svc.logger.Warn("upload batch " + batch.ID + " rejected: " + structErr.Error())
	batch.Status = StatusFailed
	batch.ErrorReport = structErr.Error()
	batch.CompletedAt = time.Now().UTC()
	batch, err := svc.repo.UpdateBatch(ctx, batch)
	return batch, errors.Wrap(err, "failing upload batch")
}

func (svc *service) GetBatch(ctx context.Context, id string) (UploadBatch, error) {
	return svc.repo.GetBatch(ctx, id)
}

func (svc *service) QueryBatches(ctx context.Context, collegeID string) ([]UploadBatch, error) {
	return svc.repo.QueryBatches(ctx, collegeID)
}

func (svc *service) GetSummary(ctx context.Context, id string) (Summary, error) {
	batch, err := svc.repo.GetBatch(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	results, err := svc.repo.QueryRowResults(ctx, id)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		BatchID:        batch.ID,
		TotalRows:      batch.TotalRows,
		SuccessfulRows: batch.SuccessfulRows,
		FailedRows:     batch.FailedRows,
		Status:         batch.Status,
	}
	for _, res := range results {
		if res.Outcome != RowFailed {
			continue
		}
		sum.Errors = append(sum.Errors, RowError{
			RowNumber: res.RowNumber,
			Message:   res.ErrorMessage,
		})
	}
	return sum, nil
}

func (svc *service) QueryRowResults(ctx context.Context, batchID string) ([]RowResult, error) {
	return svc.repo.QueryRowResults(ctx, batchID)
}
