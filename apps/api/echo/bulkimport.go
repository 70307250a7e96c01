package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/bulkimport"
	"github.com/trezcool/mafunzo/core/user"
)

var fileParam = "file"

type importApi struct {
	svc    bulkimport.Service
	usrSvc user.Service
}

func registerImportAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc bulkimport.Service, usrSvc user.Service) {
	api := importApi{svc: svc, usrSvc: usrSvc}

	ig := g.Group("/imports", jwt, adminMiddleware())
	ig.POST("/students", api.importStudents)
	ig.POST("/trainers", api.importTrainers)
	ig.GET("", api.query)

	dg := ig.Group("/:id", api.batchMiddleware)
	dg.GET("", api.retrieve)
	dg.GET("/rows", api.queryRows)
}

// Handlers

func (api *importApi) importStudents(ctx echo.Context) error {
	return api.runImport(ctx, bulkimport.KindStudent)
}

func (api *importApi) importTrainers(ctx echo.Context) error {
	return api.runImport(ctx, bulkimport.KindTrainer)
}

// runImport processes the uploaded CSV synchronously and returns the batch
// summary. Row-level failures come back 200 with the failed rows listed;
// only a structurally invalid file is a 400.
func (api *importApi) runImport(ctx echo.Context, kind bulkimport.Kind) error {
	collegeID, err := collegeScope(ctx, "college_id")
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	fh, err := ctx.FormFile(fileParam)
	if err != nil {
		return core.NewValidationError(
			nil, core.FieldError{Field: fileParam, Error: "this field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	summary, err := api.svc.Import(ctx.Request().Context(), bulkimport.ImportInput{
		Kind:        kind,
		CollegeID:   collegeID,
		SubmittedBy: claims.Subject,
		FileName:    fh.Filename,
		File:        f,
	})
	if err != nil {
		return errors.Wrap(err, "importing file")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *importApi) query(ctx echo.Context) error {
	collegeID, err := collegeScope(ctx, "college_id")
	if err != nil {
		return err
	}

	batches, err := api.svc.QueryBatches(ctx.Request().Context(), collegeID)
	if err != nil {
		return errors.Wrap(err, "querying upload batches")
	}
	if batches == nil {
		batches = []bulkimport.UploadBatch{}
	}
	return ctx.JSON(http.StatusOK, batches)
}

func (api *importApi) retrieve(ctx echo.Context) error {
	batch, ok := ctx.Get("object").(bulkimport.UploadBatch)
	if !ok {
		return errors.New("batch object not found in echo.Context")
	}

	summary, err := api.svc.GetSummary(ctx.Request().Context(), batch.ID)
	if err != nil {
		return errors.Wrap(err, "getting batch summary")
	}
	return ctx.JSON(http.StatusOK, BatchDetailResponse{Batch: batch, Summary: summary})
}

func (api *importApi) queryRows(ctx echo.Context) error {
	batch, ok := ctx.Get("object").(bulkimport.UploadBatch)
	if !ok {
		return errors.New("batch object not found in echo.Context")
	}

	results, err := api.svc.QueryRowResults(ctx.Request().Context(), batch.ID)
	if err != nil {
		return errors.Wrap(err, "querying row results")
	}
	if results == nil {
		results = []bulkimport.RowResult{}
	}
	return ctx.JSON(http.StatusOK, results)
}

// batchMiddleware loads the batch and rejects cross-tenant access.
func (api *importApi) batchMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		batch, err := api.svc.GetBatch(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if errors.Cause(err) == bulkimport.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding batch by ID")
		}
		if err = sameCollegeOrSystemAdmin(ctx, batch.CollegeID); err != nil {
			return err
		}
		ctx.Set("object", batch)
		return next(ctx)
	}
}

type BatchDetailResponse struct {
	Batch   bulkimport.UploadBatch `json:"batch"`
	Summary bulkimport.Summary     `json:"summary"`
}
