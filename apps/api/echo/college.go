package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core/college"
	"github.com/trezcool/mafunzo/core/user"
)

type collegeApi struct {
	svc      *college.Service
	validate *validator.Validate
}

func registerCollegeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *college.Service, validate *validator.Validate) {
	api := collegeApi{svc: svc, validate: validate}

	cg := g.Group("/colleges", jwt, adminMiddleware())
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)

	// only system admins manage tenants
	cg.POST("", api.create, adminMiddleware(user.RoleAdminSystem))
}

// Handlers

func (api *collegeApi) create(ctx echo.Context) error {
	var data college.NewCollege
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCollege")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	col, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating college")
	}
	return ctx.JSON(http.StatusCreated, col)
}

func (api *collegeApi) query(ctx echo.Context) error {
	colleges, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying colleges")
	}
	if colleges == nil {
		colleges = []college.College{}
	}
	return ctx.JSON(http.StatusOK, colleges)
}

func (api *collegeApi) retrieve(ctx echo.Context) error {
	col, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == college.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding college by ID")
	}
	if err = sameCollegeOrSystemAdmin(ctx, col.ID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, col)
}
