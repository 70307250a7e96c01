package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/user"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// collegeScope resolves the tenant a request operates on: college admins are
// pinned to their own college, system admins must name one explicitly.
func collegeScope(ctx echo.Context, param string) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	if claims.CollegeID != "" {
		return claims.CollegeID, nil
	}
	if contextHasAnyRole(ctx, []string{user.RoleAdminSystem}) {
		if id := ctx.FormValue(param); id != "" {
			return id, nil
		}
		if id := ctx.QueryParam(param); id != "" {
			return id, nil
		}
		return "", core.NewValidationError(
			nil, core.FieldError{Field: param, Error: "this field is required"})
	}
	return "", errHttpForbidden
}

// sameCollegeOrSystemAdmin rejects cross-tenant access to a resource.
func sameCollegeOrSystemAdmin(ctx echo.Context, collegeID string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.CollegeID == collegeID {
		return nil
	}
	if claims.CollegeID == "" && contextHasAnyRole(ctx, []string{user.RoleAdminSystem}) {
		return nil
	}
	return errHttpNotFound
}
