package college

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
)

var (
	// errors
	ErrNotFound   = errors.New("college not found")
	ErrCodeExists = errors.New("a college with this code already exists")
)

type (
	Repository interface {
		CreateCollege(ctx context.Context, col College, exec ...core.DBExecutor) (College, error)
		GetCollegeByID(ctx context.Context, id string, exec ...core.DBExecutor) (College, error)
		GetCollegeByCode(ctx context.Context, code string, exec ...core.DBExecutor) (College, error)
		QueryColleges(ctx context.Context, exec ...core.DBExecutor) ([]College, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nc NewCollege) (College, error) {
	if _, err := svc.repo.GetCollegeByCode(ctx, nc.Code); err == nil {
		return College{}, core.NewValidationError(
			ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return College{}, err
	}

	now := time.Now().UTC()
	return svc.repo.CreateCollege(ctx, College{
		Name:      nc.Name,
		Code:      nc.Code,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (College, error) {
	return svc.repo.GetCollegeByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]College, error) {
	return svc.repo.QueryColleges(ctx)
}
