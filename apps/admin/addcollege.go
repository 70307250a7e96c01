package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/college"
)

func (cli *commandLine) addCollege(name, code string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	code = core.CleanString(code, true /* lower */)

	if _, err := cli.colRepo.GetCollegeByCode(ctx, code); err == nil {
		return college.ErrCodeExists
	} else if errors.Cause(err) != college.ErrNotFound {
		return err
	}

	now := time.Now().UTC()
	_, err := cli.colRepo.CreateCollege(ctx, college.College{
		Name:      name,
		Code:      code,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return err
}

// findCollege resolves a college by code first, then by ID.
func (cli *commandLine) findCollege(ctx context.Context, ref string) (college.College, error) {
	col, err := cli.colRepo.GetCollegeByCode(ctx, core.CleanString(ref, true /* lower */))
	if err == nil {
		return col, nil
	}
	if errors.Cause(err) != college.ErrNotFound {
		return college.College{}, err
	}
	return cli.colRepo.GetCollegeByID(ctx, ref)
}
