package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/bulkimport"
	"github.com/trezcool/mafunzo/core/user"
)

// importFile runs the CSV import pipeline on a local file on behalf of an
// existing user. The batch records that user as its submitter.
func (cli *commandLine) importFile(kind, collegeRef, submitterRef, path string) error {
	ctx := context.Background()

	k := bulkimport.Kind(strings.ToUpper(core.CleanString(kind)))
	if !k.Valid() {
		return bulkimport.ErrInvalidKind
	}
	col, err := cli.findCollege(ctx, collegeRef)
	if err != nil {
		return err
	}
	submitter, err := cli.usrRepo.GetUser(ctx, user.GetFilter{
		UsernameOrEmail: []string{core.CleanString(submitterRef, true /* lower */)},
	})
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sum, err := cli.importSvc.Import(ctx, bulkimport.ImportInput{
		Kind:        k,
		CollegeID:   col.ID,
		SubmittedBy: submitter.ID,
		FileName:    filepath.Base(path),
		File:        f,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Batch %s: %s\n", sum.BatchID, sum.Status)
	fmt.Printf("  total: %d, succeeded: %d, failed: %d\n", sum.TotalRows, sum.SuccessfulRows, sum.FailedRows)
	for _, rowErr := range sum.Errors {
		fmt.Printf("  row %d: %s\n", rowErr.RowNumber, rowErr.Message)
	}
	return nil
}
