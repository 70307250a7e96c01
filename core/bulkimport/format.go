package bulkimport

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
)

// Canonical CSV column names. Header matching is case-insensitive and
// whitespace-tolerant but the canonical names are what parsed rows are keyed by.
const (
	colFullName       = "Full Name"
	colEmail          = "Email"
	colRollNumber     = "Roll Number"
	colDegree         = "Degree"
	colBranch         = "Branch"
	colYear           = "Year"
	colDepartment     = "Department"
	colSpecialization = "Specialization"
)

var (
	studentColumns = []string{colFullName, colEmail, colRollNumber, colDegree, colBranch, colYear}
	trainerColumns = []string{colFullName, colEmail, colDepartment, colSpecialization}

	studentRequiredColumns = []string{colFullName, colEmail, colRollNumber}
	trainerRequiredColumns = []string{colFullName, colEmail}

	// structural errors
	errNotCSV    = errors.New("file must be a CSV")
	errEmptyFile = errors.New("file is empty")
)

// columnIndex maps a canonical column name to its position in the header.
type columnIndex map[string]int

func knownColumns(kind Kind) []string {
	if kind == KindTrainer {
		return trainerColumns
	}
	return studentColumns
}

func requiredColumns(kind Kind) []string {
	if kind == KindTrainer {
		return trainerRequiredColumns
	}
	return studentRequiredColumns
}

// checkFileName rejects files whose extension is not .csv.
func checkFileName(name string) error {
	if strings.ToLower(filepath.Ext(name)) != ".csv" {
		return errNotCSV
	}
	return nil
}

// validateHeader checks that all mandatory columns for the target kind are
// present and returns the column positions; unknown columns are ignored.
// A failure here is structural: it aborts the whole batch before any row is parsed.
func validateHeader(kind Kind, header []string) (columnIndex, error) {
	if len(header) == 0 {
		return nil, errEmptyFile
	}

	cols := make(columnIndex, len(header))
	for i, h := range header {
		h = core.CleanString(h)
		for _, known := range knownColumns(kind) {
			if strings.EqualFold(h, known) {
				if _, dup := cols[known]; !dup {
					cols[known] = i
				}
				break
			}
		}
	}

	for _, req := range requiredColumns(kind) {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("missing required column: %s", req)
		}
	}
	return cols, nil
}
