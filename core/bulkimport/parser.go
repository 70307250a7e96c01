package bulkimport

import (
	"encoding/csv"
	"io"

	"github.com/trezcool/mafunzo/core"
)

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are row-level failures, not parse aborts
	cr.TrimLeadingSpace = true
	return cr
}

// parseRows consumes the remaining data lines of an already-validated CSV and
// returns one Row per line, in file order, numbered 1..n. A line that cannot
// be parsed yields a placeholder Row carrying the parse error so that the
// numbering of subsequent rows never shifts.
func parseRows(cr *csv.Reader, kind Kind, cols columnIndex) []Row {
	var rows []Row
	num := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		num++
		if err != nil {
			rows = append(rows, Row{Number: num, ParseError: err.Error()})
			continue
		}
		rows = append(rows, parseRow(kind, cols, record, num))
	}
	return rows
}

func parseRow(kind Kind, cols columnIndex, record []string, num int) Row {
	fields := make(map[string]string, len(cols))
	for _, name := range knownColumns(kind) {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			continue
		}
		fields[name] = core.CleanString(record[idx])
	}
	return Row{Number: num, Fields: fields}
}
