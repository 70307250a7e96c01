package bulkimport

import (
	"encoding/json"
	"time"
)

// Kind is the target entity kind of an upload.
type Kind string

const (
	KindStudent Kind = "STUDENT"
	KindTrainer Kind = "TRAINER"
)

func (k Kind) Valid() bool {
	return k == KindStudent || k == KindTrainer
}

// BatchStatus is the lifecycle status of an UploadBatch.
// PROCESSING -> COMPLETED | FAILED; terminal statuses are immutable.
type BatchStatus string

const (
	StatusProcessing BatchStatus = "PROCESSING"
	StatusCompleted  BatchStatus = "COMPLETED"
	StatusFailed     BatchStatus = "FAILED"
)

// RowOutcome is the processing outcome of a single input row.
type RowOutcome string

const (
	RowSuccess RowOutcome = "SUCCESS"
	RowFailed  RowOutcome = "FAILED"
	RowSkipped RowOutcome = "SKIPPED"
)

// UploadBatch represents one CSV import submission and its rollup counts/status.
// It is mutated only by the pipeline that owns it and becomes read-only once
// COMPLETED or FAILED.
type UploadBatch struct {
	ID             string      `json:"id"`
	CollegeID      string      `json:"college_id"`
	SubmittedBy    string      `json:"submitted_by"`
	Kind           Kind        `json:"kind"`
	FileName       string      `json:"file_name"`
	TotalRows      int         `json:"total_rows"`
	SuccessfulRows int         `json:"successful_rows"`
	FailedRows     int         `json:"failed_rows"`
	Status         BatchStatus `json:"status"`
	ErrorReport    string      `json:"error_report,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`             // UTC
	CompletedAt    time.Time   `json:"completed_at,omitempty"` // UTC; zero while PROCESSING
}

// RowResult is the audit record of one input row's processing outcome.
// Created exactly once per row, immutable thereafter.
type RowResult struct {
	ID            string     `json:"id"`
	BatchID       string     `json:"batch_id"`
	RowNumber     int        `json:"row_number"` // 1-based, header excluded
	Outcome       RowOutcome `json:"outcome"`
	CreatedUserID string     `json:"created_user_id,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	RowData       string     `json:"row_data,omitempty"` // snapshot of the original row, for audit
	CreatedAt     time.Time  `json:"created_at"`         // UTC
}

// RowError is the caller-facing view of a failed row.
type RowError struct {
	RowNumber int               `json:"row_number"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Summary is the synchronous response of an import: rollup counts plus the
// failed rows only, to keep the response small.
type Summary struct {
	BatchID        string      `json:"batch_id"`
	TotalRows      int         `json:"total_rows"`
	SuccessfulRows int         `json:"successful_rows"`
	FailedRows     int         `json:"failed_rows"`
	Status         BatchStatus `json:"status"`
	Errors         []RowError  `json:"errors"`
}

// Row is one parsed data line of the uploaded file. A line that could not be
// parsed still yields a Row (with ParseError set) so that row numbering stays
// aligned with the original file.
type Row struct {
	Number     int               // 1-based, header excluded
	Fields     map[string]string // canonical column name -> raw value
	ParseError string
}

func (r Row) snapshot() string {
	data, err := json.Marshal(r.Fields)
	if err != nil {
		return ""
	}
	return string(data)
}
