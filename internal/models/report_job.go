package models

import "time"

// ReportType enumerates the supported export datasets.
type ReportType string

const (
	ReportTypeClassMarks ReportType = "class_marks"
	ReportTypeScorecards ReportType = "scorecards"
)

// ReportFormat enumerates supported output encodings.
type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatPDF  ReportFormat = "pdf"
	ReportFormatXLSX ReportFormat = "xlsx"
)

// ReportJobStatus tracks the async generation lifecycle.
type ReportJobStatus string

const (
	ReportJobQueued  ReportJobStatus = "QUEUED"
	ReportJobRunning ReportJobStatus = "RUNNING"
	ReportJobDone    ReportJobStatus = "DONE"
	ReportJobFailed  ReportJobStatus = "FAILED"
)

// ReportJob is a persisted export request processed by the background queue.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Format       ReportFormat    `db:"format" json:"format"`
	ClassName    string          `db:"class_name" json:"class_name"`
	Status       ReportJobStatus `db:"status" json:"status"`
	FilePath     *string         `db:"file_path" json:"file_path,omitempty"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RequestedBy  string          `db:"requested_by" json:"requested_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
}
