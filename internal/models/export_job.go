package models

import "time"

// ExportStatus tracks the lifecycle of an asynchronous export job.
type ExportStatus string

const (
	ExportStatusQueued   ExportStatus = "QUEUED"
	ExportStatusRunning  ExportStatus = "RUNNING"
	ExportStatusFinished ExportStatus = "FINISHED"
	ExportStatusFailed   ExportStatus = "FAILED"
)

// ExportFormat selects the rendered artifact type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "CSV"
	ExportFormatPDF ExportFormat = "PDF"
)

// ExportJob records a queued report export. The scoped filters of the
// requesting identity are captured at enqueue time so the worker renders
// exactly the rows the requester was allowed to list.
type ExportJob struct {
	ID           string       `db:"id" json:"id"`
	Format       ExportFormat `db:"format" json:"format"`
	Status       ExportStatus `db:"status" json:"status"`
	Progress     int          `db:"progress" json:"progress"`
	FilePath     *string      `db:"file_path" json:"-"`
	ResultURL    *string      `db:"result_url" json:"result_url,omitempty"`
	RequestedBy  string       `db:"requested_by" json:"requested_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
}

// CreateExportRequest payload for enqueueing a report export.
type CreateExportRequest struct {
	Format ExportFormat `json:"format" validate:"required,oneof=CSV PDF"`
}
