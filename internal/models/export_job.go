package models

import "time"

// ExportType enumerates supported export datasets.
type ExportType string

const (
	ExportTypeProductCatalog  ExportType = "PRODUCT_CATALOG"
	ExportTypeDispatchSummary ExportType = "DISPATCH_SUMMARY"
)

// ExportFormat enumerates supported output formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus tracks job lifecycle.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusCompleted  ExportStatus = "COMPLETED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob is an asynchronous export request processed by the worker queue.
type ExportJob struct {
	ID            string       `db:"id" json:"id"`
	Type          ExportType   `db:"type" json:"type"`
	Format        ExportFormat `db:"format" json:"format"`
	Status        ExportStatus `db:"status" json:"status"`
	RequestedBy   string       `db:"requested_by" json:"requested_by"`
	FilePath      *string      `db:"file_path" json:"-"`
	DownloadToken *string      `db:"download_token" json:"download_token,omitempty"`
	DownloadURL   *string      `db:"download_url" json:"download_url,omitempty"`
	Error         *string      `db:"error" json:"error,omitempty"`
	Attempts      int          `db:"attempts" json:"attempts"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	ExpiresAt     *time.Time   `db:"expires_at" json:"expires_at,omitempty"`
}
