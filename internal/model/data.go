package model

import "time"

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "parquet", "csv", "json", "xlsx", "database"
	Path        string    `json:"path"` // file path or table name
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// RunResult summarizes a finished (or aborted) run
type RunResult struct {
	RunID      string           `json:"run_id"`
	Spec       RunSpec          `json:"spec"`
	Status     string           `json:"status"`
	FailedAt   string           `json:"failed_at,omitempty"` // stage that aborted the run
	Loaded     int              `json:"loaded"`
	Malformed  int              `json:"malformed"`
	Cleaned    int              `json:"cleaned"`
	Duplicates int              `json:"duplicates"`
	Matched    int              `json:"matched"`
	Brands     []BrandAggregate `json:"brands"`
	Exports    []ExportResult   `json:"exports"`
	Duration   time.Duration    `json:"duration"`
}
