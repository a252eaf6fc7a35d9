package model

import "time"

// Pipeline stages
const (
	StageLoad    = "load"
	StageClean   = "clean"
	StageAnalyze = "analyze"
	StageSave    = "save"
	StageExport  = "export"
)

// Run statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusLoading   = "loading"
	StatusCleaning  = "cleaning"
	StatusAnalyzing = "analyzing"
	StatusSaving    = "saving"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRetrying  = "retrying"
)

// StageMetrics represents metrics for a specific pipeline stage
type StageMetrics struct {
	StageName        string        `json:"stage_name"`
	Status           string        `json:"status"` // "running", "completed", "failed"
	StartTime        time.Time     `json:"start_time"`
	EndTime          *time.Time    `json:"end_time,omitempty"`
	Duration         time.Duration `json:"duration"`
	RecordsProcessed int64         `json:"records_processed"`
	ErrorCount       int64         `json:"error_count"`
	ThroughputRPS    float64       `json:"throughput_rps"`
}

// RunMetrics represents overall run metrics
type RunMetrics struct {
	RunID          string                  `json:"run_id"`
	StartTime      time.Time               `json:"start_time"`
	EndTime        *time.Time              `json:"end_time,omitempty"`
	Status         string                  `json:"status"`
	TotalRecords   int64                   `json:"total_records"`
	ErrorCount     int64                   `json:"error_count"`
	ProcessingTime time.Duration           `json:"processing_time"`
	StageMetrics   map[string]StageMetrics `json:"stage_metrics"`
}

// Run is a stored run row
type Run struct {
	ID        string    `json:"id"`
	Spec      RunSpec   `json:"spec"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StageProgress is a stored stage progress row
type StageProgress struct {
	Stage     string     `json:"stage"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Records   int        `json:"records"`
	Errors    int        `json:"errors"`
}

// PipelineLog is a stored log row
type PipelineLog struct {
	Stage     string                 `json:"stage"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ErrorDetail is a stored run error
type ErrorDetail struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
