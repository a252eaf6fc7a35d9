package pipeline

import (
	"fmt"
	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/model"
	"sync"
	"time"
)

// RunTracker keeps in-memory metrics for a run and mirrors stage progress,
// logs and errors to the session's recorder. Recorder failures are printed
// and never fail the run.
type RunTracker struct {
	runID    string
	recorder engine.Recorder
	mu       sync.RWMutex
	metrics  model.RunMetrics
}

// NewRunTracker creates a tracker for the session's run
func NewRunTracker(sess *engine.Session) *RunTracker {
	return &RunTracker{
		runID:    sess.RunID(),
		recorder: sess.Recorder(),
		metrics: model.RunMetrics{
			RunID:        sess.RunID(),
			StartTime:    time.Now(),
			Status:       model.StatusPending,
			StageMetrics: make(map[string]model.StageMetrics),
		},
	}
}

// Begin registers the run with the recorder
func (rt *RunTracker) Begin(spec model.RunSpec) {
	rt.setStatus(model.StatusRunning)
	rt.check("save run", rt.recorder.SaveRun(rt.runID, spec, model.StatusRunning))
}

// SetStatus updates the run status
func (rt *RunTracker) SetStatus(status string) {
	rt.setStatus(status)
	rt.check("update status", rt.recorder.UpdateRunStatus(rt.runID, status))
}

func (rt *RunTracker) setStatus(status string) {
	rt.mu.Lock()
	rt.metrics.Status = status
	rt.mu.Unlock()
}

// StartStage marks the start of a pipeline stage
func (rt *RunTracker) StartStage(stage string) {
	now := time.Now()
	rt.mu.Lock()
	rt.metrics.StageMetrics[stage] = model.StageMetrics{StageName: stage, Status: "running", StartTime: now}
	rt.mu.Unlock()

	rt.check("save stage", rt.recorder.SaveStageProgress(rt.runID, stage, "started", &now, nil, 0, 0))
	rt.Log(stage, "info", fmt.Sprintf("Starting %s stage", stage), nil)
}

// EndStage marks the end of a pipeline stage
func (rt *RunTracker) EndStage(stage string, records, errCount int, details map[string]interface{}) {
	sm := rt.finishStage(stage, "completed", records, errCount)
	rt.check("save stage", rt.recorder.SaveStageProgress(rt.runID, stage, "completed", &sm.StartTime, sm.EndTime, records, errCount))

	if details == nil {
		details = map[string]interface{}{}
	}
	details["records"] = records
	details["duration_ms"] = sm.Duration.Milliseconds()
	rt.Log(stage, "info", fmt.Sprintf("%s stage completed", stage), details)
}

// FailStage marks a stage as failed and records the error
func (rt *RunTracker) FailStage(stage string, err error) {
	sm := rt.finishStage(stage, "failed", 0, 1)
	rt.check("save stage", rt.recorder.SaveStageProgress(rt.runID, stage, "failed", &sm.StartTime, sm.EndTime, 0, 1))
	rt.check("save error", rt.recorder.SaveRunError(rt.runID, stage, err))
	rt.Log(stage, "error", err.Error(), nil)
}

func (rt *RunTracker) finishStage(stage, status string, records, errCount int) model.StageMetrics {
	now := time.Now()
	rt.mu.Lock()
	defer rt.mu.Unlock()

	sm := rt.metrics.StageMetrics[stage]
	sm.StageName = stage
	if sm.StartTime.IsZero() {
		sm.StartTime = now
	}
	sm.EndTime = &now
	sm.Duration = now.Sub(sm.StartTime)
	sm.Status = status
	sm.RecordsProcessed = int64(records)
	sm.ErrorCount = int64(errCount)
	if sm.Duration > 0 && records > 0 {
		sm.ThroughputRPS = float64(records) / sm.Duration.Seconds()
	}
	rt.metrics.StageMetrics[stage] = sm
	rt.metrics.ErrorCount += int64(errCount)
	if stage == model.StageLoad {
		rt.metrics.TotalRecords = int64(records)
	}
	return sm
}

// Log stores a pipeline log line
func (rt *RunTracker) Log(stage, level, message string, details map[string]interface{}) {
	rt.check("save log", rt.recorder.SavePipelineLog(rt.runID, stage, level, message, details))
}

// RecordOutput stores an export attempt
func (rt *RunTracker) RecordOutput(result model.ExportResult) {
	rt.check("save output", rt.recorder.SaveOutputFile(rt.runID, result))
}

// Complete marks the run as completed
func (rt *RunTracker) Complete() {
	rt.end()
	rt.SetStatus(model.StatusCompleted)
}

// Fail marks the run as failed
func (rt *RunTracker) Fail() {
	rt.end()
	rt.SetStatus(model.StatusFailed)
}

func (rt *RunTracker) end() {
	now := time.Now()
	rt.mu.Lock()
	rt.metrics.EndTime = &now
	rt.metrics.ProcessingTime = now.Sub(rt.metrics.StartTime)
	rt.mu.Unlock()
}

// GetMetrics returns a copy of the current metrics
func (rt *RunTracker) GetMetrics() model.RunMetrics {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	m := rt.metrics
	m.StageMetrics = make(map[string]model.StageMetrics, len(rt.metrics.StageMetrics))
	for k, v := range rt.metrics.StageMetrics {
		m.StageMetrics[k] = v
	}
	return m
}

func (rt *RunTracker) check(op string, err error) {
	if err != nil {
		fmt.Printf("⚠️ Run %s: failed to %s: %v\n", rt.runID, op, err)
	}
}
