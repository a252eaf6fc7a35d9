package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"off-data-pipeline/internal/config"
	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/model"
	"off-data-pipeline/internal/pipeline"
	"off-data-pipeline/internal/store"
	"off-data-pipeline/pkg/router"
	"off-data-pipeline/pkg/utils"

	"github.com/google/uuid"
)

const reportFileName = "afterData.parquet"

// RunHandler serves the run API. Runs started here execute in the background,
// each in its own engine session writing to the same run store.
type RunHandler struct {
	ctx     context.Context
	store   *store.DB
	cfg     *config.Config
	outputs *utils.OutputManager
	wg      sync.WaitGroup
}

// NewRunHandler creates a handler. Background runs are cancelled with ctx.
func NewRunHandler(ctx context.Context, db *store.DB, cfg *config.Config) *RunHandler {
	return &RunHandler{
		ctx:     ctx,
		store:   db,
		cfg:     cfg,
		outputs: utils.NewOutputManager(cfg.OutputDir),
	}
}

// Wait blocks until every background run has finished
func (h *RunHandler) Wait() {
	h.wg.Wait()
}

// CreateRun starts a new pipeline run
// @Summary Start a run
// @Description Start the brand report pipeline asynchronously for the given input
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.RunSpec true "Run configuration (outputPath and export files are plain file names)"
// @Success 202 {object} map[string]interface{} "Run accepted"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	spec := req.RunSpec

	// 1. Validate payload
	if strings.TrimSpace(spec.InputPath) == "" {
		http.Error(w, "inputPath is required", http.StatusBadRequest)
		return
	}
	if spec.OutputPath == "" {
		spec.OutputPath = reportFileName
	}
	if err := checkOutputNames(spec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// 2. Generate run ID and fill defaults
	runID := uuid.New().String()
	if strings.TrimSpace(spec.Country) == "" {
		spec.Country = h.cfg.Country
	}
	spec.TopN = h.cfg.TopN
	if req.TopN != nil {
		spec.TopN = *req.TopN
	}
	if err := h.placeOutputs(runID, &spec); err != nil {
		http.Error(w, "Failed to prepare output directory", http.StatusInternalServerError)
		return
	}

	// 3. Save run to DB
	if err := h.store.SaveRun(runID, spec, model.StatusPending); err != nil {
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	// 4. Start pipeline asynchronously
	h.start(runID, func(ctx context.Context, sess *engine.Session) error {
		_, err := pipeline.Run(ctx, sess, spec)
		return err
	})

	// 5. Return response
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":     "Run started",
		"runID":       runID,
		"status":      model.StatusPending,
		"downloadURL": h.outputs.GetDownloadURL(runID),
		"createdAt":   time.Now().UTC(),
	})
}

// createRunRequest tells an omitted topN apart from an explicit zero
type createRunRequest struct {
	model.RunSpec
	TopN *int `json:"topN"`
}

// checkOutputNames rejects output names that would leave the run directory
func checkOutputNames(spec model.RunSpec) error {
	if !utils.IsPlainFileName(spec.OutputPath) {
		return fmt.Errorf("outputPath %q must be a plain file name", spec.OutputPath)
	}
	if spec.Export == nil {
		return nil
	}
	for _, name := range spec.Export.Files {
		if !utils.IsPlainFileName(name) {
			return fmt.Errorf("export file %q must be a plain file name", name)
		}
	}
	return nil
}

// placeOutputs resolves every output name inside the run's output directory
func (h *RunHandler) placeOutputs(runID string, spec *model.RunSpec) error {
	path, err := h.outputs.GetOutputFilePath(runID, spec.OutputPath)
	if err != nil {
		return err
	}
	spec.OutputPath = path

	if spec.Export == nil {
		return nil
	}
	files := make([]string, 0, len(spec.Export.Files))
	for _, name := range spec.Export.Files {
		path, err := h.outputs.GetOutputFilePath(runID, name)
		if err != nil {
			return err
		}
		files = append(files, path)
	}
	spec.Export = &model.Export{Files: files, DB: spec.Export.DB}
	return nil
}

// start runs fn in a fresh session bound to runID
func (h *RunHandler) start(runID string, fn func(ctx context.Context, sess *engine.Session) error) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(h.ctx, utils.ParseDuration(h.cfg.RunTimeout))
		defer cancel()

		sess, err := engine.Open(engine.Options{
			RunID:         runID,
			Workers:       h.cfg.Workers,
			PartitionSize: h.cfg.PartitionSize,
			DBPath:        h.cfg.DBPath,
			Console:       os.Stdout,
		})
		if err != nil {
			log.Printf("❌ Run %s: %v", runID, err)
			_ = h.store.SaveRunError(runID, "", err)
			_ = h.store.UpdateRunStatus(runID, model.StatusFailed)
			return
		}
		defer sess.Close()

		if err := fn(ctx, sess); err != nil {
			log.Printf("❌ Run %s: %v", runID, err)
		}
	}()
}

// ListRuns lists all runs
// @Summary List runs
// @Description Get all runs with their current status, newest first
// @Tags runs
// @Produce json
// @Success 200 {array} model.Run "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one run
// @Summary Get run
// @Description Retrieve the settings and status of a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.Run "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunResults returns the brand rows stored for a run
// @Summary Get run results
// @Description Retrieve the brand report rows of a run (stored when the run exports to the database)
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run results"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/results [get]
func (h *RunHandler) GetRunResults(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	results, err := h.store.GetBrandResults(run.ID)
	if err != nil {
		http.Error(w, "Failed to fetch results", http.StatusInternalServerError)
		return
	}
	files, err := h.store.GetOutputFiles(run.ID)
	if err != nil {
		http.Error(w, "Failed to fetch output files", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runID":   run.ID,
		"status":  run.Status,
		"country": run.Spec.Country,
		"count":   len(results),
		"results": results,
		"outputs": files,
	})
}

// GetRunStages returns per-stage progress
// @Summary Get run stages
// @Description Retrieve the progress of each pipeline stage of a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.StageProgress "Stage progress"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/stages [get]
func (h *RunHandler) GetRunStages(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	stages, err := h.store.GetStageProgress(run.ID)
	if err != nil {
		http.Error(w, "Failed to fetch stages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stages)
}

// GetRunLogs returns the log lines of a run
// @Summary Get run logs
// @Description Retrieve the pipeline log lines of a run, oldest first
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.PipelineLog "Run logs"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/logs [get]
func (h *RunHandler) GetRunLogs(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	logs, err := h.store.GetPipelineLogs(run.ID)
	if err != nil {
		http.Error(w, "Failed to fetch logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// GetRunErrors returns the errors of a run
// @Summary Get run errors
// @Description Retrieve all errors recorded while a run executed
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.ErrorDetail "Run errors"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/errors [get]
func (h *RunHandler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	errs, err := h.store.GetRunErrors(run.ID)
	if err != nil {
		http.Error(w, "Failed to fetch errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, errs)
}

// RetryRun re-runs a failed run
// @Summary Retry run
// @Description Re-run a failed run with its stored configuration
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 202 {object} map[string]interface{} "Retry started"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 409 {object} map[string]interface{} "Run is not in a failed state"
// @Router /runs/{id}/retry [post]
func (h *RunHandler) RetryRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	claimed, err := h.store.ClaimRetry(run.ID)
	if err != nil {
		http.Error(w, "Failed to update run", http.StatusInternalServerError)
		return
	}
	if !claimed {
		http.Error(w, fmt.Sprintf("Run is %s, only failed runs can be retried", run.Status), http.StatusConflict)
		return
	}

	log.Printf("🔄 Retrying run %s", run.ID)
	h.start(run.ID, func(ctx context.Context, sess *engine.Session) error {
		_, err := pipeline.Run(ctx, sess, run.Spec)
		return err
	})

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Retry started",
		"runID":   run.ID,
		"status":  model.StatusRetrying,
	})
}

// DownloadReport streams the Parquet report of a run
// @Summary Download report
// @Description Download the Parquet brand report written by a run
// @Tags files
// @Produce application/octet-stream
// @Param id path string true "Run ID"
// @Success 200 {file} file "Parquet report"
// @Failure 404 {object} map[string]interface{} "Run or report not found"
// @Router /download/{id} [get]
func (h *RunHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	if run.Status != model.StatusCompleted {
		http.Error(w, "Report not available", http.StatusNotFound)
		return
	}
	if _, err := utils.GetFileSize(run.Spec.OutputPath); err != nil {
		http.Error(w, "Report file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%s", run.ID, filepath.Base(run.Spec.OutputPath)))
	http.ServeFile(w, r, run.Spec.OutputPath)
}

// lookupRun resolves the run ID in /api/v1/<resource>/<id>[/...]
func (h *RunHandler) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	runID := router.Segment(r, 3)
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return nil, false
	}

	run, err := h.store.GetRun(runID)
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
