package pipeline

import (
	"context"
	"fmt"
	"log"
	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/model"
	"time"
)

// ------------------- Pipeline Runner -------------------

// Run executes Loader → Cleaner → Analyzer → Writer, each stage consuming the
// previous one in full. A load or save failure is logged, stops the run and is
// returned (wrapping ErrLoad or ErrSave) together with the partial result.
// Releasing the session stays with the caller.
func Run(ctx context.Context, sess *engine.Session, spec model.RunSpec) (result *model.RunResult, err error) {
	start := time.Now()
	fmt.Printf("🚀 Starting pipeline run: %s\n", sess.RunID())

	tracker := NewRunTracker(sess)
	tracker.Begin(spec)
	result = &model.RunResult{RunID: sess.RunID(), Spec: spec, Status: model.StatusRunning}

	stage := ""
	defer func() {
		result.Duration = time.Since(start)
		if err != nil {
			result.Status = model.StatusFailed
			result.FailedAt = stage
			tracker.FailStage(stage, err)
			tracker.Fail()
			fmt.Printf("❌ Pipeline run %s failed at %s stage after %v\n", sess.RunID(), stage, result.Duration)
			return
		}
		result.Status = model.StatusCompleted
		tracker.Complete()
		fmt.Printf("🏁 Pipeline completed successfully for run: %s in %v\n", sess.RunID(), result.Duration)
		printStageSummary(tracker.GetMetrics())
	}()

	// --- LOAD STAGE ---
	stage = model.StageLoad
	tracker.SetStatus(model.StatusLoading)
	tracker.StartStage(stage)
	raw, err := Load(ctx, spec.InputPath)
	if err != nil {
		return result, err
	}
	result.Loaded, result.Malformed = len(raw.Rows), raw.Malformed
	tracker.EndStage(stage, len(raw.Rows), raw.Malformed, map[string]interface{}{"source": raw.Source})

	// --- CLEAN STAGE ---
	stage = model.StageClean
	tracker.SetStatus(model.StatusCleaning)
	tracker.StartStage(stage)
	cleaned, err := Clean(ctx, sess, raw)
	if err != nil {
		return result, err
	}
	result.Cleaned, result.Duplicates = len(cleaned.Rows), cleaned.Duplicates
	tracker.EndStage(stage, len(cleaned.Rows), 0, map[string]interface{}{"duplicates": cleaned.Duplicates})

	// --- ANALYZE STAGE ---
	stage = model.StageAnalyze
	tracker.SetStatus(model.StatusAnalyzing)
	tracker.StartStage(stage)
	report, err := Analyze(ctx, sess, cleaned, model.AnalysisOptions{Country: spec.Country})
	if err != nil {
		return result, err
	}
	result.Matched, result.Brands = report.Matched, report.Rows
	tracker.EndStage(stage, len(report.Rows), 0, map[string]interface{}{
		"country": report.Country,
		"matched": report.Matched,
	})

	if spec.TopN >= 0 {
		if perr := PrintBrandReport(sess.Console(), report, spec.TopN); perr != nil {
			tracker.Log(stage, "warning", "failed to print report preview", map[string]interface{}{"error": perr.Error()})
		}
	}

	// --- SAVE STAGE ---
	stage = model.StageSave
	tracker.SetStatus(model.StatusSaving)
	tracker.StartStage(stage)
	saved, err := Write(ctx, report.Rows, spec.OutputPath)
	result.Exports = append(result.Exports, saved)
	tracker.RecordOutput(saved)
	if err != nil {
		return result, err
	}
	tracker.EndStage(stage, saved.RecordCount, 0, map[string]interface{}{"path": saved.Path})

	// --- EXPORT STAGE ---
	if spec.Export != nil && (len(spec.Export.Files) > 0 || spec.Export.DB) {
		stage = model.StageExport
		tracker.StartStage(stage)
		failed := 0
		for _, r := range NewExportManager(sess, spec.Export).ExportAll(ctx, report.Rows) {
			result.Exports = append(result.Exports, r)
			tracker.RecordOutput(r)
			if !r.Success {
				failed++
			}
		}
		tracker.EndStage(stage, len(report.Rows), failed, map[string]interface{}{"exports": len(result.Exports) - 1})
	}

	return result, nil
}

// printStageSummary logs duration and throughput of the stages that ran
func printStageSummary(m model.RunMetrics) {
	for _, stage := range []string{model.StageLoad, model.StageClean, model.StageAnalyze, model.StageSave, model.StageExport} {
		sm, ok := m.StageMetrics[stage]
		if !ok {
			continue
		}
		log.Printf("   %-8s %8d records  %10v  %.0f rec/s",
			stage, sm.RecordsProcessed, sm.Duration.Round(time.Millisecond), sm.ThroughputRPS)
	}
}
