package pipeline

import (
	"errors"
	"path/filepath"
	"testing"

	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/model"
	"off-data-pipeline/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTracker(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	sess := newSession(t, engine.Options{RunID: "run-track", DBPath: dbPath})

	rt := NewRunTracker(sess)
	rt.Begin(model.RunSpec{InputPath: "products.csv"})
	rt.StartStage(model.StageLoad)
	rt.EndStage(model.StageLoad, 100, 3, nil)
	rt.StartStage(model.StageClean)
	rt.FailStage(model.StageClean, errors.New("boom"))
	rt.Fail()

	m := rt.GetMetrics()
	assert.Equal(t, model.StatusFailed, m.Status)
	assert.Equal(t, int64(100), m.TotalRecords)
	assert.Equal(t, int64(4), m.ErrorCount)
	require.NotNil(t, m.EndTime)
	assert.Equal(t, "completed", m.StageMetrics[model.StageLoad].Status)
	assert.Equal(t, "failed", m.StageMetrics[model.StageClean].Status)

	// the copy is detached from the tracker
	m.StageMetrics[model.StageSave] = model.StageMetrics{}
	assert.NotContains(t, rt.GetMetrics().StageMetrics, model.StageSave)

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	run, err := db.GetRun("run-track")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, run.Status)

	errs, err := db.GetRunErrors("run-track")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "boom", errs[0].Message)

	logs, err := db.GetPipelineLogs("run-track")
	require.NoError(t, err)
	assert.Len(t, logs, 4)
}
