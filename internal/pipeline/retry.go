package pipeline

import (
	"context"
	"errors"
	"fmt"
	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/model"
)

// ErrNotRetryable is returned when a run is not in a failed state
var ErrNotRetryable = errors.New("run is not retryable")

// RunLookup finds stored runs and claims failed ones for a retry
type RunLookup interface {
	GetRun(runID string) (*model.Run, error)
	ClaimRetry(runID string) (bool, error)
}

// RetryRun re-executes a failed run with its stored spec. The session must
// carry the run's ID so progress lands on the same run.
func RetryRun(ctx context.Context, sess *engine.Session, runs RunLookup) (*model.RunResult, error) {
	run, err := runs.GetRun(sess.RunID())
	if err != nil {
		return nil, err
	}
	claimed, err := runs.ClaimRetry(run.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRetryable, run.ID, run.Status)
	}

	fmt.Printf("🔄 Retrying run %s\n", run.ID)
	return Run(ctx, sess, run.Spec)
}
