package engine

import (
	"fmt"
	"io"
	"log"
	"off-data-pipeline/internal/model"
	"off-data-pipeline/internal/store"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPartitionSize is the number of rows handed to one worker at a time
const DefaultPartitionSize = 50000

// Recorder persists run progress. *store.DB implements it.
type Recorder interface {
	SaveRun(runID string, spec model.RunSpec, status string) error
	UpdateRunStatus(runID, status string) error
	SaveStageProgress(runID, stage, status string, startedAt, endedAt *time.Time, records, errCount int) error
	SavePipelineLog(runID, stage, level, message string, details map[string]interface{}) error
	SaveRunError(runID, stage string, err error) error
	SaveBrandResults(runID string, results []model.BrandAggregate) error
	SaveOutputFile(runID string, result model.ExportResult) error
	Close() error
}

// Options configures a Session
type Options struct {
	RunID         string    // generated when empty
	Workers       int       // defaults to runtime.NumCPU()
	PartitionSize int       // defaults to DefaultPartitionSize
	DBPath        string    // run store; empty disables run history
	Console       io.Writer // report preview; defaults to os.Stdout
}

// Session is the execution handle of one run. It must be closed.
type Session struct {
	runID         string
	workers       int
	partitionSize int
	recorder      Recorder
	console       io.Writer
	startedAt     time.Time

	closeOnce sync.Once
	closeErr  error
}

// Open acquires the resources of a run
func Open(opts Options) (*Session, error) {
	if opts.Workers < 0 {
		return nil, fmt.Errorf("workers must be >= 0, got %d", opts.Workers)
	}
	if opts.PartitionSize < 0 {
		return nil, fmt.Errorf("partition size must be >= 0, got %d", opts.PartitionSize)
	}

	s := &Session{
		runID:         opts.RunID,
		workers:       opts.Workers,
		partitionSize: opts.PartitionSize,
		recorder:      nopRecorder{},
		console:       opts.Console,
		startedAt:     time.Now(),
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	if s.workers == 0 {
		s.workers = runtime.NumCPU()
	}
	if s.partitionSize == 0 {
		s.partitionSize = DefaultPartitionSize
	}
	if s.console == nil {
		s.console = os.Stdout
	}

	if opts.DBPath != "" {
		db, err := store.Open(opts.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open run store: %w", err)
		}
		s.recorder = db
	}

	log.Printf("⚙️  Session %s started (%d workers, partition size %d)", s.runID, s.workers, s.partitionSize)
	return s, nil
}

// Close releases the session. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.recorder.Close()
		log.Printf("🛑 Session %s stopped after %v", s.runID, time.Since(s.startedAt).Round(time.Millisecond))
	})
	return s.closeErr
}

func (s *Session) RunID() string      { return s.runID }
func (s *Session) Workers() int       { return s.workers }
func (s *Session) PartitionSize() int { return s.partitionSize }
func (s *Session) Recorder() Recorder { return s.recorder }
func (s *Session) Console() io.Writer { return s.console }

type nopRecorder struct{}

func (nopRecorder) SaveRun(string, model.RunSpec, string) error { return nil }
func (nopRecorder) UpdateRunStatus(string, string) error        { return nil }
func (nopRecorder) SaveStageProgress(string, string, string, *time.Time, *time.Time, int, int) error {
	return nil
}
func (nopRecorder) SavePipelineLog(string, string, string, string, map[string]interface{}) error {
	return nil
}
func (nopRecorder) SaveRunError(string, string, error) error              { return nil }
func (nopRecorder) SaveBrandResults(string, []model.BrandAggregate) error { return nil }
func (nopRecorder) SaveOutputFile(string, model.ExportResult) error       { return nil }
func (nopRecorder) Close() error                                          { return nil }
