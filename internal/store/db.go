package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"off-data-pipeline/internal/model"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned when a run ID has no stored row
var ErrRunNotFound = errors.New("run not found")

// DB is the sqlite run history: runs, stage progress, logs, errors and brand results
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the run store at dbPath
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// one writer at a time; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func initSchema(db *sql.DB) error {
	tables := []string{`
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		error_message TEXT,
		created_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS run_stages (
		run_id TEXT,
		stage TEXT,
		status TEXT,
		started_at DATETIME,
		ended_at DATETIME,
		records INTEGER DEFAULT 0,
		errors INTEGER DEFAULT 0,
		PRIMARY KEY (run_id, stage)
	);`, `
	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		level TEXT,
		message TEXT,
		details TEXT,
		created_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS brand_results (
		run_id TEXT,
		rank INTEGER,
		brands TEXT,
		avg_nutriscore REAL,
		product_count INTEGER,
		PRIMARY KEY (run_id, rank)
	);`, `
	CREATE TABLE IF NOT EXISTS output_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		type TEXT,
		path TEXT,
		record_count INTEGER,
		success INTEGER,
		error_message TEXT,
		created_at DATETIME
	);`,
	}
	for _, ddl := range tables {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection
func (s *DB) Close() error {
	return s.db.Close()
}

// SaveRun stores a run, or updates status of an existing one
func (s *DB) SaveRun(runID string, spec model.RunSpec, status string) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		runID, string(specJSON), status, now, now)
	return err
}

// UpdateRunStatus updates run status
func (s *DB) UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// ClaimRetry moves a failed run to retrying. It reports false when the run
// is not failed, so only one caller wins a concurrent retry.
func (s *DB) ClaimRetry(runID string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		model.StatusRetrying, now, runID, model.StatusFailed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListRuns returns all runs, newest first
func (s *DB) ListRuns() ([]model.Run, error) {
	rows, err := s.db.Query(`SELECT id, spec, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun fetches one run with its spec
func (s *DB) GetRun(runID string) (*model.Run, error) {
	row := s.db.QueryRow(`SELECT id, spec, status, created_at, updated_at FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*model.Run, error) {
	var run model.Run
	var specJSON string
	if err := sc.Scan(&run.ID, &specJSON, &run.Status, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(specJSON), &run.Spec); err != nil {
		return nil, fmt.Errorf("decode spec of run %s: %w", run.ID, err)
	}
	return &run, nil
}

// SaveRunError records an error for a run
func (s *DB) SaveRunError(runID, stage string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := s.db.Exec(`INSERT INTO run_errors (run_id, stage, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, stage, err.Error(), now)
	return e
}

// GetRunErrors returns the errors recorded for a run
func (s *DB) GetRunErrors(runID string) ([]model.ErrorDetail, error) {
	rows, err := s.db.Query(`SELECT stage, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := []model.ErrorDetail{}
	for rows.Next() {
		var d model.ErrorDetail
		if err := rows.Scan(&d.Stage, &d.Message, &d.Timestamp); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// SaveStageProgress upserts the progress row of a stage
func (s *DB) SaveStageProgress(runID, stage, status string, startedAt, endedAt *time.Time, records, errCount int) error {
	_, err := s.db.Exec(`INSERT INTO run_stages (run_id, stage, status, started_at, ended_at, records, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage) DO UPDATE SET
			status = excluded.status,
			started_at = COALESCE(excluded.started_at, run_stages.started_at),
			ended_at = excluded.ended_at,
			records = excluded.records,
			errors = excluded.errors`,
		runID, stage, status, nullTime(startedAt), nullTime(endedAt), records, errCount)
	return err
}

// GetStageProgress returns stage progress rows in execution order
func (s *DB) GetStageProgress(runID string) ([]model.StageProgress, error) {
	rows, err := s.db.Query(`SELECT stage, status, started_at, ended_at, records, errors
		FROM run_stages WHERE run_id = ? ORDER BY started_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := []model.StageProgress{}
	for rows.Next() {
		var p model.StageProgress
		var started, ended sql.NullTime
		if err := rows.Scan(&p.Stage, &p.Status, &started, &ended, &p.Records, &p.Errors); err != nil {
			return nil, err
		}
		if started.Valid {
			p.StartedAt = &started.Time
		}
		if ended.Valid {
			p.EndedAt = &ended.Time
		}
		stages = append(stages, p)
	}
	return stages, rows.Err()
}

// SavePipelineLog stores a log line with optional structured details
func (s *DB) SavePipelineLog(runID, stage, level, message string, details map[string]interface{}) error {
	var detailsJSON []byte
	if len(details) > 0 {
		var err error
		if detailsJSON, err = json.Marshal(details); err != nil {
			return err
		}
	}
	_, err := s.db.Exec(`INSERT INTO run_logs (run_id, stage, level, message, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage, level, message, string(detailsJSON), time.Now().UTC())
	return err
}

// GetPipelineLogs returns the log lines of a run, oldest first
func (s *DB) GetPipelineLogs(runID string) ([]model.PipelineLog, error) {
	rows, err := s.db.Query(`SELECT stage, level, message, details, created_at FROM run_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []model.PipelineLog{}
	for rows.Next() {
		var l model.PipelineLog
		var details string
		if err := rows.Scan(&l.Stage, &l.Level, &l.Message, &details, &l.CreatedAt); err != nil {
			return nil, err
		}
		if details != "" {
			if err := json.Unmarshal([]byte(details), &l.Details); err != nil {
				return nil, fmt.Errorf("decode log details: %w", err)
			}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// SaveBrandResults replaces the stored brand rows of a run, keeping report order as rank
func (s *DB) SaveBrandResults(runID string, results []model.BrandAggregate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM brand_results WHERE run_id = ?`, runID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO brand_results (run_id, rank, brands, avg_nutriscore, product_count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range results {
		if _, err := stmt.Exec(runID, i+1, r.Brands, r.AvgNutriscore, r.ProductCount); err != nil {
			return fmt.Errorf("insert brand %q: %w", r.Brands, err)
		}
	}
	return tx.Commit()
}

// GetBrandResults returns the stored brand rows of a run in report order
func (s *DB) GetBrandResults(runID string) ([]model.BrandAggregate, error) {
	rows, err := s.db.Query(`SELECT brands, avg_nutriscore, product_count FROM brand_results WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.BrandAggregate{}
	for rows.Next() {
		var r model.BrandAggregate
		if err := rows.Scan(&r.Brands, &r.AvgNutriscore, &r.ProductCount); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SaveOutputFile records an export attempt
func (s *DB) SaveOutputFile(runID string, result model.ExportResult) error {
	_, err := s.db.Exec(`INSERT INTO output_files (run_id, type, path, record_count, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, result.Type, result.Path, result.RecordCount, result.Success, result.Error, result.Timestamp.UTC())
	return err
}

// GetOutputFiles returns the export attempts of a run
func (s *DB) GetOutputFiles(runID string) ([]model.ExportResult, error) {
	rows, err := s.db.Query(`SELECT type, path, record_count, success, error_message, created_at
		FROM output_files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []model.ExportResult{}
	for rows.Next() {
		var f model.ExportResult
		if err := rows.Scan(&f.Type, &f.Path, &f.RecordCount, &f.Success, &f.Error, &f.Timestamp); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
