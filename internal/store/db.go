package store

import (
	"database/sql"
	"time"

	"cbp-establishments/internal/model"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var db *sql.DB

var (
	ErrNotInitialized = errors.New("store not initialized")
	ErrRunNotFound    = errors.New("run not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	start_year INTEGER,
	status TEXT,
	artifact_path TEXT,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	error_message TEXT,
	created_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_years (
	run_id TEXT,
	year INTEGER,
	status TEXT,
	record_count INTEGER,
	status_code INTEGER,
	reason TEXT,
	PRIMARY KEY (run_id, year)
);
CREATE TABLE IF NOT EXISTS stage_progress (
	run_id TEXT,
	stage TEXT,
	status TEXT,
	started_at DATETIME,
	ended_at DATETIME,
	records INTEGER,
	PRIMARY KEY (run_id, stage)
);
CREATE TABLE IF NOT EXISTS establishments (
	run_id TEXT,
	municipality TEXT,
	year INTEGER,
	establishments INTEGER
);
`

// InitDB opens the SQLite database and creates tables if not exists
func InitDB(dbPath string) error {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return errors.Wrapf(err, "opening sqlite database %s", dbPath)
	}
	// sqlite allows a single writer; the API runs collections in goroutines.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return errors.Wrap(err, "creating schema")
	}
	db = conn
	return nil
}

// Close releases the database handle.
func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// Enabled reports whether InitDB succeeded.
func Enabled() bool {
	return db != nil
}

// SaveRun stores a new run in the running state
func SaveRun(runID string, startYear int) error {
	if db == nil {
		return ErrNotInitialized
	}
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO runs (id, start_year, status, artifact_path, created_at, updated_at) VALUES (?, ?, ?, '', ?, ?)`,
		runID, startYear, model.RunStatusRunning, now, now)
	return errors.Wrap(err, "saving run")
}

// UpdateRunStatus updates run status
func UpdateRunStatus(runID string, status string) error {
	if db == nil {
		return ErrNotInitialized
	}
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), runID)
	return errors.Wrap(err, "updating run status")
}

// SetRunArtifact records where the JSON artifact was written
func SetRunArtifact(runID, path string) error {
	if db == nil {
		return ErrNotInitialized
	}
	_, err := db.Exec(`UPDATE runs SET artifact_path = ?, updated_at = ? WHERE id = ?`, path, time.Now().UTC(), runID)
	return errors.Wrap(err, "updating run artifact")
}

// SaveRunError records an error for a run
func SaveRunError(runID string, err error) error {
	if err == nil {
		return nil
	}
	if db == nil {
		return ErrNotInitialized
	}
	_, e := db.Exec(`INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, err.Error(), time.Now().UTC())
	return errors.Wrap(e, "saving run error")
}

// SaveYearOutcome upserts the fetch outcome for one year of a run
func SaveYearOutcome(runID string, outcome model.YearOutcome) error {
	if db == nil {
		return ErrNotInitialized
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO run_years (run_id, year, status, record_count, status_code, reason) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, outcome.Year, outcome.Status, outcome.RecordCount, outcome.StatusCode, outcome.Reason)
	return errors.Wrap(err, "saving year outcome")
}

// SaveStageProgress upserts the progress of a pipeline stage
func SaveStageProgress(runID string, stage model.StageMetrics) error {
	if db == nil {
		return ErrNotInitialized
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO stage_progress (run_id, stage, status, started_at, ended_at, records) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage.Stage, stage.Status, stage.StartTime.UTC(), nullableTime(stage.EndTime), stage.RecordsProcessed)
	return errors.Wrap(err, "saving stage progress")
}

// SaveEstablishments persists long-form records for a run in one transaction
func SaveEstablishments(runID string, records []model.YearlyRecord) (err error) {
	if db == nil {
		return ErrNotInitialized
	}
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`INSERT INTO establishments (run_id, municipality, year, establishments) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing insert")
	}
	defer stmt.Close()

	for _, r := range records {
		var value sql.NullInt64
		if r.Establishments != nil {
			value = sql.NullInt64{Int64: int64(*r.Establishments), Valid: true}
		}
		if _, err = stmt.Exec(runID, r.Municipality, r.Year, value); err != nil {
			return errors.Wrapf(err, "inserting %s %d", r.Municipality, r.Year)
		}
	}
	return errors.Wrap(tx.Commit(), "committing establishments")
}

// ListRuns returns all runs, newest first
func ListRuns() ([]model.RunInfo, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT id, start_year, status, artifact_path, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "listing runs")
	}
	defer rows.Close()

	runs := []model.RunInfo{}
	for rows.Next() {
		var r model.RunInfo
		if err := rows.Scan(&r.ID, &r.StartYear, &r.Status, &r.ArtifactPath, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning run")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches a single run
func GetRun(runID string) (*model.RunInfo, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	var r model.RunInfo
	err := db.QueryRow(`SELECT id, start_year, status, artifact_path, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.StartYear, &r.Status, &r.ArtifactPath, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetching run")
	}
	return &r, nil
}

// GetRunYears returns the per-year outcomes of a run ordered by year
func GetRunYears(runID string) ([]model.YearOutcome, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT year, status, record_count, status_code, reason FROM run_years WHERE run_id = ? ORDER BY year`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "listing run years")
	}
	defer rows.Close()

	outcomes := []model.YearOutcome{}
	for rows.Next() {
		var o model.YearOutcome
		if err := rows.Scan(&o.Year, &o.Status, &o.RecordCount, &o.StatusCode, &o.Reason); err != nil {
			return nil, errors.Wrap(err, "scanning run year")
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// GetRunErrors returns the errors recorded for a run
func GetRunErrors(runID string) ([]model.RunError, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "listing run errors")
	}
	defer rows.Close()

	out := []model.RunError{}
	for rows.Next() {
		var e model.RunError
		if err := rows.Scan(&e.Message, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning run error")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetStageProgress returns the recorded stages of a run
func GetStageProgress(runID string) ([]model.StageMetrics, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT stage, status, started_at, ended_at, records FROM stage_progress WHERE run_id = ? ORDER BY started_at`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "listing stage progress")
	}
	defer rows.Close()

	out := []model.StageMetrics{}
	for rows.Next() {
		var s model.StageMetrics
		var ended sql.NullTime
		if err := rows.Scan(&s.Stage, &s.Status, &s.StartTime, &ended, &s.RecordsProcessed); err != nil {
			return nil, errors.Wrap(err, "scanning stage progress")
		}
		if ended.Valid {
			t := ended.Time
			s.EndTime = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetEstablishments returns the persisted long-form records of a run
func GetEstablishments(runID string) ([]model.YearlyRecord, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT municipality, year, establishments FROM establishments WHERE run_id = ? ORDER BY municipality, year`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "listing establishments")
	}
	defer rows.Close()

	out := []model.YearlyRecord{}
	for rows.Next() {
		var r model.YearlyRecord
		var value sql.NullInt64
		if err := rows.Scan(&r.Municipality, &r.Year, &value); err != nil {
			return nil, errors.Wrap(err, "scanning establishment")
		}
		if value.Valid {
			v := int(value.Int64)
			r.Establishments = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
