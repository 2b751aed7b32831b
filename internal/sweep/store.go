package sweep

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNoRuns reports a results store with no aggregation runs recorded yet.
var ErrNoRuns = errors.New("sweep: no aggregation runs recorded")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ResultsStore persists aggregated sweep results in a sqlite database at the
// sweep root. Each call to SaveRun records a full snapshot of the results
// table and completion vector under a fresh run ID; LoadLatest restores the
// most recent snapshot.
type ResultsStore struct {
	db *sql.DB
}

// OpenResultsStore opens (creating if needed) the results database at dbPath
// and applies any pending schema migrations.
func OpenResultsStore(dbPath string) (*ResultsStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sweep: opening results store: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sweep: executing %q: %w", pragma, err)
		}
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultsStore{db: db}, nil
}

// Close closes the underlying database.
func (rs *ResultsStore) Close() error {
	return rs.db.Close()
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sweep: loading migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("sweep: creating sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("sweep: creating migrate instance: %w", err)
	}
	// Not closing m here: it would close the shared DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sweep: migration up failed: %w", err)
	}
	return nil
}

// SaveRun stores a snapshot of the results table and completion vector and
// returns the ID of the new run.
func (rs *ResultsStore) SaveRun(family string, results *Table, completed []bool) (string, error) {
	runID := uuid.NewString()
	startedAt := time.Now().UTC().Format(time.RFC3339)

	numCompleted := 0
	for _, ok := range completed {
		if ok {
			numCompleted++
		}
	}

	err := retryOnBusy(func() error {
		tx, err := rs.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`
			INSERT INTO sweep_runs (run_id, family, started_at, completed_at, num_samples, num_completed)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, family, startedAt, startedAt, len(completed), numCompleted,
		); err != nil {
			return err
		}

		completedStmt, err := tx.Prepare(`
			INSERT INTO sweep_completed (run_id, sample_idx, completed) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer completedStmt.Close()
		for i, ok := range completed {
			if _, err := completedStmt.Exec(runID, i, boolInt(ok)); err != nil {
				return err
			}
		}

		resultStmt, err := tx.Prepare(`
			INSERT INTO sweep_results (run_id, sample_idx, condition, metric, threshold_idx, value, scalar, missing)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer resultStmt.Close()

		for _, idx := range results.Rows {
			record := results.Cells[idx]
			for key, value := range record {
				if value.Missing {
					if _, err := resultStmt.Exec(runID, idx, key.Condition, key.Metric,
						0, nil, 0, 1); err != nil {
						return err
					}
					continue
				}
				for ti, v := range value.Values {
					if _, err := resultStmt.Exec(runID, idx, key.Condition, key.Metric,
						ti, v, boolInt(value.Scalar), 0); err != nil {
						return err
					}
				}
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", fmt.Errorf("sweep: saving run %s: %w", runID, err)
	}
	return runID, nil
}

// LoadLatest restores the results table and completion vector of the most
// recent run. Returns ErrNoRuns when the store holds no runs.
func (rs *ResultsStore) LoadLatest() (*Table, []bool, error) {
	var runID string
	err := rs.db.QueryRow(`
		SELECT run_id FROM sweep_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNoRuns
	}
	if err != nil {
		return nil, nil, fmt.Errorf("sweep: finding latest run: %w", err)
	}
	return rs.LoadRun(runID)
}

// LoadRun restores the results table and completion vector of a single run.
func (rs *ResultsStore) LoadRun(runID string) (*Table, []bool, error) {
	rows, err := rs.db.Query(`
		SELECT sample_idx, completed FROM sweep_completed
		WHERE run_id = ? ORDER BY sample_idx`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("sweep: loading completion vector for run %s: %w", runID, err)
	}
	defer rows.Close()

	var completed []bool
	for rows.Next() {
		var idx, done int
		if err := rows.Scan(&idx, &done); err != nil {
			return nil, nil, fmt.Errorf("sweep: scanning completion row: %w", err)
		}
		for len(completed) <= idx {
			completed = append(completed, false)
		}
		completed[idx] = done != 0
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("sweep: reading completion rows: %w", err)
	}

	records, err := rs.loadRecords(runID)
	if err != nil {
		return nil, nil, err
	}
	return NewTable(records), completed, nil
}

func (rs *ResultsStore) loadRecords(runID string) (map[int]Record, error) {
	rows, err := rs.db.Query(`
		SELECT sample_idx, condition, metric, threshold_idx, value, scalar, missing
		FROM sweep_results
		WHERE run_id = ?
		ORDER BY sample_idx, condition, metric, threshold_idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("sweep: loading results for run %s: %w", runID, err)
	}
	defer rows.Close()

	records := make(map[int]Record)
	for rows.Next() {
		var (
			idx, thresholdIdx, scalar, missing int
			condition, metric                  string
			value                              sql.NullFloat64
		)
		if err := rows.Scan(&idx, &condition, &metric, &thresholdIdx, &value, &scalar, &missing); err != nil {
			return nil, fmt.Errorf("sweep: scanning result row: %w", err)
		}
		record, ok := records[idx]
		if !ok {
			record = make(Record)
			records[idx] = record
		}
		key := Key{Condition: condition, Metric: metric}
		if missing != 0 {
			record[key] = MissingValue()
			continue
		}
		v := record[key]
		for len(v.Values) <= thresholdIdx {
			v.Values = append(v.Values, 0)
		}
		if value.Valid {
			v.Values[thresholdIdx] = value.Float64
		}
		v.Scalar = scalar != 0
		record[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sweep: reading result rows: %w", err)
	}
	return records, nil
}

// Runs lists the recorded run IDs, most recent first.
func (rs *ResultsStore) Runs() ([]string, error) {
	rows, err := rs.db.Query(`
		SELECT run_id FROM sweep_runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("sweep: listing runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sweep: scanning run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isSQLiteBusy reports whether err is a transient SQLITE_BUSY condition
// worth retrying.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy retries fn up to five times with exponential backoff starting
// at 10ms while it keeps returning a busy error. Any other error is returned
// immediately.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 5
	delay := 10 * time.Millisecond
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		err = fn()
		if err == nil || !isSQLiteBusy(err) {
			return err
		}
	}
	return err
}
