package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store provides SQLite-backed run history
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("store initialized", "path", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ============================================================================
// Run Operations
// ============================================================================

// CreateRun inserts a new Run. The caller assigns the ID.
func (s *Store) CreateRun(run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}

	const query = `
		INSERT INTO runs (
			id, start_time, end_time, labs, succeeded, total, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(
		query,
		run.ID, run.StartTime, run.EndTime, run.Labs,
		run.Succeeded, run.Total, run.Status, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// UpdateRun updates an existing Run by ID
func (s *Store) UpdateRun(run *Run) error {
	const query = `
		UPDATE runs SET
			start_time = ?, end_time = ?, labs = ?, succeeded = ?,
			total = ?, status = ?, error_message = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.StartTime, run.EndTime, run.Labs, run.Succeeded,
		run.Total, run.Status, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}

	return nil
}

// GetRun retrieves a Run by ID
func (s *Store) GetRun(id string) (*Run, error) {
	const query = `
		SELECT id, start_time, end_time, labs, succeeded, total, status, error_message
		FROM runs WHERE id = ?
	`

	run := &Run{}
	err := s.db.QueryRow(query, id).Scan(
		&run.ID, &run.StartTime, &run.EndTime, &run.Labs,
		&run.Succeeded, &run.Total, &run.Status, &run.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	return run, nil
}

// ListRuns retrieves Runs newest first. A non-zero labID keeps only runs
// that covered that lab.
func (s *Store) ListRuns(labID int, limit int) ([]Run, error) {
	query := `
		SELECT id, start_time, end_time, labs, succeeded, total, status, error_message
		FROM runs
	`
	var args []interface{}

	if labID != 0 {
		query += " WHERE (',' || labs || ',') LIKE ?"
		args = append(args, fmt.Sprintf("%%,%d,%%", labID))
	}

	query += " ORDER BY start_time DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run := Run{}
		err := rows.Scan(
			&run.ID, &run.StartTime, &run.EndTime, &run.Labs,
			&run.Succeeded, &run.Total, &run.Status, &run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// ============================================================================
// Outcome Operations
// ============================================================================

// AddOutcome records a per-dataset result and sets its ID
func (s *Store) AddOutcome(o *Outcome) error {
	const query = `
		INSERT INTO outcomes (
			run_id, lab_id, lab_name, reference, destination, status, error, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		o.RunID, o.LabID, o.LabName, o.Reference, o.Destination,
		o.Status, o.Error, o.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	o.ID = id
	return nil
}

// ListOutcomes returns the outcomes of a run in the order they were recorded
func (s *Store) ListOutcomes(runID string) ([]Outcome, error) {
	const query = `
		SELECT id, run_id, lab_id, lab_name, reference, destination, status, error, recorded_at
		FROM outcomes WHERE run_id = ? ORDER BY id
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		o := Outcome{}
		err := rows.Scan(
			&o.ID, &o.RunID, &o.LabID, &o.LabName, &o.Reference,
			&o.Destination, &o.Status, &o.Error, &o.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}

	return outcomes, nil
}

// ============================================================================
// ManifestSnapshot Operations
// ============================================================================

// RecordManifest stores a summary of a written manifest and sets its ID
func (s *Store) RecordManifest(m *ManifestSnapshot) error {
	const query = `
		INSERT INTO manifest_snapshots (
			run_id, lab_name, path, written_at, directories, files, total_bytes
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		m.RunID, m.LabName, m.Path, m.WrittenAt, m.Directories, m.Files, m.TotalBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert manifest snapshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	m.ID = id
	return nil
}

// LatestManifest returns the most recent snapshot for a lab
func (s *Store) LatestManifest(labName string) (*ManifestSnapshot, error) {
	const query = `
		SELECT id, run_id, lab_name, path, written_at, directories, files, total_bytes
		FROM manifest_snapshots WHERE lab_name = ?
		ORDER BY written_at DESC, id DESC LIMIT 1
	`

	m := &ManifestSnapshot{}
	err := s.db.QueryRow(query, labName).Scan(
		&m.ID, &m.RunID, &m.LabName, &m.Path, &m.WrittenAt,
		&m.Directories, &m.Files, &m.TotalBytes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("manifest for %s: %w", labName, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query manifest snapshot: %w", err)
	}

	return m, nil
}
