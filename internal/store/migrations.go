package store

import (
	"fmt"
)

// migrate runs all pending migrations
func (s *Store) migrate() error {
	createMigrationsTableSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := s.db.Exec(createMigrationsTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	s.logger.Debug("current schema version", "version", currentVersion)

	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE runs (
					id TEXT PRIMARY KEY,
					start_time DATETIME NOT NULL,
					end_time DATETIME,
					labs TEXT NOT NULL DEFAULT '',
					succeeded INTEGER DEFAULT 0,
					total INTEGER DEFAULT 0,
					status TEXT DEFAULT 'running',
					error_message TEXT NOT NULL DEFAULT ''
				);

				CREATE TABLE outcomes (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					lab_id INTEGER NOT NULL,
					lab_name TEXT NOT NULL,
					reference TEXT NOT NULL,
					destination TEXT NOT NULL,
					status TEXT NOT NULL,
					error TEXT NOT NULL DEFAULT '',
					recorded_at DATETIME NOT NULL,
					FOREIGN KEY(run_id) REFERENCES runs(id)
				);

				CREATE INDEX idx_outcomes_run ON outcomes(run_id);
			`,
		},
		{
			version: 2,
			sql: `
				CREATE TABLE manifest_snapshots (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL DEFAULT '',
					lab_name TEXT NOT NULL,
					path TEXT NOT NULL,
					written_at DATETIME NOT NULL,
					directories INTEGER DEFAULT 0,
					files INTEGER DEFAULT 0,
					total_bytes INTEGER DEFAULT 0
				);

				CREATE INDEX idx_manifest_snapshots_lab ON manifest_snapshots(lab_name, written_at);
			`,
		},
	}

	for _, mig := range migrations {
		if mig.version > currentVersion {
			s.logger.Debug("running migration", "version", mig.version)

			if err := s.runMigration(mig.version, mig.sql); err != nil {
				return fmt.Errorf("failed to run migration %d: %w", mig.version, err)
			}
		}
	}

	return nil
}

// runMigration executes a migration and records it
func (s *Store) runMigration(version int, sql string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	return nil
}
