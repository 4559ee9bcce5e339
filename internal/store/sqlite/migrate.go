package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// getSchemaVersion reads PRAGMA user_version from the database.
func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// isUnversionedDB returns true if the chunk table exists but no
// user_version was ever set, e.g. a table created by hand.
func isUnversionedDB(conn *sql.DB) (bool, error) {
	var count int
	err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='chunks_vector'",
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking for existing tables: %w", err)
	}
	return count > 0, nil
}

// migrate brings the database schema up to the latest version.
// It uses PRAGMA user_version to track which migrations have been applied.
func migrate(conn *sql.DB, logger *slog.Logger) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}

	// Migration 1 only uses IF NOT EXISTS, so an unversioned table is
	// re-run through it rather than stamped.
	if current == 0 {
		unversioned, err := isUnversionedDB(conn)
		if err != nil {
			return err
		}
		if unversioned {
			logger.Info("found unversioned chunk table, applying migrations from scratch")
		}
	}

	latest := latestVersion()
	if current >= latest {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// modernc/sqlite does not honour user_version inside a transaction.
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}

	return nil
}
