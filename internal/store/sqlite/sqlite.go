// Package sqlite is the default vector store: one SQLite file, embeddings
// as little-endian float32 blobs, and a brute-force nearest-neighbour scan.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/TobiSchelling/newsjuice/internal/config"
	"github.com/TobiSchelling/newsjuice/internal/store"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database connection.
type Store struct {
	conn   *sql.DB
	path   string
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open creates or opens a SQLite store at the given path and brings its
// schema up to date.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sqlite-store")

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %v", config.ErrConfiguration, err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", config.ErrConfiguration, err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: setting journal mode: %v", config.ErrConfiguration, err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := migrate(conn, logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &Store{conn: conn, path: dbPath, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}
