package sqlite

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "chunk vectors",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS chunks_vector (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    article_id TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    author TEXT,
    title TEXT,
    summary TEXT,
    source_link TEXT NOT NULL,
    fetched_at TEXT NOT NULL,
    published_at TEXT,
    source_type TEXT,
    chunk_text TEXT NOT NULL,
    embedding BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    embedding_model TEXT,
    UNIQUE (article_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_chunks_article ON chunks_vector(article_id);
CREATE INDEX IF NOT EXISTS idx_chunks_source_type ON chunks_vector(source_type);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "load run summaries",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS load_runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    embedding_model TEXT,
    articles INTEGER DEFAULT 0,
    attempted INTEGER DEFAULT 0,
    succeeded INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0,
    skipped_articles INTEGER DEFAULT 0
);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
