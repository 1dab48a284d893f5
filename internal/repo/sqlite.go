package repo

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	id                     TEXT PRIMARY KEY,
	title                  TEXT NOT NULL DEFAULT '',
	method                 TEXT NOT NULL,
	status                 TEXT NOT NULL,
	rating                 TEXT NOT NULL DEFAULT '',
	governing_x_m          REAL,
	governing_pressure_kpa REAL,
	created_at             TEXT NOT NULL,
	request                TEXT NOT NULL,
	result                 TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS analyses_created_at ON analyses (created_at DESC);
`

var sqliteDialect = dialect{
	schema: sqliteSchema,
	insert: `INSERT INTO analyses (id, title, method, status, rating, governing_x_m,
		governing_pressure_kpa, created_at, request, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	get: `SELECT id, title, method, status, rating, governing_x_m, governing_pressure_kpa,
		created_at, request, result FROM analyses WHERE id = ?`,
	list: `SELECT id, title, method, status, rating, governing_x_m, governing_pressure_kpa,
		created_at FROM analyses ORDER BY created_at DESC, id LIMIT ?`,
}

// SQLiteRepository keeps analyses in a local database file.
type SQLiteRepository struct {
	sqlStore
}

func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	r := &SQLiteRepository{sqlStore{db: db, d: sqliteDialect}}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}
