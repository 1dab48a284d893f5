package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	id                     TEXT PRIMARY KEY,
	title                  TEXT NOT NULL DEFAULT '',
	method                 TEXT NOT NULL,
	status                 TEXT NOT NULL,
	rating                 TEXT NOT NULL DEFAULT '',
	governing_x_m          DOUBLE PRECISION,
	governing_pressure_kpa DOUBLE PRECISION,
	created_at             TEXT NOT NULL,
	request                JSONB NOT NULL,
	result                 JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS analyses_created_at ON analyses (created_at DESC);
`

var pgDialect = dialect{
	schema: pgSchema,
	insert: `INSERT INTO analyses (id, title, method, status, rating, governing_x_m,
		governing_pressure_kpa, created_at, request, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10::jsonb)`,
	get: `SELECT id, title, method, status, rating, governing_x_m, governing_pressure_kpa,
		created_at, request::text, result::text FROM analyses WHERE id=$1`,
	list: `SELECT id, title, method, status, rating, governing_x_m, governing_pressure_kpa,
		created_at FROM analyses ORDER BY created_at DESC, id LIMIT $1`,
}

type PostgresRepository struct {
	sqlStore
}

func NewPostgresRepository(ctx context.Context, db *sql.DB) (*PostgresRepository, error) {
	r := &PostgresRepository{sqlStore{db: db, d: pgDialect}}
	if err := r.migrate(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// OpenPostgres connects with the pool settings of the service. A DSN without
// sslmode gets sslmode=require.
func OpenPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	if !strings.Contains(connStr, "sslmode=") {
		if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
			if strings.Contains(connStr, "?") {
				connStr += "&sslmode=require"
			} else {
				connStr += "?sslmode=require"
			}
		} else {
			connStr += " sslmode=require"
		}
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
