package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// dialect carries the per-driver statements; everything else is shared.
type dialect struct {
	schema string
	insert string
	get    string
	list   string
}

type sqlStore struct {
	db *sql.DB
	d  dialect
}

func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *sqlStore) SaveAnalysis(ctx context.Context, a Analysis) (string, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.d.insert,
		a.ID, a.Title, a.Method, a.Status, a.Rating,
		nullFloat(a.GoverningX), nullFloat(a.GoverningPressure),
		a.CreatedAt.UTC().Format(timeLayout),
		string(a.Request), string(a.Result),
	)
	if err != nil {
		return "", fmt.Errorf("insert analysis: %w", err)
	}
	return a.ID, nil
}

func (s *sqlStore) GetAnalysis(ctx context.Context, id string) (Analysis, error) {
	var a Analysis
	var x, p sql.NullFloat64
	var created string
	var req, res []byte
	err := s.db.QueryRowContext(ctx, s.d.get, id).Scan(
		&a.ID, &a.Title, &a.Method, &a.Status, &a.Rating, &x, &p, &created, &req, &res)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, fmt.Errorf("get analysis: %w", err)
	}
	if a.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Analysis{}, fmt.Errorf("parse created_at: %w", err)
	}
	a.GoverningX, a.GoverningPressure = floatPtr(x), floatPtr(p)
	a.Request, a.Result = req, res
	return a, nil
}

func (s *sqlStore) ListAnalyses(ctx context.Context, limit int) ([]Analysis, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.d.list, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		var a Analysis
		var x, p sql.NullFloat64
		var created string
		if err := rows.Scan(&a.ID, &a.Title, &a.Method, &a.Status, &a.Rating, &x, &p, &created); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		if a.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		a.GoverningX, a.GoverningPressure = floatPtr(x), floatPtr(p)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
