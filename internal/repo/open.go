package repo

import (
	"context"
	"fmt"
)

// Open returns the repository for a store driver, or nil when driver is empty.
func Open(ctx context.Context, driver, dsn string) (Repository, error) {
	switch driver {
	case "":
		return nil, nil
	case "sqlite":
		r, err := NewSQLiteRepository(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "postgres":
		db, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		r, err := NewPostgresRepository(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
