// Package db provides shared pgx helpers for policy-driven bulk inserts.
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// InsertConfig defines the parameters for a bulk insert with an explicit
// conflict policy.
type InsertConfig struct {
	Table        string   // target table
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	Overwrite    bool     // false = DO NOTHING, true = DO UPDATE all non-key columns
}

// BulkInsert inserts rows with INSERT ... ON CONFLICT, batched in a single
// transaction so the whole call commits durably or not at all.
func BulkInsert(ctx context.Context, pool Pool, cfg InsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: insert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: insert: no conflict keys specified")
	}

	stmt := buildInsertSQL(cfg)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: insert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var total int64
	for _, row := range rows {
		tag, err := tx.Exec(ctx, stmt, row...)
		if err != nil {
			return total, eris.Wrapf(err, "db: insert into %s", cfg.Table)
		}
		total += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return total, eris.Wrapf(err, "db: insert: commit %s", cfg.Table)
	}
	return total, nil
}

func buildInsertSQL(cfg InsertConfig) string {
	placeholders := make([]string, len(cfg.Columns))
	for i := range cfg.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	conflict := "DO NOTHING"
	if cfg.Overwrite {
		keySet := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			keySet[k] = true
		}
		var sets []string
		for _, col := range cfg.Columns {
			if !keySet[col] {
				sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
			}
		}
		conflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		cfg.Table,
		strings.Join(cfg.Columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(cfg.ConflictKeys, ", "),
		conflict,
	)
}
