package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertSpec names the target table and column roles for a bulk upsert.
type UpsertSpec struct {
	Table        string
	Columns      []string
	ConflictKeys []string // columns forming the unique constraint
}

// BulkUpsert loads rows through a temp table and folds them into the target
// with INSERT ... ON CONFLICT DO UPDATE. Every non-key column takes the
// incoming value.
func BulkUpsert(ctx context.Context, pool Pool, spec UpsertSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(spec.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns")
	}
	if len(spec.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys")
	}

	keySet := make(map[string]bool, len(spec.ConflictKeys))
	for _, k := range spec.ConflictKeys {
		keySet[k] = true
	}
	var updateCols []string
	for _, c := range spec.Columns {
		if !keySet[c] {
			updateCols = append(updateCols, c)
		}
	}
	if len(updateCols) == 0 {
		return 0, eris.New("db: upsert: every column is a conflict key")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin")
	}
	defer tx.Rollback(ctx)

	temp := "_tmp_upsert_" + spec.Table

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{temp}.Sanitize(),
		pgx.Identifier{spec.Table}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", spec.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{temp}, spec.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", spec.Table)
	}

	sets := make([]string, len(updateCols))
	for i, col := range updateCols {
		q := pgx.Identifier{col}.Sanitize()
		sets[i] = q + " = EXCLUDED." + q
	}

	upsertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		pgx.Identifier{spec.Table}.Sanitize(),
		quoteAndJoin(spec.Columns),
		quoteAndJoin(spec.Columns),
		pgx.Identifier{temp}.Sanitize(),
		quoteAndJoin(spec.ConflictKeys),
		strings.Join(sets, ", "),
	)
	tag, err := tx.Exec(ctx, upsertSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: fold into %s", spec.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit")
	}
	return tag.RowsAffected(), nil
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
