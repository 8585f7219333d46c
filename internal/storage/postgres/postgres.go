// Package postgres stores run history in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/reliefscope/internal/storage"
)

var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	target       TEXT NOT NULL DEFAULT '',
	query        TEXT NOT NULL DEFAULT '',
	status_code  INTEGER NOT NULL DEFAULT 0,
	rows         INTEGER NOT NULL DEFAULT 0,
	output       TEXT NOT NULL DEFAULT '',
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	detected_bot BOOLEAN NOT NULL DEFAULT FALSE,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_kind_created_at ON runs (kind, created_at DESC);
`

const columns = `id, kind, target, query, status_code, rows, output, duration_ms, detected_bot, error, created_at`

// New connects to dsn and applies the run-history schema.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, run *storage.Run) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO runs (`+columns+`)
		VALUES (@id, @kind, @target, @query, @status, @rows, @output, @duration_ms, @detected_bot, @error, @created_at)`,
		pgx.NamedArgs{
			"id":           run.ID,
			"kind":         run.Kind,
			"target":       run.Target,
			"query":        run.Query,
			"status":       run.StatusCode,
			"rows":         run.Rows,
			"output":       run.Output,
			"duration_ms":  run.Duration.Milliseconds(),
			"detected_bot": run.DetectedBot,
			"error":        run.Error,
			"created_at":   run.CreatedAt,
		})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Run, error) {
	var (
		where []string
		args  = pgx.NamedArgs{}
	)
	if filter.Kind != "" {
		where = append(where, "kind = @kind")
		args["kind"] = filter.Kind
	}
	if filter.Since != nil {
		where = append(where, "created_at >= @since")
		args["since"] = *filter.Since
	}

	stmt := "SELECT " + columns + " FROM runs"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		stmt += " LIMIT @limit"
		args["limit"] = filter.Limit
	}
	if filter.Offset > 0 {
		stmt += " OFFSET @offset"
		args["offset"] = filter.Offset
	}

	rows, err := b.pool.Query(ctx, stmt, args)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	if runs == nil {
		runs = []*storage.Run{}
	}
	return runs, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}

func scanRun(row pgx.CollectableRow) (*storage.Run, error) {
	var (
		r          storage.Run
		durationMs int64
	)
	err := row.Scan(&r.ID, &r.Kind, &r.Target, &r.Query, &r.StatusCode, &r.Rows, &r.Output,
		&durationMs, &r.DetectedBot, &r.Error, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return &r, nil
}
