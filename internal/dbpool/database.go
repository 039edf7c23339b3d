// Package dbpool provides the substrate's generic database contract: a
// pgx-backed connection pool offering both synchronous query/exec calls for
// handlers that can block, and an asynchronous variant that runs the query
// on a worker and posts the result back through a dispatcher as an ordinary
// job, so a Strand-confined caller never blocks its own tick.
package dbpool

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Poster is the narrow dispatcher seam async completions are delivered
// through — satisfied by *dispatch.Dispatcher's Push method.
type Poster interface {
	Push(job func())
}

// Database wraps a pgx connection pool with sync and async query helpers.
type Database struct {
	pool   *pgxpool.Pool
	poster Poster
}

// Open connects to PostgreSQL using dsn and verifies connectivity with a
// ping. poster may be nil if the caller never needs the async methods.
func Open(ctx context.Context, dsn string, poster Poster) (*Database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Database{pool: pool, poster: poster}, nil
}

// Close closes the underlying connection pool.
func (d *Database) Close() { d.pool.Close() }

// Pool exposes the raw pgx pool, for goose migrations and bulk-copy paths
// that need it directly.
func (d *Database) Pool() *pgxpool.Pool { return d.pool }

// Query runs a query and returns its rows synchronously. The caller owns
// closing the returned Rows.
func (d *Database) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

// Execute runs a statement synchronously and returns the number of rows
// affected.
func (d *Database) Execute(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return tag.RowsAffected(), nil
}

// BeginTx starts a transaction on the pool.
func (d *Database) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

// QueryResult carries the outcome of an async query back to its callback.
type QueryResult struct {
	Rows pgx.Rows
	Err  error
}

// ExecResult carries the outcome of an async exec back to its callback.
type ExecResult struct {
	RowsAffected int64
	Err          error
}

// QueryAsync runs the query on a background goroutine and posts the result
// to done via the wired Poster, so done always runs on the dispatcher's
// processing thread rather than a random pool goroutine — the same
// handoff a LAMBDA_JOB gives any other cross-thread completion.
func (d *Database) QueryAsync(ctx context.Context, done func(QueryResult), sql string, args ...any) {
	go func() {
		rows, err := d.Query(ctx, sql, args...)
		result := QueryResult{Rows: rows, Err: err}
		if d.poster == nil {
			done(result)
			return
		}
		d.poster.Push(func() { done(result) })
	}()
}

// ExecuteAsync mirrors QueryAsync for statements that don't return rows.
func (d *Database) ExecuteAsync(ctx context.Context, done func(ExecResult), sql string, args ...any) {
	go func() {
		n, err := d.Execute(ctx, sql, args...)
		result := ExecResult{RowsAffected: n, Err: err}
		if d.poster == nil {
			done(result)
			return
		}
		d.poster.Push(func() { done(result) })
	}()
}
