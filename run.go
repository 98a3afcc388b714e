// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrw

import (
	"context"
	"database/sql"
	"sync/atomic"
)

var ErrNoRows = sql.ErrNoRows
var ErrTXDone = sql.ErrTxDone

// DB wraps a database handle that compiled plans can be run on. Prepared
// statements are cached per plan and database.
type DB struct {
	// cacheID is used to look up the cached driver prepared statements
	// prepared on this database.
	cacheID int64
	// sqldb is the underlying database/sql DB object.
	sqldb *sql.DB
}

// NewDB creates a new [DB] from a [sql.DB].
func NewDB(sqldb *sql.DB) *DB {
	if sqldb == nil {
		return nil
	}
	return planCache.newDB(sqldb)
}

// PlainDB returns the underlying database object.
func (db *DB) PlainDB() *sql.DB {
	return db.sqldb
}

// Query runs a compiled plan on the database. args supplies a value for
// every named parameter the plan declares.
func (db *DB) Query(ctx context.Context, p *Plan, args map[string]any) (*Rows, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	vals, err := p.bindArgs(args)
	if err != nil {
		return nil, err
	}
	stmt, err := planCache.prepare(ctx, db.cacheID, db.sqldb, p)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, vals...)
	if err != nil {
		return nil, err
	}
	return newRows(rows, p)
}

// Begin starts a transaction.
func (db *DB) Begin(ctx context.Context, opts *sql.TxOptions) (*TX, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sqltx, err := db.sqldb.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &TX{sqltx: sqltx, db: db}, nil
}

// TX represents a transaction on a database.
type TX struct {
	sqltx *sql.Tx
	db    *DB
	done  int32
}

func (tx *TX) finish() error {
	if !atomic.CompareAndSwapInt32(&tx.done, 0, 1) {
		return ErrTXDone
	}
	return nil
}

// Commit commits the transaction.
func (tx *TX) Commit() error {
	if err := tx.finish(); err != nil {
		return err
	}
	return tx.sqltx.Commit()
}

// Rollback aborts the transaction.
func (tx *TX) Rollback() error {
	if err := tx.finish(); err != nil {
		return err
	}
	return tx.sqltx.Rollback()
}

// Query runs a compiled plan within the transaction. The statement is
// prepared through the plan cache and rebound to the transaction.
func (tx *TX) Query(ctx context.Context, p *Plan, args map[string]any) (*Rows, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if atomic.LoadInt32(&tx.done) == 1 {
		return nil, ErrTXDone
	}
	vals, err := p.bindArgs(args)
	if err != nil {
		return nil, err
	}
	stmt, err := planCache.prepare(ctx, tx.db.cacheID, tx.db.sqldb, p)
	if err != nil {
		return nil, err
	}
	rows, err := tx.sqltx.StmtContext(ctx, stmt).QueryContext(ctx, vals...)
	if err != nil {
		return nil, err
	}
	return newRows(rows, p)
}

// Rows iterates over the results of a plan run. Each result row is shaped
// by the plan's extractors into one value per projected item.
type Rows struct {
	rows *sql.Rows
	plan *Plan
	cols []string
	err  error
}

func newRows(rows *sql.Rows, p *Plan) (*Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &Rows{rows: rows, plan: p, cols: cols}, nil
}

// Next prepares the next result row. It returns false when there are no
// more rows or an error occurred; Err distinguishes the two.
func (r *Rows) Next() bool {
	if r.err != nil {
		return false
	}
	return r.rows.Next()
}

// Row reads and shapes the current result row.
func (r *Rows) Row() ([]any, error) {
	raw := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.err = err
		return nil, err
	}
	out, err := r.plan.materialize(raw)
	if err != nil {
		r.err = err
		return nil, err
	}
	return out, nil
}

// Err returns the first error hit during iteration, if any.
func (r *Rows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

// Close finishes the iteration and releases the row set.
func (r *Rows) Close() error {
	return r.rows.Close()
}

// All runs the iteration to completion and returns every shaped row.
func (r *Rows) All() ([][]any, error) {
	defer r.Close()
	var out [][]any
	for r.Next() {
		row, err := r.Row()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
