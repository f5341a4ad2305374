// Package testsupport provides small, dependency-free test fixtures
// shared across package test files — nothing here is reachable from
// production code.
package testsupport

import (
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
)

// noopDriver answers every Exec with an empty, successful result and
// every Query with no rows, without ever opening a real connection. It
// exists so *audit.Service (which wraps a plain *sql.DB) can be
// exercised in package tests that otherwise run entirely against the
// in-memory stores, with no live Postgres instance required.
type noopDriver struct{}

func (noopDriver) Open(name string) (driver.Conn, error) { return noopConn{}, nil }

type noopConn struct{}

func (noopConn) Prepare(query string) (driver.Stmt, error) { return noopStmt{}, nil }
func (noopConn) Close() error                              { return nil }
func (noopConn) Begin() (driver.Tx, error)                 { return noopTx{}, nil }

type noopStmt struct{}

func (noopStmt) Close() error  { return nil }
func (noopStmt) NumInput() int { return -1 }
func (noopStmt) Exec(args []driver.Value) (driver.Result, error) {
	return noopResult{}, nil
}
func (noopStmt) Query(args []driver.Value) (driver.Rows, error) {
	return noopRows{}, nil
}

type noopResult struct{}

func (noopResult) LastInsertId() (int64, error) { return 0, nil }
func (noopResult) RowsAffected() (int64, error) { return 0, nil }

type noopRows struct{}

func (noopRows) Columns() []string              { return nil }
func (noopRows) Close() error                   { return nil }
func (noopRows) Next(dest []driver.Value) error { return io.EOF }

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

var registerOnce sync.Once

// NewNoopAuditDB returns a *sql.DB backed by noopDriver: every write
// succeeds and is discarded. Use it to construct an *audit.Service for
// tests that only care that audit logging does not panic or error out,
// not what it recorded.
func NewNoopAuditDB() *sql.DB {
	registerOnce.Do(func() {
		sql.Register("plutohub-noop", noopDriver{})
	})
	db, err := sql.Open("plutohub-noop", "")
	if err != nil {
		panic(err)
	}
	return db
}
