// Package dummydb is an in-memory storage backend used by tests and local
// tinkering. It honors the repository contracts but persists nothing.
package dummydb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/bulkimport"
	"github.com/trezcool/mafunzo/core/college"
	"github.com/trezcool/mafunzo/core/user"
)

type (
	DB struct {
		user    *userTable
		college *collegeTable
		batch   *batchTable
	}

	userTable struct {
		sync.RWMutex
		table           map[string]*user.User
		studentProfiles map[string]*user.StudentProfile
		trainerProfiles map[string]*user.TrainerProfile
	}

	collegeTable struct {
		sync.RWMutex
		table map[string]*college.College
	}

	batchTable struct {
		sync.RWMutex
		table   map[string]*bulkimport.UploadBatch
		results map[string][]*bulkimport.RowResult // batch ID -> results
	}
)

var _ core.DB = (*DB)(nil) // interface compliance check

var errNotRelational = errors.New("dummydb does not speak SQL")

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{
			table:           make(map[string]*user.User),
			studentProfiles: make(map[string]*user.StudentProfile),
			trainerProfiles: make(map[string]*user.TrainerProfile),
		},
		college: &collegeTable{table: make(map[string]*college.College)},
		batch: &batchTable{
			table:   make(map[string]*bulkimport.UploadBatch),
			results: make(map[string][]*bulkimport.RowResult),
		},
	}
	return db, nil
}

// BeginTx hands out a no-op transaction scope: writes apply immediately and
// Rollback cannot undo them. Good enough for tests that only need the
// transaction plumbing to be exercised.
func (db *DB) BeginTx(context.Context, *sql.TxOptions) (core.DBTransactor, error) {
	return nopTx{}, nil
}

func (db *DB) Exec(string, ...interface{}) (sql.Result, error) { return nil, errNotRelational }
func (db *DB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNotRelational
}
func (db *DB) Query(string, ...interface{}) (*sql.Rows, error) { return nil, errNotRelational }
func (db *DB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNotRelational
}
func (db *DB) QueryRow(string, ...interface{}) *sql.Row                         { return nil }
func (db *DB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }

type nopTx struct{}

var _ core.DBTransactor = nopTx{}

func (nopTx) Exec(string, ...interface{}) (sql.Result, error) { return nil, errNotRelational }
func (nopTx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNotRelational
}
func (nopTx) Query(string, ...interface{}) (*sql.Rows, error) { return nil, errNotRelational }
func (nopTx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNotRelational
}
func (nopTx) QueryRow(string, ...interface{}) *sql.Row                         { return nil }
func (nopTx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }
