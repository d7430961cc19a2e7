package sqldb

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CommitRollbacker represents the set of behavior for committing or rolling
// back a transaction.
type CommitRollbacker interface {
	Commit() error
	Rollback() error
}

// Beginner represents the set of behavior for starting a transaction.
type Beginner interface {
	Begin() (CommitRollbacker, error)
}

// AfterCommitter is implemented by transactions that can defer work until
// after a successful commit.
type AfterCommitter interface {
	AfterCommit(fn func())
}

// TxHooks decorates a transaction with functions that run after a
// successful commit. Side effects that must never observe an uncommitted
// mutation, such as cache invalidation and event publication, register
// here instead of firing inside the transaction.
type TxHooks struct {
	tx    CommitRollbacker
	hooks []func()
}

// WithHooks wraps the transaction so post-commit work can be registered
// against it.
func WithHooks(tx CommitRollbacker) *TxHooks {
	return &TxHooks{tx: tx}
}

// AfterCommit registers a function to run once the transaction commits.
func (t *TxHooks) AfterCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

// Commit commits the wrapped transaction and, on success, runs the
// registered functions in registration order.
func (t *TxHooks) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return err
	}

	for _, fn := range t.hooks {
		fn()
	}
	t.hooks = nil

	return nil
}

// Rollback rolls back the wrapped transaction. Registered functions are
// discarded, never run.
func (t *TxHooks) Rollback() error {
	t.hooks = nil
	return t.tx.Rollback()
}

// DBBeginner implements the Beginner interface for the sqlx package.
type DBBeginner struct {
	sqlxDB *sqlx.DB
}

// NewBeginner constructs a value that implements the Beginner interface.
func NewBeginner(sqlxDB *sqlx.DB) *DBBeginner {
	return &DBBeginner{
		sqlxDB: sqlxDB,
	}
}

// Begin starts a transaction and returns a value that implements the
// CommitRollbacker interface.
func (db *DBBeginner) Begin() (CommitRollbacker, error) {
	return db.sqlxDB.Beginx()
}

// GetExtContext is a helper function that extracts the sqlx value
// from the domain transactor interface for transactional use.
func GetExtContext(tx CommitRollbacker) (sqlx.ExtContext, error) {
	if h, ok := tx.(*TxHooks); ok {
		tx = h.tx
	}

	ec, ok := tx.(sqlx.ExtContext)
	if !ok {
		return nil, fmt.Errorf("Transactor(%T) not of a type *sqlx.Tx", tx)
	}

	return ec, nil
}
