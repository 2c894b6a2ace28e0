package tx

import (
	"context"
	"database/sql"
	"sync"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Executor is the query surface shared by *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Exec returns the transaction carried by ctx, or db when there is none.
func Exec(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// Runner runs fn inside a transactional boundary. Stores reached through
// the ctx passed to fn join the transaction.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type journalKey struct{}

type journal struct {
	mu    sync.Mutex
	undos []func()
}

// memoryTx orders journal runs against every other in-memory store call.
// A run holds it exclusively from the first write to commit or rollback.
var memoryTx sync.RWMutex

// Journal gives in-memory stores transaction semantics. Stores register a
// compensation with OnRollback for each write; if fn fails the compensations
// run in reverse order. Runs are serialized and stores admit calls from
// outside a run through Shared, so no other caller observes a run's
// uncommitted writes.
type Journal struct{}

func (Journal) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, nested := ctx.Value(journalKey{}).(*journal); nested {
		return fn(ctx)
	}
	memoryTx.Lock()
	defer memoryTx.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.mu.Lock()
		undos := j.undos
		j.undos = nil
		j.mu.Unlock()
		for i := len(undos) - 1; i >= 0; i-- {
			undos[i]()
		}
		return err
	}
	return nil
}

// Shared admits one in-memory store call and returns its release. Calls
// made inside a journal run pass straight through since the run already
// holds the stores exclusively. Store methods must not call Shared twice
// on the same goroutine.
func Shared(ctx context.Context) func() {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return func() {}
	}
	memoryTx.RLock()
	return memoryTx.RUnlock
}

// OnRollback registers undo with the journal carried by ctx. Outside a
// journal the write is final and undo is dropped.
func OnRollback(ctx context.Context, undo func()) {
	j, ok := ctx.Value(journalKey{}).(*journal)
	if !ok {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undos = append(j.undos, undo)
}
