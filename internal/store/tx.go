package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/onemodel/internal/blob"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// runner issues ?-placeholder SQL against a pool or a transaction,
// rebinding for the dialect.
type runner struct {
	q       querier
	dialect Dialect
}

func (r runner) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.dialect.rebind(query), args...)
}

func (r runner) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.dialect.rebind(query), args...)
}

func (r runner) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.dialect.rebind(query), args...)
}

// Tx is a transaction owned by a caller that composes several store
// operations. Pass it to operations with Within and read through In(tx);
// the caller alone commits or rolls back. A Tx must not be used from two
// goroutines at once.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
	store   *Store

	// orphans are file attributes whose content leaves the blob store once
	// the transaction commits.
	orphans []int64
}

// Begin starts a caller-managed transaction. A view bound by In already
// has one and cannot start another.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	if s.bound != nil {
		return nil, newError(CodeTxMismatch, "begin", "store view is already bound to a transaction")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx, dialect: s.dialect, store: s}, nil
}

// Commit commits the transaction and then drops the blob content of the
// file attributes it deleted.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		t.orphans = nil
		return fmt.Errorf("commit transaction: %w", err)
	}
	orphans := t.orphans
	t.orphans = nil
	t.store.dropContent(orphans)
	return nil
}

// Rollback discards the transaction. Rolling back a finished transaction is
// a no-op.
func (t *Tx) Rollback() error {
	t.orphans = nil
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// In returns a view of the store whose reads run on tx, so a caller
// composing operations sees its own uncommitted writes. Mutations on the
// view with a Standalone scope join tx instead of opening their own.
func (s *Store) In(tx *Tx) *Store {
	v := *s
	v.bound = tx
	return &v
}

// Scope tells a mutating operation who owns its transaction. The zero value
// (Standalone) means the operation opens, commits or discards its own.
type Scope struct {
	tx      *Tx
	managed bool
}

// Standalone is the scope of an operation that owns its transaction.
func Standalone() Scope { return Scope{} }

// Within runs an operation inside tx. The operation never commits or rolls
// back tx.
func Within(tx *Tx) Scope { return Scope{tx: tx, managed: true} }

// ScopeOf builds a scope from a handle and a caller-manages flag, rejecting
// combinations that disagree (handle without the flag, or the flag without a
// handle).
func ScopeOf(tx *Tx, callerManages bool) (Scope, error) {
	sc := Scope{tx: tx, managed: callerManages}
	if err := sc.validate("scope"); err != nil {
		return Scope{}, err
	}
	return sc, nil
}

func (sc Scope) validate(op string) error {
	switch {
	case sc.managed && sc.tx == nil:
		return newError(CodeTxMismatch, op, "caller manages the transaction but supplied none")
	case !sc.managed && sc.tx != nil:
		return newError(CodeTxMismatch, op, "transaction supplied but caller does not manage it")
	}
	return nil
}

// opTx is the transaction of one operation call: borrowed from the caller or
// owned by the call.
type opTx struct {
	runner
	store     *Store
	op        string
	tx        *sql.Tx
	borrowed  *Tx
	owned     bool
	finished  bool
	startedAt time.Time
	orphans   []int64
}

// begin validates sc and returns the operation's transaction. Callers must
// defer discard and call finish on success.
func (s *Store) begin(ctx context.Context, sc Scope, op string) (*opTx, error) {
	if err := sc.validate(op); err != nil {
		return nil, err
	}
	if !sc.managed && s.bound != nil {
		sc = Within(s.bound)
	}
	o := &opTx{store: s, op: op, startedAt: time.Now()}
	if sc.managed {
		o.tx = sc.tx.tx
		o.borrowed = sc.tx
	} else {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: begin transaction: %w", op, err)
		}
		o.tx = tx
		o.owned = true
	}
	o.runner = runner{q: o.tx, dialect: s.dialect}
	return o, nil
}

// finish commits an owned transaction. A borrowed one is left to its owner.
func (o *opTx) finish() error {
	if o.finished {
		return nil
	}
	o.finished = true
	if o.owned {
		if err := o.tx.Commit(); err != nil {
			o.store.metrics.observe(o.op, false, time.Since(o.startedAt))
			return wrap(o.op+": commit", err)
		}
		o.store.dropContent(o.orphans)
	} else {
		o.borrowed.orphans = append(o.borrowed.orphans, o.orphans...)
	}
	o.store.metrics.observe(o.op, true, time.Since(o.startedAt))
	return nil
}

// discard rolls back an owned transaction that was not finished.
func (o *opTx) discard() {
	if o.finished {
		return
	}
	o.finished = true
	if o.owned {
		_ = o.tx.Rollback()
	}
	o.store.metrics.observe(o.op, false, time.Since(o.startedAt))
}

// reader is the runner for read operations: the bound transaction of a view
// made by In, otherwise the pool.
func (s *Store) reader() runner {
	if s.bound != nil {
		return runner{q: s.bound.tx, dialect: s.dialect}
	}
	return runner{q: s.db, dialect: s.dialect}
}

// orphanContent records the file attributes of entityID, which the coming
// entity delete removes by cascade, for blob cleanup after commit.
func (o *opTx) orphanContent(ctx context.Context, entityID int64) error {
	if o.store.blobs == nil {
		return nil
	}
	rows, err := o.query(ctx, "SELECT id FROM FileAttribute WHERE entity_id = ?", entityID)
	if err != nil {
		return wrap(o.op+": list file attributes", err, entityID)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return wrap(o.op+": list file attributes", err, entityID)
		}
		o.orphans = append(o.orphans, id)
	}
	return rows.Err()
}

// dropContent removes committed-away file content from the blob store.
// Failures leave orphaned objects behind and are only logged.
func (s *Store) dropContent(ids []int64) {
	if s.blobs == nil {
		return
	}
	for _, id := range ids {
		if err := s.blobs.Delete(context.Background(), blob.ContentKey(id)); err != nil {
			s.logger.Warn("orphaned file content", "file_attribute_id", id, "error", err)
		}
	}
}
