// Package index implements the serialized actor that guards each metadata
// table of the backup engine.
//
// Every index (snapshot history, chunk locations) is a SQLite table owned
// exclusively by one Actor. The actor processes one request at a time from
// a FIFO mailbox, always inside an open transaction: writes become visible
// to later reads on the same actor immediately, but only a Flush (commit
// plus immediate re-begin) makes them crash-durable. That batching is the
// whole point: a backup run performs thousands of inserts and pays for
// durability only at checkpoints.
//
// The ordering of flushes across cooperating indices is the crash
// consistency contract of the engine; see Coordinator.
package index

import (
	"database/sql"
	"fmt"
)

// HandlerFunc executes one domain request against an index table. It runs
// on the actor goroutine inside the currently open transaction. Returning a
// non-nil error is fatal to the actor: there is no recoverable failure at
// this level, only "row not found" results which handlers express in Resp.
type HandlerFunc[Req, Resp any] func(tx *sql.Tx, req Req) (Resp, error)

type msgKind int

const (
	msgCall msgKind = iota
	msgFlush
	msgClose
)

type result[Resp any] struct {
	resp Resp
	err  error
}

type envelope[Req, Resp any] struct {
	kind  msgKind
	req   Req
	reply chan result[Resp]
}

// Actor serializes all access to one index table through a single
// goroutine. Callers block until their own reply arrives; the mailbox is
// processed strictly in arrival order, which gives each index linearizable
// semantics without any locking in the table layer.
type Actor[Req, Resp any] struct {
	name    string
	db      *sql.DB
	handle  HandlerFunc[Req, Resp]
	mailbox chan *envelope[Req, Resp]
	done    chan struct{}
	logger  Logger

	// exitErr is written by the actor goroutine before done is closed and
	// read by callers only after done is closed.
	exitErr error
}

// NewActor starts an actor owning db. The first transaction is opened
// before the actor accepts any request, so the table is inside an open
// transaction for its entire life. The actor takes ownership of db; no
// other component may touch it.
func NewActor[Req, Resp any](name string, db *sql.DB, handle HandlerFunc[Req, Resp], logger Logger) (*Actor[Req, Resp], error) {
	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening initial transaction: %w", err)
	}

	a := &Actor[Req, Resp]{
		name:    name,
		db:      db,
		handle:  handle,
		mailbox: make(chan *envelope[Req, Resp]),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go a.run(tx)
	return a, nil
}

// Call submits one domain request and blocks until the actor has processed
// it to completion. Requests from concurrent callers are served in arrival
// order.
func (a *Actor[Req, Resp]) Call(req Req) (Resp, error) {
	return a.send(&envelope[Req, Resp]{kind: msgCall, req: req, reply: make(chan result[Resp], 1)})
}

// Flush commits the open transaction and immediately begins a new one. When
// Flush returns nil, every request processed before it is durable; the
// commit happens strictly before the reply, so callers may act on
// durability (report a backup as complete, flush a dependent index) as soon
// as they see it.
func (a *Actor[Req, Resp]) Flush() error {
	_, err := a.send(&envelope[Req, Resp]{kind: msgFlush, reply: make(chan result[Resp], 1)})
	return err
}

// Close rolls back the open transaction and closes the database, discarding
// any writes since the last Flush. This is the crash-equivalent shutdown:
// the on-disk state after Close is exactly the state a process crash would
// have left. Requests after Close fail with ErrClosed.
func (a *Actor[Req, Resp]) Close() error {
	_, err := a.send(&envelope[Req, Resp]{kind: msgClose, reply: make(chan result[Resp], 1)})
	if err == ErrClosed {
		// Already closed; Close is idempotent.
		return nil
	}
	return err
}

func (a *Actor[Req, Resp]) send(env *envelope[Req, Resp]) (Resp, error) {
	var zero Resp

	select {
	case a.mailbox <- env:
	case <-a.done:
		return zero, a.exitErr
	}

	select {
	case r := <-env.reply:
		return r.resp, r.err
	case <-a.done:
		// The actor terminated after accepting our request. It may still
		// have replied before exiting; prefer that reply if present.
		select {
		case r := <-env.reply:
			return r.resp, r.err
		default:
			return zero, a.exitErr
		}
	}
}

// run is the actor goroutine. tx is the currently open transaction; it is
// replaced on every flush and never nil.
func (a *Actor[Req, Resp]) run(tx *sql.Tx) {
	defer close(a.done)

	for env := range a.mailbox {
		switch env.kind {
		case msgClose:
			err := tx.Rollback()
			if cerr := a.db.Close(); err == nil {
				err = cerr
			}
			a.exitErr = ErrClosed
			a.logger.Debug("index closed", "index", a.name)
			env.reply <- result[Resp]{err: err}
			return

		case msgFlush:
			if err := tx.Commit(); err != nil {
				a.fatal(env, fmt.Errorf("commit: %w", err))
				return
			}
			ntx, err := a.db.Begin()
			if err != nil {
				a.fatal(env, fmt.Errorf("reopening transaction: %w", err))
				return
			}
			tx = ntx
			a.logger.Debug("index flushed", "index", a.name)
			env.reply <- result[Resp]{}

		default:
			resp, err := a.handle(tx, env.req)
			if err != nil {
				a.fatal(env, err)
				return
			}
			env.reply <- result[Resp]{resp: resp}
		}
	}
}

// fatal records an unrecoverable store error, replies to the request that
// hit it and terminates the actor. The open transaction is abandoned; with
// an unverified internal error the index must not pretend its state is
// trustworthy, so it neither commits nor keeps serving.
func (a *Actor[Req, Resp]) fatal(env *envelope[Req, Resp], err error) {
	ferr := &FatalError{Index: a.name, Err: err}
	a.exitErr = ferr
	a.logger.Error("index failed, terminating", "index", a.name, "error", err)
	a.db.Close()
	env.reply <- result[Resp]{err: ferr}
}
