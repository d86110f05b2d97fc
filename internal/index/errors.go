package index

import (
	"errors"
	"fmt"
)

// ErrClosed is returned for requests sent to an index that has been shut
// down cleanly via Close.
var ErrClosed = errors.New("index: closed")

// FatalError wraps an unrecoverable storage failure inside an index actor.
//
// Once an actor reports a FatalError it stops serving: the failed request
// and every request after it receive the same error. The embedding process
// must treat it as unrecoverable (exit or supervisor restart); a metadata
// index that hit an unexpected store error cannot be trusted to keep its
// durability guarantees, so it refuses to keep answering.
type FatalError struct {
	Index string // actor name, e.g. "snapshot"
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("index %s: fatal: %v", e.Index, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is (or wraps) an index FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
