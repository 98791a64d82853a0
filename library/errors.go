package library

import (
	"errors"
	"fmt"
)

// The two failure kinds of the ledger. Every error returned by a
// LibraryManager operation wraps exactly one of them.
var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
)

var (
	ErrBookNotFound   = fmt.Errorf("book %w", ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)
	ErrBorrowNotFound = fmt.Errorf("borrow record %w", ErrNotFound)

	ErrNoCopiesAvailable = fmt.Errorf("%w: no copies available", ErrPreconditionFailed)
	ErrAlreadyReturned   = fmt.Errorf("%w: book already returned", ErrPreconditionFailed)
)

// ErrCopiesOutOfRange is returned by SaveSnapshot when a copy count does not
// fit the signed 64-bit column it is stored in.
var ErrCopiesOutOfRange = errors.New("copy count out of range")

// ErrInvalidSnapshot is returned by Restore when the snapshot would break id
// monotonicity or reference unknown entities.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

func errInvalidID(kind string, id, next int64) error {
	return fmt.Errorf("%w: %s id %d outside [0,%d)", ErrInvalidSnapshot, kind, id, next)
}

func errDuplicateID(kind string, id int64) error {
	return fmt.Errorf("%w: duplicate %s id %d", ErrInvalidSnapshot, kind, id)
}
