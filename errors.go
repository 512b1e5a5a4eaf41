package voxelis

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrBudgetExceeded is returned by Set and ApplyBatch when the NodeStore's
// branch pool is at capacity and no slot can be allocated. Fill never
// allocates a slot, so its error is always nil. It is the only recoverable
// error this package surfaces; callers can check for it with errors.Is.
var ErrBudgetExceeded = errors.New("voxelis: node store budget exceeded")

// ErrInvalidCoordinate is returned when a coordinate falls outside
// [0, 2^depth) for the tree it was given to. This is a programming error;
// returning it rather than panicking lets library consumers decide how
// strict to be.
var ErrInvalidCoordinate = errors.New("voxelis: coordinate out of range")

// invalidCoordinate wraps ErrInvalidCoordinate with the offending position
// and tree depth for diagnostics.
func invalidCoordinate(pos [3]int32, depth uint8) error {
	return errors.Wrapf(ErrInvalidCoordinate, "position (%d,%d,%d) outside [0, %d) at depth %d",
		pos[0], pos[1], pos[2], int64(1)<<depth, depth)
}

// fatalf panics with a formatted diagnostic for conditions that indicate a
// corrupted pool or a use-after-free of a stale handle. There is no
// recoverable path for either, so it aborts rather than returning an error
// a caller might ignore.
func fatalf(format string, args ...any) {
	panic(fmt.Sprintf("voxelis: invariant violation: "+format, args...))
}
