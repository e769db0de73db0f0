package core

import (
	"errors"
	"fmt"
)

var ErrClosed = errors.New("writer is closed")

// ErrQueueFull is returned by Write when the queue is still at the high water
// mark after a failed flush. The entity was not accepted.
var ErrQueueFull = errors.New("writer queue is full")

// FlushError is returned by Write, Flush and Close when a flush cycle fails.
type FlushError struct {
	Cycle string
	Phase Phase
	Err   error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush %s failed in %s phase: %v", e.Cycle, e.Phase, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}
