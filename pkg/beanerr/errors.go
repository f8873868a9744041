// Package beanerr declares the error kinds shared across the table cache,
// safe-context and procedure runtime, as sentinel values compatible with
// errors.Is/errors.As.
package beanerr

import "errors"

var (
	// ErrLockViolation is returned when an API that requires the caller to
	// hold a record's lock is called without it. Fatal to the procedure.
	ErrLockViolation = errors.New("beandb: lock violation")

	// ErrStateViolation is returned by Put on an already-managed record, or
	// by Modify when the given value is not the table's current canonical
	// instance for that key. Fatal to the procedure.
	ErrStateViolation = errors.New("beandb: state violation")

	// ErrRedo is the sentinel a procedure's redo() raises: caught by the
	// run loop, triggers rollback and a retry.
	ErrRedo = errors.New("beandb: redo")

	// ErrUndo is the sentinel a procedure's undo() raises: caught by the
	// run loop, triggers rollback without retry.
	ErrUndo = errors.New("beandb: undo")

	// ErrRedoExhausted is returned when a procedure's redo budget is spent.
	ErrRedoExhausted = errors.New("beandb: redo budget exhausted")

	// ErrInterrupted is returned when the watchdog or a shutdown
	// interrupts a running procedure.
	ErrInterrupted = errors.New("beandb: interrupted")

	// ErrSessionQueueFull is returned by a session-ordered submit when the
	// sid's FIFO has reached maxSessionProcedure.
	ErrSessionQueueFull = errors.New("beandb: session queue full")

	// ErrSessionStopped is returned by a session-ordered submit after that
	// sid's queue has been stopped via stop_queue.
	ErrSessionStopped = errors.New("beandb: session queue stopped")

	// ErrShuttingDown is returned by any submit once shutdown has begun.
	ErrShuttingDown = errors.New("beandb: manager is shutting down")

	// ErrTooManyLocks is raised by ThreadContext.Lock when a single call
	// requests more ids than the runtime's configured per-procedure cap.
	ErrTooManyLocks = errors.New("beandb: too many locks requested")
)
