/*
Package sctx is documented in sctx.go and wrapper.go; this file adds the
transaction-lifecycle note that ties the two together.

A procedure's ThreadContext (pkg/procedure) owns one SafeContext for the
procedure's current execution attempt. Application code never constructs a
SafeContext directly: it calls sctx.Wrap to obtain a safe wrapper for a
record it intends to read or mutate, calls Wrapper.Touch before its first
field mutation, and leaves Commit/Rollback to the procedure runtime. On
redo, the runtime calls Clear (via Rollback) and runs the procedure body
again, wrapping records fresh.

Inserting a fresh record or tombstoning an existing one doesn't go through
Wrap/Touch — there is no prior instance to alias — so sctx.Put and
sctx.Remove register their own undo directly against a MutateStore,
snapshotting whatever k held before the call (absent, clean, or already
dirty) and restoring exactly that on rollback.
*/
package sctx
