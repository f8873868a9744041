/*
Package storage defines the narrow Storage contract the table cache and the
checkpoint pipeline depend on, and a bbolt-backed implementation of it.

The contract is deliberately small: open, get, write_batch, a positioned
range iterator, hot_backup and property. Everything above this line (key
encoding, record framing, locking, caching) is the concern of pkg/table and
pkg/codec; this package only knows about raw byte keys and byte values.

# Architecture

	┌─────────────────────── STORAGE ADAPTER ───────────────────────┐
	│                                                                  │
	│  ┌──────────────────────────────────────────────┐              │
	│  │              BoltAdapter                       │              │
	│  │  - File: <dataDir>/beandb.db                   │              │
	│  │  - Single bucket: "records"                    │              │
	│  │  - Keys: varuint(table_id) || encode(key)      │              │
	│  └──────────────────────┬───────────────────────┘              │
	│                         │                                        │
	│  ┌──────────────────────▼───────────────────────┐              │
	│  │           bbolt B+tree (MVCC)                  │              │
	│  │  - Get/WriteBatch via db.View/db.Update        │              │
	│  │  - Iter via a dedicated read-only Tx + Cursor  │              │
	│  │  - HotBackup via Tx.WriteTo                    │              │
	│  └────────────────────────────────────────────────┘              │
	└──────────────────────────────────────────────────────────────┘

Because every table's keys share one lexicographically ordered bucket and
every key begins with that table's own uvarint(table_id) prefix, a single
bucket gives each table a contiguous, independently range-scannable region
without per-table buckets.

# Iteration

Iter(mode, pivot) returns a cursor seeded at one of four positions relative
to pivot (< pivot, <= pivot, >= pivot, > pivot); Next/Prev then walk in
ascending order from there, matching the range-scan primitive pkg/table's
walk operation is built on. A nil pivot means "unbounded": Next-direction
modes start at the first key, Prev-direction modes start at the last.

Exactly one Iterator is open per Storage at a time in normal use: each one
holds its own read transaction, released on Close.

# Backup

HotBackup copies the live database file via bbolt's Tx.WriteTo inside a
read transaction, so it does not block concurrent writers. The destination
file name carries the caller-supplied timestamp tag verbatim; it is the
checkpoint pipeline's job to quantize that tag to an epoch.
*/
package storage
