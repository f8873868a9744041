/*
Package table is documented in full in table.go's package comment; this
file only adds the administrative notes that don't belong in godoc for a
single type.

Tables are never constructed by application code directly: pkg/dbmanager's
open_table operation builds the KeyCodec, picks the table id and salt, and
hands back the typed Table or TableLong. A table's id is permanent for the
life of the database — changing it silently repoints every existing key to
a different (likely empty) prefix range.

Lock discipline: every Table/TableLong method that touches a specific key
takes the calling procedure's holder value (see pkg/lock) and checks or
uses it directly; none of them acquire locks themselves except
TrySaveModified's per-entry try-lock. Callers are expected to have already
acquired the relevant lock ids via pkg/lock.Pool.AcquireSorted before
calling Get/Put/Remove/Modify.
*/
package table
