/*
Package log provides structured logging via zerolog: a global Logger,
level/format configuration, and context-logger helpers for the table,
procedure and session identifiers that show up across the rest of the
module.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})
	log.Info("checkpoint starting")

	tableLog := log.WithTable("accounts")
	tableLog.Debug().Int("dirty", 42).Msg("flush pass")

# Context loggers

  - WithComponent(name): generic component tag.
  - WithTable(name): table-scoped logs (cache hits/misses, flush passes).
  - WithProcedure(id): one procedure execution's lifecycle.
  - WithSession(sid): a session's FIFO dispatch.

Do not log secrets. Use structured fields (.Str, .Int, .Err), not string
concatenation, so aggregation queries stay usable.
*/
package log
