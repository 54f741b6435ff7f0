// Package record implements the append-only persistence sink for readings
// and alarm events.
//
// Sink is the interface the processor depends on. PostgresSink writes to two
// tables through database/sql and lib/pq, LogSink emits structured log lines
// when no database is configured, and MemorySink keeps records in memory.
// Every implementation is safe for concurrent use.
package record
