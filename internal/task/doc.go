// Package task runs background work on a bounded in-memory queue drained by a
// fixed pool of workers. Review ingestion uses it to retry batches that failed
// on a transient store error without holding up the caller.
package task
