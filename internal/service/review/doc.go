// Package review is the engine facade the rest of the application talks to.
// It ingests content into review items, serves the due queue, applies grades
// through the scheduling engine with optimistic concurrency, and rolls up
// progress statistics. All state lives in the injected store; time comes from
// the injected clock.
package review
