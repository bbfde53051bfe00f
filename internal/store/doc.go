// Package store defines the persistence contract for review items and the error
// taxonomy shared by every store implementation. Scheduling and ingestion logic
// depend only on these interfaces, never on a particular database.
package store
