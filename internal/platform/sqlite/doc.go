// Package sqlite provides an embedded implementation of the review item store
// for single-device deployments and tests, built on sqlx over mattn/go-sqlite3
// with the same schema shape as the PostgreSQL store.
package sqlite
