// Package postgres provides the PostgreSQL implementation of the review item
// store defined in internal/store, along with its embedded goose migrations and
// the mapping from PostgreSQL errors to the store error taxonomy.
//
// Connections are opened through database/sql with the pgx driver ("pgx").
package postgres
