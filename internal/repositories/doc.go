// Package repositories reads and writes the admin dashboard's Postgres
// tables. Constructors take a [database.Querier], so the same repository
// works on the pool or inside a transaction.
package repositories
