package main

import "database/sql"

// probeQuery checks for triggers.last_fired_at, the column the firing guard
// compares and sets. A schema missing it would fire every trigger twice
// under failover.
const probeQuery = `
	SELECT column_name
	FROM information_schema.columns
	WHERE table_name = 'triggers' AND column_name = 'last_fired_at'`

// probeLastFiredAtColumn verifies the firing-guard column exists.
// Returns sql.ErrNoRows when the column is absent.
func probeLastFiredAtColumn(db *sql.DB) error {
	var column string
	return db.QueryRow(probeQuery).Scan(&column)
}
