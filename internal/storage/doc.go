// Package storage persists users, events and delivery completions.
//
// Three drivers share one Store contract: "memory" (tests and dry runs),
// "sqlite" (single-file deployments, pure Go via modernc.org/sqlite) and
// "postgres" (pgx connection pool). SQL schemas are embedded and applied
// with goose on Open.
//
// Backend failures are wrapped with domain.ErrRepository; absent rows map to
// domain.ErrNotFound and unique violations to domain.ErrAlreadyExists or, for
// completions, domain.ErrAlreadyRecorded.
package storage
