// Package sips persists submission information packages in SQLite and defines
// their lifecycle.
//
// The stage table in models.go is the single authoritative transition table:
// each stage has a start, in-progress, and end status, and the persisted
// in-progress status is the pipeline's only concurrency guard. Records are
// retained after cleanup for audit; the pipeline never deletes them.
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add statuses or columns, update schema.sql and bump schemaVersion.
package sips
