// Package history persists one row per source video in SQLite so operators can
// see what was converted, what failed, and which files were poisoned after
// exhausting their retries.
//
// The marker files and outputs on disk remain the coordination mechanism; the
// history database is a record of outcomes plus the poison list consulted
// before a new attempt starts. Schema changes bump schemaVersion in schema.go;
// an older database is rejected with ErrSchemaMismatch and must be deleted.
package history
