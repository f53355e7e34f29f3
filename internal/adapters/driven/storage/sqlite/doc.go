// Package sqlite provides a SQLite-backed checkpoint store for bulk inference.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. The cursor and every result shard live in
// one database file, so a checkpoint can be copied or inspected as a single artifact.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Cursor and shard payloads are msgpack blobs.
//
// # Data Location
//
// The database is stored at <checkpoint_dir>/checkpoint.db.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
