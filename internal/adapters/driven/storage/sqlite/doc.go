// Package sqlite provides a VectorStore backed by a SQLite database.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. It is an alternative to the JSON file backend for larger stores: an append
// is a single-row insert in a transaction instead of a whole-file rewrite.
//
// Vectors are stored as little-endian float32 blobs. Metadata is stored as JSON.
// The table always holds a sentinel row, mirroring the JSON file layout.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. A store_meta table records the schema version and the
// established dimensionality.
//
// # Thread Safety
//
// Chunks are loaded into memory on open and on Reload. Writes hold an exclusive
// lock across the database transaction and the in-memory update; searches share
// a read lock and see a complete snapshot.
package sqlite
