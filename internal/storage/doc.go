// Package storage holds the JSON-file record store, the in-memory record
// repository built on it, and the SQLite audit journal with its embedded
// schema migrations.
package storage
