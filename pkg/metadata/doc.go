// Package metadata defines the object database behind the MTP responder:
// the Object record, the Store interface every backend implements, and the
// error taxonomy stores report.
//
// A store owns handle allocation. Handles are unique for the lifetime of
// the database, are never 0 and never 0xFFFFFFFF (both reserved by the
// protocol). Objects carry their absolute filesystem path, so the responder
// resolves a handle to a file with a single lookup.
//
// Backends live under store/: memory (tests, ephemeral devices), badger
// (embedded, default), gorm (SQLite) and postgres (pgx). The storetest
// package holds the conformance suite they all pass.
package metadata
