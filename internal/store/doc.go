// Package store provides the SQLite-backed record store of the reference
// endpoint.
//
// Every record is a JSON document belonging to one category, kept in a
// single records table:
//
//	records(id INTEGER PRIMARY KEY, category TEXT, doc TEXT, digest TEXT)
//
// Documents are stored in canonical JSON (sorted keys, NFC strings, no
// floats or nulls) and digest is the domain-separated SHA-256 of the
// category and document, recomputed on every write.
//
// Filters are query expressions compiled by querysql; field paths and
// values are always bound as parameters. Reads are ordered by the
// requested sort keys followed by id ASC so offset paging is stable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
