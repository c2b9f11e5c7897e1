// Package endpoint is the reference server side of the statement protocol.
//
// An Endpoint owns one server token, generated at construction. Every id it
// hands out (categories, prepared statements) carries that token, so a
// client holding ids from a previous incarnation gets PREP_STMT_BAD_STOKEN
// or CATEGORY_OUT_OF_SYNC instead of silently resolving the wrong state.
//
// Three managers hold the shared state:
//   - CategoryManager: category identity to id
//   - StatementManager: trusted descriptor to prepared statement
//   - CursorManager: open query results, expired by a sweeper
//
// Descriptors are checked against the trusted registry before they are
// parsed. Records live in the SQLite store.
package endpoint
