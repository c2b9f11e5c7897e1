// Package stmtcache holds the client's prepared-statement handles.
//
// Cache is a bidirectional map, descriptor to Holder and statement id to
// descriptor, kept consistent under a single RWMutex. Snapshot copies it
// into an immutable value. ExpirableView wraps any Lookup with a deadline
// after which every lookup misses.
//
// Statement ids are compound (number, server token), so ids issued by one
// endpoint incarnation never resolve entries created under another.
package stmtcache
