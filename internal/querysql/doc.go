// Package querysql compiles query expressions into parameterized SQLite
// SQL over the record store's JSON documents.
package querysql
