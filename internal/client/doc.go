// Package client is the caller-facing side of the statement protocol.
//
// A Client prepares statement descriptors against an endpoint, caches the
// resulting handles, binds parameters and executes them, returning a
// cursor for queries:
//
//	c := client.New(tr)
//	stmt, err := c.Prepare(ctx, ir.NewStatementDescriptor(cat, "QUERY vm-info WHERE 'agentId' = ?s"))
//	...
//	stmt.SetString(0, "a-1")
//	cur, err := stmt.ExecuteQuery(ctx)
//	for rec, err := range cur.All(ctx) { ... }
//
// Handles carry the server token of the endpoint that issued them. When
// the client sees a new token (the endpoint restarted) it moves its cache
// into a time-limited read-only view, so ids of the old incarnation still
// map back to their descriptors for re-preparation, and starts afresh.
package client
