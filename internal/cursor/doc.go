// Package cursor implements the client side of paged query results.
//
// A Cursor starts with the first batch returned by statement execution and
// pulls further batches from the endpoint with get-more calls, one per
// exhausted local batch. It is forward-only, not restartable, and owned by
// a single goroutine.
//
// Get-more failures are split in two kinds because the recovery differs:
// an *ExpiredError means the endpoint no longer holds the cursor and the
// query should be resubmitted, a *FetchError is anything else.
package cursor
