// Package descriptor parses statement descriptors and decides which of them
// an endpoint is willing to prepare.
//
// A descriptor is a textual template bound to a category, for example:
//
//	QUERY vm-info WHERE 'agentId' = ?s AND 'alive' = true SORT 'startTime' DSC LIMIT ?i
//	UPDATE vm-info SET 'alive' = ?b WHERE 'vmId' = ?s
//
// Descriptor text can embed filters and sorts, so accepting arbitrary text
// from a client amounts to remote query execution. The Registry is an
// allow-list of trusted texts. Anything not registered is rejected with an
// IllegalDescriptorError, and only trusted text is ever handed to Parse.
//
// Placeholders (?s ?i ?l ?b ?s[) are numbered in order of appearance.
// Statement.Bind type-checks caller parameters against them and yields a
// Bound statement whose WHERE clause is a queryir.Expression.
package descriptor
