package ir

import "fmt"

// ResponseCode is the result code of a statement execution or get-more call.
// Values are fixed by the wire protocol and must not change.
type ResponseCode int

const (
	// QuerySuccess indicates the statement executed successfully.
	QuerySuccess ResponseCode = 0

	// IllegalPatch indicates an update's assignments could not be applied.
	IllegalPatch ResponseCode = -1

	// PrepStmtBadStoken indicates the statement id was issued by another
	// server incarnation. The client must prepare the descriptor again.
	PrepStmtBadStoken ResponseCode = -2

	// QueryFailure indicates a query failed on the server.
	QueryFailure ResponseCode = -100

	// GetMoreNullCursor indicates the server has no cursor with the
	// requested id, most likely because it timed out.
	GetMoreNullCursor ResponseCode = -151

	// WriteGenericFailure indicates a write statement failed on the server.
	WriteGenericFailure ResponseCode = -200
)

// String returns the protocol name of the code.
func (c ResponseCode) String() string {
	switch c {
	case QuerySuccess:
		return "QUERY_SUCCESS"
	case IllegalPatch:
		return "ILLEGAL_PATCH"
	case PrepStmtBadStoken:
		return "PREP_STMT_BAD_STOKEN"
	case QueryFailure:
		return "QUERY_FAILURE"
	case GetMoreNullCursor:
		return "GET_MORE_NULL_CURSOR"
	case WriteGenericFailure:
		return "WRITE_GENERIC_FAILURE"
	default:
		return fmt.Sprintf("RESPONSE_CODE(%d)", int(c))
	}
}

// PrepareCode is the failure code of a statement preparation. It lives in
// its own namespace: PrepareCode(-1) and ResponseCode(-1) mean different
// things.
type PrepareCode int

const (
	// PrepareSuccess indicates the descriptor was prepared.
	PrepareSuccess PrepareCode = 0

	// IllegalStatement indicates the descriptor is not in the trusted set.
	IllegalStatement PrepareCode = -1

	// DescriptorParseFailed indicates the descriptor text is malformed.
	DescriptorParseFailed PrepareCode = -2

	// CategoryOutOfSync indicates the server does not know the category id
	// the client sent, e.g. after a server restart.
	CategoryOutOfSync PrepareCode = -3
)

// String returns the protocol name of the code.
func (c PrepareCode) String() string {
	switch c {
	case PrepareSuccess:
		return "PREPARE_SUCCESS"
	case IllegalStatement:
		return "ILLEGAL_STATEMENT"
	case DescriptorParseFailed:
		return "DESCRIPTOR_PARSE_FAILED"
	case CategoryOutOfSync:
		return "CATEGORY_OUT_OF_SYNC"
	default:
		return fmt.Sprintf("PREPARE_CODE(%d)", int(c))
	}
}
