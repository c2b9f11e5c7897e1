// Package httpapi binds the transport.Transport calls to HTTP.
//
// Each call is a POST of its JSON request to a fixed path; the reply is
// the JSON response with status 200. Protocol outcomes such as
// PREP_STMT_BAD_STOKEN travel inside the response body. Only malformed
// requests and transport-level failures use other status codes, and the
// Client turns those into *APIError.
//
//	POST /register-category   CategoryRequest  -> CategoryResponse
//	POST /prepare-statement   PrepareRequest   -> PrepareResponse
//	POST /write-execute       ExecuteRequest   -> WriteResponse
//	POST /query-execute       ExecuteRequest   -> QueryResponse
//	POST /get-more            GetMoreRequest   -> QueryResponse
//	GET  /ping                                 -> {"server_token": ...}
package httpapi
