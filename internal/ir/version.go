package ir

// Version constants for the wire protocol.
const (
	// ProtocolVersion is the statement protocol version spoken by client and endpoint.
	ProtocolVersion = "1"

	// ServerVersion is the reference endpoint version.
	ServerVersion = "0.1.0"
)
