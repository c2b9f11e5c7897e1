package ir

import (
	"fmt"

	"github.com/google/uuid"
)

// SharedStateID references server-side state (categories, prepared
// statements) across the wire.
//
// The ServerToken identifies one running server incarnation. Two ids are
// equal only if both fields match, so a numeric id reused after a server
// restart never resolves against state created by a previous incarnation.
// The struct is comparable and may be used as a map key.
type SharedStateID struct {
	ID          int32     `json:"id"`
	ServerToken uuid.UUID `json:"server_token"`
}

// NewSharedStateID creates a SharedStateID.
func NewSharedStateID(id int32, serverToken uuid.UUID) SharedStateID {
	return SharedStateID{ID: id, ServerToken: serverToken}
}

// IsZero reports whether the id was never assigned by a server.
func (s SharedStateID) IsZero() bool {
	return s.ServerToken == uuid.Nil
}

// SameIncarnation reports whether the id was issued by the server
// incarnation identified by token.
func (s SharedStateID) SameIncarnation(token uuid.UUID) bool {
	return s.ServerToken == token
}

// String implements fmt.Stringer.
func (s SharedStateID) String() string {
	return fmt.Sprintf("%d@%s", s.ID, s.ServerToken)
}
