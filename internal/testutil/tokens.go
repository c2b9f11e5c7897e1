package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SequentialTokens generates predictable server tokens:
//
//	00000000-0000-0000-0000-000000000001
//	00000000-0000-0000-0000-000000000002
//	...
//
// Each call to Generate simulates a new server incarnation, so a test can
// restart an endpoint and know exactly which token it will announce.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialTokens struct {
	mu  sync.Mutex
	seq uint64
}

// NewSequentialTokens creates a generator whose first token ends in 1.
func NewSequentialTokens() *SequentialTokens {
	return &SequentialTokens{}
}

// Generate returns the next token.
func (g *SequentialTokens) Generate() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return Token(g.seq)
}

// Token returns the n-th token of the sequence.
func Token(n uint64) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012x", n))
}
