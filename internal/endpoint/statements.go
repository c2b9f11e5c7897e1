package endpoint

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/webstorage/internal/descriptor"
	"github.com/roach88/webstorage/internal/ir"
)

// Prepared is a statement the endpoint has parsed and assigned an id.
type Prepared struct {
	ID         ir.SharedStateID
	CategoryID ir.SharedStateID
	Statement  *descriptor.Statement
}

// StatementManager assigns ids to prepared statements. Preparing the same
// descriptor twice under one token returns the same id.
//
// Thread-safety: All methods are safe for concurrent use.
type StatementManager struct {
	mu     sync.RWMutex
	token  uuid.UUID
	byDesc map[ir.StatementDescriptor]*Prepared
	byID   map[int32]*Prepared
	nextID int32
}

// NewStatementManager creates a manager issuing ids under token.
func NewStatementManager(token uuid.UUID) *StatementManager {
	return newStatementManagerAt(token, 0)
}

func newStatementManagerAt(token uuid.UUID, start int32) *StatementManager {
	return &StatementManager{
		token:  token,
		byDesc: make(map[ir.StatementDescriptor]*Prepared),
		byID:   make(map[int32]*Prepared),
		nextID: start,
	}
}

// Add registers stmt and returns its prepared form. Ids are never reused;
// once the id space is exhausted Add fails with an *ExhaustedError.
func (m *StatementManager) Add(stmt *descriptor.Statement, categoryID ir.SharedStateID) (*Prepared, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.byDesc[stmt.Descriptor]; ok {
		return p, nil
	}
	if m.nextID == math.MaxInt32 {
		return nil, &ExhaustedError{What: "statements"}
	}
	p := &Prepared{
		ID:         ir.NewSharedStateID(m.nextID, m.token),
		CategoryID: categoryID,
		Statement:  stmt,
	}
	m.nextID++
	m.byDesc[stmt.Descriptor] = p
	m.byID[p.ID.ID] = p
	return p, nil
}

// Lookup returns the statement prepared under id. Ids issued under another
// token never resolve.
func (m *StatementManager) Lookup(id ir.SharedStateID) (*Prepared, bool) {
	if !id.SameIncarnation(m.token) {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id.ID]
	return p, ok
}

// Len returns the number of prepared statements.
func (m *StatementManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byDesc)
}
