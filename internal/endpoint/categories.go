package endpoint

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/webstorage/internal/ir"
)

// CategoryManager assigns ids to categories. Registering the same category
// twice returns the same id.
//
// Thread-safety: All methods are safe for concurrent use.
type CategoryManager struct {
	mu     sync.Mutex
	token  uuid.UUID
	byCat  map[ir.Category]ir.SharedStateID
	byID   map[int32]ir.Category
	nextID int32
}

// NewCategoryManager creates a manager issuing ids under token.
func NewCategoryManager(token uuid.UUID) *CategoryManager {
	return &CategoryManager{
		token: token,
		byCat: make(map[ir.Category]ir.SharedStateID),
		byID:  make(map[int32]ir.Category),
	}
}

// Register returns the id of cat, assigning one on first use.
func (m *CategoryManager) Register(cat ir.Category) (ir.SharedStateID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byCat[cat]; ok {
		return id, nil
	}
	if m.nextID == math.MaxInt32 {
		return ir.SharedStateID{}, &ExhaustedError{What: "categories"}
	}
	id := ir.NewSharedStateID(m.nextID, m.token)
	m.nextID++
	m.byCat[cat] = id
	m.byID[id.ID] = cat
	return id, nil
}

// Lookup returns the category registered under id. Ids issued under
// another token never resolve.
func (m *CategoryManager) Lookup(id ir.SharedStateID) (ir.Category, bool) {
	if !id.SameIncarnation(m.token) {
		return ir.Category{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.byID[id.ID]
	return cat, ok
}

// Len returns the number of registered categories.
func (m *CategoryManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byCat)
}
