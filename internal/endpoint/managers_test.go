package endpoint

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/webstorage/internal/descriptor"
	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/testutil"
)

var (
	vmInfo   = ir.Category{Name: "vm-info", DataClass: "VmInfo"}
	hostInfo = ir.Category{Name: "host-info"}
)

func parsed(t *testing.T, text string) *descriptor.Statement {
	t.Helper()
	stmt, err := descriptor.ParseText(text)
	require.NoError(t, err)
	stmt.Descriptor = ir.NewStatementDescriptor(vmInfo, text)
	return stmt
}

func TestCategoryManager_SameCategorySameID(t *testing.T) {
	m := NewCategoryManager(testutil.Token(1))

	a, err := m.Register(vmInfo)
	require.NoError(t, err)
	b, err := m.Register(hostInfo)
	require.NoError(t, err)
	again, err := m.Register(vmInfo)
	require.NoError(t, err)

	assert.Equal(t, ir.NewSharedStateID(0, testutil.Token(1)), a)
	assert.Equal(t, ir.NewSharedStateID(1, testutil.Token(1)), b)
	assert.Equal(t, a, again)
	assert.Equal(t, 2, m.Len())

	cat, ok := m.Lookup(b)
	require.True(t, ok)
	assert.Equal(t, hostInfo, cat)

	// Same data class matters: a category differing only by class is new.
	c, err := m.Register(ir.Category{Name: "vm-info"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestCategoryManager_ForeignTokenMisses(t *testing.T) {
	m := NewCategoryManager(testutil.Token(1))
	id, err := m.Register(vmInfo)
	require.NoError(t, err)

	_, ok := m.Lookup(ir.NewSharedStateID(id.ID, testutil.Token(2)))
	assert.False(t, ok)
}

func TestStatementManager_IDs(t *testing.T) {
	m := NewStatementManager(testutil.Token(1))
	catID := ir.NewSharedStateID(0, testutil.Token(1))

	first, err := m.Add(parsed(t, "QUERY vm-info"), catID)
	require.NoError(t, err)
	second, err := m.Add(parsed(t, "QUERY-COUNT vm-info"), catID)
	require.NoError(t, err)
	again, err := m.Add(parsed(t, "QUERY vm-info"), catID)
	require.NoError(t, err)

	assert.Equal(t, int32(0), first.ID.ID)
	assert.Equal(t, int32(1), second.ID.ID)
	assert.Same(t, first, again)
	assert.Equal(t, 2, m.Len())

	got, ok := m.Lookup(second.ID)
	require.True(t, ok)
	assert.Same(t, second, got)

	_, ok = m.Lookup(ir.NewSharedStateID(1, testutil.Token(9)))
	assert.False(t, ok)
}

func TestStatementManager_TooManyStatements(t *testing.T) {
	m := newStatementManagerAt(testutil.Token(1), math.MaxInt32-1)
	catID := ir.NewSharedStateID(0, testutil.Token(1))

	last, err := m.Add(parsed(t, "QUERY vm-info"), catID)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32-1), last.ID.ID)

	_, err = m.Add(parsed(t, "QUERY-COUNT vm-info"), catID)
	require.Error(t, err)
	assert.True(t, IsExhausted(err))
	assert.Equal(t, "Too many different statements!", err.Error())

	// Known descriptors still resolve.
	again, err := m.Add(parsed(t, "QUERY vm-info"), catID)
	require.NoError(t, err)
	assert.Same(t, last, again)
}

func TestStatementManager_Concurrent(t *testing.T) {
	m := NewStatementManager(testutil.Token(1))
	catID := ir.NewSharedStateID(0, testutil.Token(1))
	texts := []string{"QUERY vm-info", "QUERY-COUNT vm-info", "REMOVE vm-info"}

	var wg sync.WaitGroup
	ids := make([][]ir.SharedStateID, 8)
	for w := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, text := range texts {
				stmt, err := descriptor.ParseText(text)
				if !assert.NoError(t, err) {
					return
				}
				stmt.Descriptor = ir.NewStatementDescriptor(vmInfo, text)
				p, err := m.Add(stmt, catID)
				if assert.NoError(t, err) {
					ids[w] = append(ids[w], p.ID)
				}
			}
		}()
	}
	wg.Wait()

	for w := 1; w < len(ids); w++ {
		assert.Equal(t, ids[0], ids[w])
	}
	assert.Equal(t, len(texts), m.Len())
}
