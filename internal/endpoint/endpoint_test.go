package endpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/webstorage/internal/cursor"
	"github.com/roach88/webstorage/internal/descriptor"
	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/queryir"
	"github.com/roach88/webstorage/internal/store"
	"github.com/roach88/webstorage/internal/testutil"
	"github.com/roach88/webstorage/internal/transport"
)

const (
	addVM      = "ADD vm-info SET 'agentId' = ?s , 'vmId' = ?s , 'startTime' = ?l"
	vmsByAgent = "QUERY vm-info WHERE 'agentId' = ?s SORT 'startTime' ASC"
	vmsLimited = "QUERY vm-info SORT 'startTime' ASC LIMIT ?i"
	countVMs   = "QUERY-COUNT vm-info WHERE 'agentId' = ?s"
	removeVM   = "REMOVE vm-info WHERE 'vmId' = ?s"
	untrusted  = "QUERY vm-info WHERE 'secret' = ?s"
)

type fixture struct {
	ep    *Endpoint
	clock *testutil.FakeClock
	catID ir.SharedStateID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := descriptor.NewRegistryFromTexts(
		[]string{addVM, vmsByAgent, vmsLimited, countVMs, removeVM, "QUERY vm-info WHERE"},
		descriptor.WithLogger(discardLogger()),
	)
	clock := testutil.NewFakeClock(time.Time{})
	base := []Option{
		WithLogger(discardLogger()),
		WithTokenGenerator(testutil.NewSequentialTokens()),
		WithClock(clock),
	}
	ep := New(st, reg, append(base, opts...)...)

	resp, err := ep.RegisterCategory(context.Background(), transport.CategoryRequest{Category: vmInfo})
	require.NoError(t, err)
	return &fixture{ep: ep, clock: clock, catID: resp.CategoryID}
}

func (f *fixture) prepare(t *testing.T, text string) transport.PrepareResponse {
	t.Helper()
	resp, err := f.ep.PrepareStatement(context.Background(), transport.PrepareRequest{
		Descriptor: ir.NewStatementDescriptor(vmInfo, text),
		CategoryID: f.catID,
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) seed(t *testing.T, n int) {
	t.Helper()
	add := f.prepare(t, addVM)
	require.Equal(t, ir.PrepareSuccess, add.Code)
	for i := range n {
		resp, err := f.ep.Execute(context.Background(), transport.ExecuteRequest{
			StatementID: add.StatementID,
			Params: transport.Params{
				queryir.StringLiteral("a-1"),
				queryir.StringLiteral(fmt.Sprintf("vm-%02d", i)),
				queryir.LongLiteral(int64(i)),
			},
		})
		require.NoError(t, err)
		require.Equal(t, ir.QuerySuccess, resp.Code, resp.Message)
		require.Equal(t, 1, resp.Affected)
	}
}

func vmIDs(records []ir.Object) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = string(r["vmId"].(ir.String))
	}
	return out
}

func TestEndpoint_ServerToken(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, testutil.Token(1), f.ep.ServerToken())
	assert.Equal(t, testutil.Token(1), f.catID.ServerToken)
}

func TestEndpoint_RegisterCategoryRequiresName(t *testing.T) {
	f := newFixture(t)
	_, err := f.ep.RegisterCategory(context.Background(), transport.CategoryRequest{})
	assert.Error(t, err)
}

func TestPrepare_Success(t *testing.T) {
	f := newFixture(t)

	first := f.prepare(t, vmsByAgent)
	require.Equal(t, ir.PrepareSuccess, first.Code)
	assert.Equal(t, 1, first.NumFreeVariables)
	assert.Equal(t, f.ep.ServerToken(), first.StatementID.ServerToken)

	again := f.prepare(t, vmsByAgent)
	assert.Equal(t, first.StatementID, again.StatementID)
}

func TestPrepare_UnicodeEquivalentSpellingsShareStatement(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	composed := "QUERY vm-info WHERE 'caf\u00e9' = ?s"
	decomposed := "QUERY vm-info WHERE 'cafe\u0301' = ?s"
	reg := descriptor.NewRegistryFromTexts([]string{decomposed}, descriptor.WithLogger(discardLogger()))
	ep := New(st, reg, WithLogger(discardLogger()), WithTokenGenerator(testutil.NewSequentialTokens()))

	ctx := context.Background()
	cat, err := ep.RegisterCategory(ctx, transport.CategoryRequest{Category: vmInfo})
	require.NoError(t, err)

	var ids []ir.SharedStateID
	for _, text := range []string{composed, decomposed} {
		resp, err := ep.PrepareStatement(ctx, transport.PrepareRequest{
			Descriptor: ir.NewStatementDescriptor(vmInfo, text),
			CategoryID: cat.CategoryID,
		})
		require.NoError(t, err)
		require.Equal(t, ir.PrepareSuccess, resp.Code, resp.Message)
		ids = append(ids, resp.StatementID)
	}
	assert.Equal(t, ids[0], ids[1])

	p, ok := ep.Statements().Lookup(ids[0])
	require.True(t, ok)
	assert.Equal(t, composed, p.Statement.Descriptor.Text)
}

func TestPrepare_Failures(t *testing.T) {
	f := newFixture(t)

	resp := f.prepare(t, untrusted)
	assert.Equal(t, ir.IllegalStatement, resp.Code)
	assert.Contains(t, resp.Message, untrusted)

	resp = f.prepare(t, "QUERY vm-info WHERE")
	assert.Equal(t, ir.DescriptorParseFailed, resp.Code)
	assert.Contains(t, resp.Message, "descriptor parse failed")
}

func TestPrepare_CategoryOutOfSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Id from another incarnation.
	resp, err := f.ep.PrepareStatement(ctx, transport.PrepareRequest{
		Descriptor: ir.NewStatementDescriptor(vmInfo, vmsByAgent),
		CategoryID: ir.NewSharedStateID(f.catID.ID, testutil.Token(7)),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.CategoryOutOfSync, resp.Code)

	// Id of a different category.
	hosts, err := f.ep.RegisterCategory(ctx, transport.CategoryRequest{Category: hostInfo})
	require.NoError(t, err)
	resp, err = f.ep.PrepareStatement(ctx, transport.PrepareRequest{
		Descriptor: ir.NewStatementDescriptor(vmInfo, vmsByAgent),
		CategoryID: hosts.CategoryID,
	})
	require.NoError(t, err)
	assert.Equal(t, ir.CategoryOutOfSync, resp.Code)
}

func TestExecuteQuery_SingleBatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 3)
	q := f.prepare(t, vmsByAgent)

	resp, err := f.ep.ExecuteQuery(context.Background(), transport.ExecuteRequest{
		StatementID: q.StatementID,
		Params:      transport.Params{queryir.StringLiteral("a-1")},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.QuerySuccess, resp.Code)
	assert.Equal(t, cursor.NotStored, resp.CursorID)
	assert.False(t, resp.HasMore)
	assert.Equal(t, []string{"vm-00", "vm-01", "vm-02"}, vmIDs(resp.Records))
	assert.Zero(t, f.ep.Cursors().Len())
}

func TestExecuteQuery_PagesThroughCursor(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 7)
	q := f.prepare(t, vmsByAgent)
	ctx := context.Background()

	resp, err := f.ep.ExecuteQuery(ctx, transport.ExecuteRequest{
		StatementID: q.StatementID,
		Params:      transport.Params{queryir.StringLiteral("a-1")},
		BatchSize:   3,
	})
	require.NoError(t, err)
	require.True(t, resp.HasMore)
	require.NotEqual(t, cursor.NotStored, resp.CursorID)
	got := vmIDs(resp.Records)

	for resp.HasMore {
		resp, err = f.ep.GetMore(ctx, transport.GetMoreRequest{
			StatementID: q.StatementID,
			CursorID:    resp.CursorID,
			BatchSize:   2,
		})
		require.NoError(t, err)
		require.Equal(t, ir.QuerySuccess, resp.Code)
		got = append(got, vmIDs(resp.Records)...)
	}
	assert.Equal(t, []string{"vm-00", "vm-01", "vm-02", "vm-03", "vm-04", "vm-05", "vm-06"}, got)
	assert.Zero(t, f.ep.Cursors().Len(), "finished cursors are dropped")
}

func TestGetMore_ConcurrentCallsOnOneCursor(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 40)
	q := f.prepare(t, vmsByAgent)
	ctx := context.Background()

	resp, err := f.ep.ExecuteQuery(ctx, transport.ExecuteRequest{
		StatementID: q.StatementID,
		Params:      transport.Params{queryir.StringLiteral("a-1")},
		BatchSize:   2,
	})
	require.NoError(t, err)
	require.True(t, resp.HasMore)
	cursorID := resp.CursorID

	var (
		mu  sync.Mutex
		got = vmIDs(resp.Records)
		wg  sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				more, err := f.ep.GetMore(ctx, transport.GetMoreRequest{
					StatementID: q.StatementID,
					CursorID:    cursorID,
					BatchSize:   2,
				})
				if err != nil || more.Code != ir.QuerySuccess {
					return
				}
				mu.Lock()
				got = append(got, vmIDs(more.Records)...)
				mu.Unlock()
				if !more.HasMore {
					return
				}
			}
		}()
	}
	wg.Wait()

	// Batches never overlap: every record is handed out exactly once.
	want := make([]string, 40)
	for i := range want {
		want[i] = fmt.Sprintf("vm-%02d", i)
	}
	slices.Sort(got)
	assert.Equal(t, want, got)
	assert.Zero(t, f.ep.Cursors().Len())
}

func TestExecuteQuery_RespectsStatementLimit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 10)
	q := f.prepare(t, vmsLimited)
	ctx := context.Background()

	resp, err := f.ep.ExecuteQuery(ctx, transport.ExecuteRequest{
		StatementID: q.StatementID,
		Params:      transport.Params{queryir.IntLiteral(5)},
		BatchSize:   3,
	})
	require.NoError(t, err)
	require.True(t, resp.HasMore)
	got := vmIDs(resp.Records)

	resp, err = f.ep.GetMore(ctx, transport.GetMoreRequest{StatementID: q.StatementID, CursorID: resp.CursorID, BatchSize: 3})
	require.NoError(t, err)
	got = append(got, vmIDs(resp.Records)...)

	assert.False(t, resp.HasMore)
	assert.Equal(t, []string{"vm-00", "vm-01", "vm-02", "vm-03", "vm-04"}, got)
}

func TestExecuteQuery_LimitEqualToBatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 10)
	q := f.prepare(t, vmsLimited)

	resp, err := f.ep.ExecuteQuery(context.Background(), transport.ExecuteRequest{
		StatementID: q.StatementID,
		Params:      transport.Params{queryir.IntLiteral(4)},
		BatchSize:   4,
	})
	require.NoError(t, err)
	assert.False(t, resp.HasMore)
	assert.Equal(t, cursor.NotStored, resp.CursorID)
	assert.Len(t, resp.Records, 4)
}

func TestExecuteQuery_Count(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 4)
	q := f.prepare(t, countVMs)

	resp, err := f.ep.ExecuteQuery(context.Background(), transport.ExecuteRequest{
		StatementID: q.StatementID,
		Params:      transport.Params{queryir.StringLiteral("a-1")},
	})
	require.NoError(t, err)
	assert.Equal(t, []ir.Object{{"count": ir.Int(4)}}, resp.Records)
	assert.Equal(t, cursor.NotStored, resp.CursorID)
}

func TestExecuteQuery_ErrorCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.prepare(t, vmsByAgent)
	add := f.prepare(t, addVM)

	// Wrong parameter type.
	resp, err := f.ep.ExecuteQuery(ctx, transport.ExecuteRequest{
		StatementID: q.StatementID,
		Params:      transport.Params{queryir.IntLiteral(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.IllegalPatch, resp.Code)

	// Write statement through the query path.
	resp, err = f.ep.ExecuteQuery(ctx, transport.ExecuteRequest{StatementID: add.StatementID})
	require.NoError(t, err)
	assert.Equal(t, ir.QueryFailure, resp.Code)

	// Statement from another incarnation.
	resp, err = f.ep.ExecuteQuery(ctx, transport.ExecuteRequest{
		StatementID: ir.NewSharedStateID(q.StatementID.ID, testutil.Token(2)),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.PrepStmtBadStoken, resp.Code)
}

func TestExecute_ErrorCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.prepare(t, vmsByAgent)
	add := f.prepare(t, addVM)

	resp, err := f.ep.Execute(ctx, transport.ExecuteRequest{StatementID: q.StatementID})
	require.NoError(t, err)
	assert.Equal(t, ir.WriteGenericFailure, resp.Code)

	resp, err = f.ep.Execute(ctx, transport.ExecuteRequest{
		StatementID: add.StatementID,
		Params:      transport.Params{queryir.StringLiteral("only one")},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.IllegalPatch, resp.Code)

	resp, err = f.ep.Execute(ctx, transport.ExecuteRequest{StatementID: ir.NewSharedStateID(99, f.ep.ServerToken())})
	require.NoError(t, err)
	assert.Equal(t, ir.PrepStmtBadStoken, resp.Code)
}

func TestExecute_Remove(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 3)
	rm := f.prepare(t, removeVM)
	ctx := context.Background()

	resp, err := f.ep.Execute(ctx, transport.ExecuteRequest{
		StatementID: rm.StatementID,
		Params:      transport.Params{queryir.StringLiteral("vm-01")},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.QuerySuccess, resp.Code)
	assert.Equal(t, 1, resp.Affected)

	count := f.prepare(t, countVMs)
	qr, err := f.ep.ExecuteQuery(ctx, transport.ExecuteRequest{
		StatementID: count.StatementID,
		Params:      transport.Params{queryir.StringLiteral("a-1")},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.Int(2), qr.Records[0]["count"])
}

func TestGetMore_ExpiredCursor(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 5)
	q := f.prepare(t, vmsByAgent)
	ctx := context.Background()

	resp, err := f.ep.ExecuteQuery(ctx, transport.ExecuteRequest{
		StatementID: q.StatementID,
		Params:      transport.Params{queryir.StringLiteral("a-1")},
		BatchSize:   2,
	})
	require.NoError(t, err)
	require.True(t, resp.HasMore)

	f.clock.Advance(DefaultCursorTimeout + time.Second)
	f.ep.Cursors().Expire()

	more, err := f.ep.GetMore(ctx, transport.GetMoreRequest{StatementID: q.StatementID, CursorID: resp.CursorID, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, ir.GetMoreNullCursor, more.Code)
	assert.Equal(t, resp.CursorID, more.CursorID)
}

func TestGetMore_CursorOfOtherStatement(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 5)
	q := f.prepare(t, vmsByAgent)
	other := f.prepare(t, vmsLimited)
	ctx := context.Background()

	resp, err := f.ep.ExecuteQuery(ctx, transport.ExecuteRequest{
		StatementID: q.StatementID,
		Params:      transport.Params{queryir.StringLiteral("a-1")},
		BatchSize:   2,
	})
	require.NoError(t, err)

	more, err := f.ep.GetMore(ctx, transport.GetMoreRequest{StatementID: other.StatementID, CursorID: resp.CursorID, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, ir.GetMoreNullCursor, more.Code)
}

func TestEndpoint_DefaultBatchSizeOption(t *testing.T) {
	f := newFixture(t, WithBatchSize(2))
	f.seed(t, 3)
	q := f.prepare(t, vmsByAgent)

	resp, err := f.ep.ExecuteQuery(context.Background(), transport.ExecuteRequest{
		StatementID: q.StatementID,
		Params:      transport.Params{queryir.StringLiteral("a-1")},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Records, 2)
	assert.True(t, resp.HasMore)
}
