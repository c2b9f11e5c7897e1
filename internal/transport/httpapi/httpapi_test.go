package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/webstorage/internal/client"
	"github.com/roach88/webstorage/internal/cursor"
	"github.com/roach88/webstorage/internal/descriptor"
	"github.com/roach88/webstorage/internal/endpoint"
	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/store"
	"github.com/roach88/webstorage/internal/testutil"
	"github.com/roach88/webstorage/internal/transport"
)

var hostInfo = ir.Category{Name: "host-info", DataClass: "HostInfo"}

const (
	addHost   = "ADD host-info SET 'agentId' = ?s , 'hostname' = ?s , 'cpus' = ?i"
	allHosts  = "QUERY host-info SORT 'hostname' ASC"
	countHost = "QUERY-COUNT host-info WHERE 'cpus' > ?i"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*endpoint.Endpoint, *httptest.Server) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithLogger(quiet()))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := descriptor.NewRegistryFromTexts([]string{addHost, allHosts, countHost}, descriptor.WithLogger(quiet()))
	ep := endpoint.New(st, reg,
		endpoint.WithLogger(quiet()),
		endpoint.WithTokenGenerator(testutil.NewSequentialTokens()),
		endpoint.WithClock(testutil.NewFakeClock(time.Time{})),
		endpoint.WithBatchSize(2),
	)
	srv := httptest.NewServer(NewServer(ep, WithServerLogger(quiet())).Handler())
	t.Cleanup(srv.Close)
	return ep, srv
}

func TestRoundTrip_ThroughClient(t *testing.T) {
	ep, srv := newTestServer(t)
	ctx := context.Background()
	c := client.New(NewClient(srv.URL), client.WithLogger(quiet()))

	add, err := c.Prepare(ctx, ir.NewStatementDescriptor(hostInfo, addHost))
	require.NoError(t, err)
	assert.Equal(t, ep.ServerToken(), add.ID().ServerToken)

	for _, h := range []struct {
		name string
		cpus int32
	}{{"delta", 8}, {"alpha", 2}, {"charlie", 16}, {"bravo", 4}, {"echo", 1}} {
		require.NoError(t, add.SetString(0, "a-1"))
		require.NoError(t, add.SetString(1, h.name))
		require.NoError(t, add.SetInt(2, h.cpus))
		code, err := add.Execute(ctx)
		require.NoError(t, err)
		require.Equal(t, ir.QuerySuccess, code)
	}

	type host struct {
		Hostname string `json:"hostname"`
		CPUs     int    `json:"cpus"`
	}
	all, err := c.Prepare(ctx, ir.NewStatementDescriptor(hostInfo, allHosts))
	require.NoError(t, err)
	cur, err := client.QueryAs[host](ctx, all)
	require.NoError(t, err)
	require.NoError(t, cur.SetBatchSize(2))
	hosts, err := cursor.Collect(ctx, cur)
	require.NoError(t, err)
	require.Len(t, hosts, 5)
	assert.Equal(t, host{Hostname: "alpha", CPUs: 2}, hosts[0])
	assert.Equal(t, host{Hostname: "echo", CPUs: 1}, hosts[4])

	count, err := c.Prepare(ctx, ir.NewStatementDescriptor(hostInfo, countHost))
	require.NoError(t, err)
	require.NoError(t, count.SetInt(0, 3))
	cur2, err := count.ExecuteQuery(ctx)
	require.NoError(t, err)
	records, err := cursor.Collect(ctx, cur2)
	require.NoError(t, err)
	assert.Equal(t, []ir.Object{{"count": ir.Int(3)}}, records)
}

func TestRoundTrip_ProtocolCodesAreNotHTTPErrors(t *testing.T) {
	_, srv := newTestServer(t)
	ctx := context.Background()
	c := NewClient(srv.URL)

	cat, err := c.RegisterCategory(ctx, transport.CategoryRequest{Category: hostInfo})
	require.NoError(t, err)

	resp, err := c.PrepareStatement(ctx, transport.PrepareRequest{
		Descriptor: ir.NewStatementDescriptor(hostInfo, "REMOVE host-info"),
		CategoryID: cat.CategoryID,
	})
	require.NoError(t, err)
	assert.Equal(t, ir.IllegalStatement, resp.Code)

	more, err := c.GetMore(ctx, transport.GetMoreRequest{StatementID: ir.NewSharedStateID(42, testutil.Token(99)), CursorID: 1})
	require.NoError(t, err)
	assert.Equal(t, ir.PrepStmtBadStoken, more.Code)
}

func TestPing(t *testing.T) {
	ep, srv := newTestServer(t)
	resp, err := NewClient(srv.URL + "/").Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ep.ServerToken(), resp.ServerToken)
}

func TestServer_RejectsMalformedBody(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"not json", "{"},
		{"unknown field", `{"category": {"name": "x"}, "extra": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+PathRegisterCategory, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestClient_NonOKIsAPIError(t *testing.T) {
	_, srv := newTestServer(t)
	c := NewClient(srv.URL)

	// The endpoint refuses an empty category name with an error.
	_, err := c.RegisterCategory(context.Background(), transport.CategoryRequest{})
	require.Error(t, err)
	assert.True(t, IsAPIError(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", apiErr.Code)
	assert.Contains(t, apiErr.Message, "empty category name")
}

func TestClient_WrongMethod(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + PathGetMore)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestClient_UnreachableServer(t *testing.T) {
	_, srv := newTestServer(t)
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).RegisterCategory(context.Background(), transport.CategoryRequest{Category: hostInfo})
	require.Error(t, err)
	assert.False(t, IsAPIError(err))
}
