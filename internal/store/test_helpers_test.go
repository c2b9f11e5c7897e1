package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/webstorage/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// vm builds a vm-info record.
func vm(agentID, vmID, state string, start int64) ir.Object {
	return ir.Object{
		"agentId":   ir.String(agentID),
		"vmId":      ir.String(vmID),
		"state":     ir.String(state),
		"startTime": ir.Int(start),
		"alive":     ir.Bool(state == "RUNNING"),
	}
}
