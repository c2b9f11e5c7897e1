package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addVM      = "ADD vm-info SET 'agentId' = ?s , 'vmId' = ?s , 'startTime' = ?l , 'alive' = ?b"
	vmsByAgent = "QUERY vm-info WHERE 'agentId' = ?s SORT 'startTime' ASC"
	countVMs   = "QUERY-COUNT vm-info"
	killVM     = "UPDATE vm-info SET 'alive' = ?b WHERE 'vmId' = ?s"
	removeVMs  = "REMOVE vm-info WHERE 'vmId' IN ?s["
)

var registryPath = filepath.Join("testdata", "registry.cue")

// run executes the root command with args and returns stdout and the error.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// local returns flags selecting an in-process endpoint over a fresh
// database.
func local(t *testing.T) []string {
	t.Helper()
	return []string{"--db", filepath.Join(t.TempDir(), "records.db"), "--registry", registryPath}
}

func withFlags(args []string, flags ...string) []string {
	return append(append([]string{}, args...), flags...)
}

func TestWriteAndQuery_InProcess(t *testing.T) {
	db := local(t)

	for i, vm := range []string{"vm-2", "vm-1", "vm-3"} {
		out, err := run(t, withFlags([]string{"write", addVM}, append(db,
			"-p", "s:a-1", "-p", "s:"+vm, "-p", fmt.Sprintf("l:%d", 10-i), "-p", "b:true")...)...)
		require.NoError(t, err, out)
		assert.Equal(t, "QUERY_SUCCESS\n", out)
	}

	out, err := run(t, withFlags([]string{"write", killVM}, append(db, "-p", "b:false", "-p", "s:vm-1")...)...)
	require.NoError(t, err, out)

	out, err = run(t, withFlags([]string{"query", vmsByAgent, "--batch-size", "1"}, append(db, "-p", "s:a-1")...)...)
	require.NoError(t, err, out)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"vmId":"vm-3"`)
	assert.Contains(t, lines[1], `"vmId":"vm-1"`)
	assert.Contains(t, lines[1], `"alive":false`)
	assert.Contains(t, lines[2], `"vmId":"vm-2"`)
	assert.Equal(t, "(3 records)", lines[3])

	out, err = run(t, withFlags([]string{"--format", "json", "query", countVMs}, db...)...)
	require.NoError(t, err, out)
	var resp struct {
		Status string      `json:"status"`
		Data   QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Records, 1)
	assert.Equal(t, 1, resp.Data.Count)
	data, err := json.Marshal(resp.Data.Records[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"count": 3}`, string(data))

	out, err = run(t, withFlags([]string{"write", removeVMs}, append(db, "-p", "s[:vm-1,vm-2")...)...)
	require.NoError(t, err, out)
	out, err = run(t, withFlags([]string{"query", countVMs}, db...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, `{"count":1}`)
}

func TestQuery_Errors(t *testing.T) {
	db := local(t)

	tests := []struct {
		name     string
		args     []string
		exitCode int
		errCode  string
	}{
		{"untrusted descriptor", []string{"query", "QUERY vm-info"}, ExitFailure, ErrCodeUntrusted},
		{"missing parameter", []string{"query", vmsByAgent}, ExitCommandError, ErrCodeParameter},
		{"malformed parameter", []string{"query", vmsByAgent, "-p", "agent"}, ExitCommandError, ErrCodeParameter},
		{"write through query", []string{"query", killVM, "-p", "b:true", "-p", "s:vm-1"}, ExitFailure, ErrCodeQuery},
		{"query through write", []string{"write", countVMs}, ExitFailure, ErrCodeWrite},
		{"mistyped parameter", []string{"write", killVM, "-p", "s:yes", "-p", "s:vm-1"}, ExitFailure, ErrCodeWrite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, withFlags(tt.args, db...)...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.errCode+"]")
		})
	}
}

func TestQuery_RequiresRegistryInProcess(t *testing.T) {
	out, err := run(t, "query", countVMs, "--db", filepath.Join(t.TempDir(), "records.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeRegistry+"]")
}

func TestQuery_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "webstorage.yaml")
	cfg := fmt.Sprintf("database: %s\nregistry: %s\nbatch_size: 2\nlog_level: warn\n",
		filepath.Join(dir, "records.db"), mustAbs(t, registryPath))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	out, err := run(t, "--config", cfgPath, "query", countVMs)
	require.NoError(t, err, out)
	assert.Contains(t, out, `{"count":0}`)

	require.NoError(t, os.WriteFile(cfgPath, []byte("batch_size: -1\n"), 0644))
	out, err = run(t, "--config", cfgPath, "query", countVMs)
	require.Error(t, err)
	assert.Contains(t, out, "Error ["+ErrCodeConfig+"]")
}

func mustAbs(t *testing.T, path string) string {
	t.Helper()
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

func TestCheck_Golden(t *testing.T) {
	out, err := run(t, "check", registryPath)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "check_registry", []byte(out))
}

func TestCheck_Malformed(t *testing.T) {
	out, err := run(t, "check", filepath.Join("testdata", "malformed.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ QUERY vm-info WHERE")
	assert.Contains(t, out, "expected quoted key")
	assert.Contains(t, out, "✓ QUERY-COUNT vm-info")

	out, err = run(t, "--format", "json", "check", filepath.Join("testdata", "malformed.cue"))
	require.Error(t, err)
	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Descriptors, 2)
	assert.Equal(t, ErrCodeParse, resp.Error.Code)
}

func TestCheck_MissingRegistry(t *testing.T) {
	out, err := run(t, "check", filepath.Join(t.TempDir(), "none.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "registry not found")
}

func TestExplain_Golden(t *testing.T) {
	out, err := run(t, "explain", "QUERY vm-info WHERE 'agentId' = ?s SORT 'startTime' DSC LIMIT 5", "-p", "s:a-1")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "explain_query", []byte(out))
}

func TestExplain_Unbound(t *testing.T) {
	out, err := run(t, "explain", killVM)
	require.NoError(t, err)
	assert.Contains(t, out, "verb:       UPDATE")
	assert.Contains(t, out, "params:     boolean, string")
	assert.NotContains(t, out, "sql:")
}

func TestExplain_WritesJSON(t *testing.T) {
	out, err := run(t, "--format", "json", "explain", removeVMs, "-p", "s[:vm-1,vm-2")
	require.NoError(t, err)

	var resp struct {
		Data ExplainResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Bound)
	assert.Equal(t, `'vmId' IN ["vm-1", "vm-2"]`, resp.Data.Where)
	assert.Equal(t, "DELETE FROM records WHERE category = ? AND IFNULL(json_extract(doc, ?) IN (?, ?), 0)", resp.Data.SQL)
}

func TestExplain_Errors(t *testing.T) {
	_, err := run(t, "explain", "QUERY vm-info WHERE")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = run(t, "explain", killVM, "-p", "b:true")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, "explain", killVM, "-p", "s:x", "-p", "s:vm-1")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	stderr := &bytes.Buffer{}
	cmd.SetErr(stderr)
	cmd.SetArgs(withFlags([]string{"serve", "--listen", "127.0.0.1:0"}, local(t)...))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, stderr.String(), "endpoint stopped")
}

func TestServe_BadRegistry(t *testing.T) {
	out, err := run(t, "serve", "--listen", "127.0.0.1:0",
		"--db", filepath.Join(t.TempDir(), "records.db"),
		"--registry", filepath.Join(t.TempDir(), "none.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeRegistry+"]")
}
