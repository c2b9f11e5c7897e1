package descriptor

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/roach88/webstorage/internal/ir"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_CheckTrusted(t *testing.T) {
	reg := NewRegistryFromTexts([]string{"QUERY vm-info"}, WithLogger(discardLogger()))

	assert.NoError(t, reg.Check(ir.NewStatementDescriptor(vmInfo, "QUERY vm-info")))
	assert.True(t, reg.Contains("QUERY vm-info"))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_RejectsUntrustedAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	reg := NewRegistryFromTexts([]string{"QUERY vm-info"}, WithLogger(logger))

	desc := ir.NewStatementDescriptor(vmInfo, "QUERY vm-info WHERE 'a' = 1")
	for range 3 {
		err := reg.Check(desc)
		require.Error(t, err)
		assert.True(t, IsIllegalDescriptor(err))
		assert.False(t, IsParseError(err))
		assert.Contains(t, err.Error(), "QUERY vm-info WHERE 'a' = 1")
	}

	digest, err := ir.DescriptorDigest(desc)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "descriptor_digest="+digest)
	assert.Contains(t, out, `descriptor="QUERY vm-info WHERE 'a' = 1"`)
}

func TestRegistry_NFCEquivalence(t *testing.T) {
	// Registered in decomposed form, checked in precomposed form.
	reg := NewRegistryFromTexts([]string{"QUERY cafe\u0301"}, WithLogger(discardLogger()))
	assert.True(t, reg.Contains("QUERY caf\u00e9"))
}

func TestRegistry_CheckAndParseUsesNormalizedText(t *testing.T) {
	reg := NewRegistryFromTexts([]string{"QUERY vm-info WHERE 'caf\u00e9' = ?s"}, WithLogger(discardLogger()))

	decomposed := ir.NewStatementDescriptor(vmInfo, "QUERY vm-info WHERE 'cafe\u0301' = ?s")
	stmt, err := reg.CheckAndParse(decomposed)
	require.NoError(t, err)

	assert.Equal(t, "QUERY vm-info WHERE 'caf\u00e9' = ?s", stmt.Descriptor.Text)
	cmp, ok := stmt.Where.(Comparison)
	require.True(t, ok)
	assert.Equal(t, "caf\u00e9", cmp.Key)
}

func TestRegistry_NilTrustsNothing(t *testing.T) {
	var reg *Registry
	assert.False(t, reg.Contains("QUERY vm-info"))
	assert.Zero(t, reg.Len())
	assert.True(t, IsIllegalDescriptor(reg.Check(ir.NewStatementDescriptor(vmInfo, "QUERY vm-info"))))
}

func TestRegistry_CheckAndParse(t *testing.T) {
	reg := NewRegistryFromTexts([]string{
		"QUERY vm-info WHERE 'agentId' = ?s",
		"QUERY vm-info WHERE",
	}, WithLogger(discardLogger()))

	stmt, err := reg.CheckAndParse(ir.NewStatementDescriptor(vmInfo, "QUERY vm-info WHERE 'agentId' = ?s"))
	require.NoError(t, err)
	assert.Equal(t, 1, stmt.NumFreeVariables())

	// Trusted but malformed.
	_, err = reg.CheckAndParse(ir.NewStatementDescriptor(vmInfo, "QUERY vm-info WHERE"))
	assert.True(t, IsParseError(err))

	// Untrusted and malformed: trust is checked first.
	_, err = reg.CheckAndParse(ir.NewStatementDescriptor(vmInfo, "DROP vm-info"))
	assert.True(t, IsIllegalDescriptor(err))
}

func TestLoadRegistry_File(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("testdata", "registry.cue"), WithLogger(discardLogger()))
	require.NoError(t, err)

	assert.Equal(t, 4, reg.Len())
	assert.True(t, reg.Contains("QUERY-COUNT vm-info"))
	assert.True(t, reg.Contains("QUERY vm-info WHERE 'agentId' = ?s"))
	assert.Empty(t, reg.Verify())

	var described []Entry
	for _, e := range reg.Entries() {
		if e.Description != "" {
			described = append(described, e)
		}
	}
	require.Len(t, described, 1)
	assert.Equal(t, "VMs of one agent", described[0].Description)
}

func TestLoadRegistry_Directory(t *testing.T) {
	dir := t.TempDir()
	src := `
package registry

descriptors: ["QUERY agents", {text: "REMOVE agents WHERE 'agentId' = ?s"}]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.cue"), []byte(src), 0644))

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	assert.True(t, reg.Contains("REMOVE agents WHERE 'agentId' = ?s"))
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join("testdata", "missing.cue"))
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Contains(t, lerr.Message, "registry not found")

	_, err = LoadRegistry(filepath.Join("testdata", "wrong_type.cue"))
	require.ErrorAs(t, err, &lerr)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.cue"), []byte("other: 1\n"), 0644))
	_, err = LoadRegistry(filepath.Join(dir, "empty.cue"))
	require.ErrorAs(t, err, &lerr)
	assert.Contains(t, lerr.Message, "descriptors field is required")
}

func TestRegistry_Verify(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("testdata", "malformed.cue"), WithLogger(discardLogger()))
	require.NoError(t, err)

	errs := reg.Verify()
	require.Len(t, errs, 2)
	// Sorted by text: "QUERY ..." before "SELECT ...".
	assert.Contains(t, errs[0].Error(), "QUERY vm-info WHERE")
	assert.Contains(t, errs[1].Error(), "SELECT * FROM vm-info")
}
