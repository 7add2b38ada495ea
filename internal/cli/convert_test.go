package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryohey/warp/internal/ir"
)

func TestConvertToStdout(t *testing.T) {
	out, err := execute(t, "convert", cubeV1)
	require.NoError(t, err)

	tree, err := ir.UnmarshalTree([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "100100", tree.StableID)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "100200", tree.Children[0].StableID)
}

func TestConvertToFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "build", "Cube.json")

	out, err := execute(t, "convert", cubeV1, "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Converted")
	assert.Contains(t, out, "2 node(s), 4 facet(s)")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	tree, err := ir.UnmarshalTree(data)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.CountNodes())

	// The written tree converts back to itself.
	out, err = execute(t, "convert", dest)
	require.NoError(t, err)
	again, err := ir.UnmarshalTree([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, ir.MustTreeFingerprint(tree), ir.MustTreeFingerprint(again))
}

func TestConvertJSON(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "Cube.json")

	out, err := execute(t, "--format", "json", "convert", cubeV1, "-o", dest)
	require.NoError(t, err)

	var res ConvertResult
	resp := decodeResponse(t, out, &res)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, dest, res.Output)
	assert.Equal(t, 2, res.Nodes)
	assert.Equal(t, 4, res.Facets)
	assert.NotEmpty(t, res.TreeHash)
	assert.Nil(t, res.Bundle)
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing file", []string{"convert", filepath.Join("testdata", "nope.prefab")}, ErrCodeNotFound},
		{"bundle without project", []string{"convert", cubeV1, "-o", "x.json", "--bundle-out", "assets"}, ErrCodeBundle},
		{"watch without output", []string{"convert", cubeV1, "--watch"}, ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestConvertMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.prefab")
	require.NoError(t, os.WriteFile(path, []byte("--- !u!4 &4\nTransform:\n  m_Father: {fileID: 0}\n"), 0o644))

	out, err := execute(t, "--format", "json", "convert", path)
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Contains(t, []string{ErrCodeParse, ErrCodeTree}, resp.Error.Code)
}
