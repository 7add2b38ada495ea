package asset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAsset(t *testing.T, root, rel, guid, body string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	meta := "fileFormatVersion: 2\nguid: " + guid + "\nNativeFormatImporter:\n  mainObjectFileID: 2100000\n"
	require.NoError(t, os.WriteFile(path+".meta", []byte(meta), 0o644))
}

func TestIndexProject(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "Assets/Materials/Red.mat", "aaa", "red")
	writeAsset(t, root, "Assets/Meshes/Cube.fbx", "bbb", "cube")
	writeAsset(t, root, "Library/Cache/x.asset", "ccc", "cached")
	require.NoError(t, os.WriteFile(filepath.Join(root, "Assets", "Materials.meta"), []byte("guid: folder\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Assets", "Orphan.png.meta"), []byte("guid: orphan\n"), 0o644))

	index, err := IndexProject(root)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"aaa": filepath.Join(root, "Assets/Materials/Red.mat"),
		"bbb": filepath.Join(root, "Assets/Meshes/Cube.fbx"),
	}, index)
}

func TestBundle(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "bundle")
	writeAsset(t, root, "Assets/Red.mat", "aaa", "red")
	writeAsset(t, root, "Assets/Cube.fbx", "bbb", "cube")

	ids := []string{"aaa", "bbb", BuiltinDefaultResources, "zzz", BuiltinExtraResources}
	res, err := Bundle(context.Background(), ids, root, out, BundleOptions{Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"aaa", "bbb"}, res.Copied)
	assert.Equal(t, []string{BuiltinDefaultResources, BuiltinExtraResources}, res.Builtin)
	assert.Equal(t, []string{"zzz"}, res.Missing)

	data, err := os.ReadFile(filepath.Join(out, "aaa"))
	require.NoError(t, err)
	assert.Equal(t, "red", string(data))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestBundleServedByDirStore(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeAsset(t, root, "Assets/Red.mat", "aaa", "red")

	_, err := Bundle(context.Background(), []string{"aaa"}, root, out, BundleOptions{})
	require.NoError(t, err)

	got, err := NewDirStore(out).Resolve(context.Background(), "aaa", "Material")
	require.NoError(t, err)
	assert.Equal(t, sum("red"), got.Digest)
}

func TestBundleMissingProject(t *testing.T) {
	_, err := Bundle(context.Background(), nil, filepath.Join(t.TempDir(), "nope"), t.TempDir(), BundleOptions{})
	assert.ErrorContains(t, err, "index project")
}

func TestIsBuiltin(t *testing.T) {
	assert.True(t, IsBuiltin("0000000000000000f000000000000000"))
	assert.True(t, IsBuiltin("0000000000000000e000000000000000"))
	assert.False(t, IsBuiltin("abc"))
}
