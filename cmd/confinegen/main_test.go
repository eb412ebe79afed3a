package main

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGoMod = "module example.com/shop\n\ngo 1.24\n\nrequire github.com/kolkov/confinement v0.1.0\n"

const testSource = `package shop

//confine:entity
type Item struct{}

func (i *Item) Title() string { return "" }
`

func writeModule(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte(testGoMod), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "shop", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shop", "item.go"), []byte(testSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shop", "sub", "doc.go"), []byte("package sub\n"), 0o644))
	return root
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestGenerate_DryRun(t *testing.T) {
	root := writeModule(t)
	t.Chdir(root)

	out, _, err := execute(t, "generate", "-n", "shop/item.go")
	require.NoError(t, err)
	assert.Contains(t, out, "// ==> shop/item_confine.go")
	assert.Contains(t, out, `var ItemClass = confine.NewClass("Item", nil,`)

	_, statErr := os.Stat(filepath.Join(root, "shop", "item_confine.go"))
	assert.True(t, os.IsNotExist(statErr), "dry run must not write")
}

func TestGenerate_Write(t *testing.T) {
	root := writeModule(t)
	t.Chdir(root)

	out, stderr, err := execute(t, "generate", "./...")
	require.NoError(t, err)
	assert.Equal(t, "shop/item_confine.go\n", out)
	assert.Empty(t, stderr)

	code, err := os.ReadFile(filepath.Join(root, "shop", "item_confine.go"))
	require.NoError(t, err)
	assert.Contains(t, string(code), "func WrapItem(e *Item) ItemAPI {")
}

func TestGenerate_NothingFound(t *testing.T) {
	root := writeModule(t)
	t.Chdir(root)

	out, stderr, err := execute(t, "generate", "shop/sub")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "no //confine:entity types found")
}

func TestGenerate_BadConfig(t *testing.T) {
	root := writeModule(t)
	t.Chdir(root)
	require.NoError(t, os.WriteFile("confinegen.toml", []byte(`suffix = "x"`), 0o644))

	_, _, err := execute(t, "generate", "shop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid suffix "x"`)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "confinegen version 0.1.0\n", out)
}

func TestExpandArgs(t *testing.T) {
	root := writeModule(t)
	t.Chdir(root)
	require.NoError(t, os.MkdirAll("_skip", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("_skip", "x.go"), []byte("package x\n"), 0o644))

	got, err := expandArgs([]string{"./...", "other"})
	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, []string{"other", "shop", filepath.Join("shop", "sub")}, got)
}
