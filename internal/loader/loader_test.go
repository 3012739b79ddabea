package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/natives"
)

func writeScript(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func TestImportResolvesAndCaches(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "greeting.ql", `"hello"`)

	l := New([]string{dir}, natives.New())
	v1, err := l.Import("greeting")
	require.NoError(t, err)
	require.True(t, v1.IsStr())
	assert.Equal(t, "hello", v1.Str())

	v2, err := l.Import("greeting")
	require.NoError(t, err)
	assert.Equal(t, v1, v2, "a second import of the same module returns the cached result")
}

func TestImportResolvesIndexFile(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeScript(t, sub, "index.ql", `42`)

	l := New([]string{dir}, natives.New())
	v, err := l.Import("pkg")
	require.NoError(t, err)
	require.True(t, v.IsInt())
	assert.Equal(t, int64(42), v.Int64())
}

func TestImportMissingModuleErrors(t *testing.T) {
	l := New([]string{t.TempDir()}, natives.New())
	_, err := l.Import("does_not_exist")
	assert.Error(t, err)
}

func TestImportDetectsCircularImport(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.ql", `import "b"`)
	writeScript(t, dir, "b.ql", `import "a"`)

	l := New([]string{dir}, natives.New())
	_, err := l.Import("a")
	assert.Error(t, err)
}
