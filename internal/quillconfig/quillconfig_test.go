package quillconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	content := "import_path:\n  - ./lib\n  - ./vendor\ndebug: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quill.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"./lib", "./vendor"}, cfg.ImportPath)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quill.yaml"), []byte(":::not yaml"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
