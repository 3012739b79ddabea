// Package quillconfig loads the optional quill.yaml sitting next to a
// script: the module search path import uses, and a debug flag that
// cmd/quill does not read. Absence of the file is not an error —
// defaults apply (ADDED component, no direct teacher equivalent; gives
// gopkg.in/yaml.v3, an indirect dependency of the pack already, a direct
// import site).
package quillconfig

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is quill.yaml's shape.
type Config struct {
	// ImportPath lists directories searched, in order, for `import "name"`
	// (spec.md §6) after the script's own directory.
	ImportPath []string `yaml:"import_path"`
	// Debug is parsed but not read by cmd/quill: the debug:* CLI
	// subcommands (dump/tokens/write/read) are registered whatever its value.
	Debug bool `yaml:"debug"`
}

// Default returns the config used when no quill.yaml is found.
func Default() *Config {
	return &Config{}
}

// Load reads quill.yaml from dir, returning Default() if the file does not
// exist. Any other read or parse error is returned.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "quill.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
