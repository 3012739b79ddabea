// Package loader implements vm.Importer: `import "path"` delegates to the
// host (spec.md §6), which resolves a module search path, compiles and
// runs the file at most once, and caches the result by resolved path.
// Circular imports are detected and raised as a runtime error.
//
// Grounded on internal/module/module.go's ModuleLoader: the same
// search-path/cache/findModule shape, retargeted onto this CORE's own
// lexer/parser/compiler/vm pipeline instead of the donor's stack VM.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"quill/internal/compiler"
	"quill/internal/lexer"
	"quill/internal/natives"
	"quill/internal/parser"
	"quill/internal/vm"
)

// ext is this language's script file extension.
const ext = ".ql"

// Loader resolves, compiles, runs, and caches imported modules.
type Loader struct {
	searchPath []string
	natives    *natives.Registry

	mu      sync.Mutex
	cache   map[string]vm.Value
	loading map[string]bool
}

// New returns a Loader searching searchPath, in order, for `import` targets
// not resolvable as a direct file path; reg supplies every imported
// module's native table.
func New(searchPath []string, reg *natives.Registry) *Loader {
	return &Loader{
		searchPath: searchPath,
		natives:    reg,
		cache:      make(map[string]vm.Value),
		loading:    make(map[string]bool),
	}
}

// Import implements vm.Importer.
func (l *Loader) Import(path string) (vm.Value, error) {
	abs, err := l.find(path)
	if err != nil {
		return vm.Value{}, err
	}

	l.mu.Lock()
	if v, ok := l.cache[abs]; ok {
		l.mu.Unlock()
		return v, nil
	}
	if l.loading[abs] {
		l.mu.Unlock()
		return vm.Value{}, fmt.Errorf("quill: circular import of %q", path)
	}
	l.loading[abs] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.loading, abs)
		l.mu.Unlock()
	}()

	result, err := l.compileAndRun(abs)
	if err != nil {
		return vm.Value{}, err
	}

	l.mu.Lock()
	l.cache[abs] = result
	l.mu.Unlock()
	return result, nil
}

func (l *Loader) compileAndRun(abs string) (vm.Value, error) {
	source, err := os.ReadFile(abs)
	if err != nil {
		return vm.Value{}, fmt.Errorf("quill: reading module %s: %w", abs, err)
	}
	toks, err := lexer.Scan(string(source))
	if err != nil {
		return vm.Value{}, err
	}
	p := parser.New(toks)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return vm.Value{}, errs[0]
	}
	mod, err := compiler.Compile(abs, string(source), prog, l.natives.Names())
	if err != nil {
		return vm.Value{}, err
	}
	sub := vm.New(mod, l.natives.Map(), l)
	return sub.Run()
}

// find mirrors internal/module/module.go's findModule: a direct path with
// the language's extension is used as-is, otherwise every search-path
// entry is tried as `<dir>/<name>.ql`, `<dir>/<name>/index.ql`, and a
// nested `<dir>/<a>/<b>.ql` split on "/".
func (l *Loader) find(name string) (string, error) {
	if strings.HasSuffix(name, ext) {
		if fileExists(name) {
			return filepath.Abs(name)
		}
		return "", fmt.Errorf("quill: module file not found: %s", name)
	}
	for _, dir := range l.searchPath {
		if p := filepath.Join(dir, name+ext); fileExists(p) {
			return filepath.Abs(p)
		}
		if p := filepath.Join(dir, name, "index"+ext); fileExists(p) {
			return filepath.Abs(p)
		}
		parts := strings.Split(name, "/")
		if p := filepath.Join(dir, filepath.Join(parts...)+ext); fileExists(p) {
			return filepath.Abs(p)
		}
	}
	return "", fmt.Errorf("quill: module not found: %s", name)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
