// Package loader resolves a root justfile and, transitively, every `import`
// and `mod` it references into a *justfile.Module tree.
//
// Grounded on internal/compiler/resolver/resolver.go: an absolute-path-keyed
// parse cache (so the same file imported twice produces one logical
// inclusion) and a `loading` in-flight set, cleared with `defer delete`, to
// detect import cycles before they recurse forever.
package loader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/lang/lexer"
	"github.com/mtlynch/gojust/internal/lang/parser"
	"github.com/mtlynch/gojust/internal/lang/token"
	"github.com/mtlynch/gojust/internal/langerr"
	"github.com/mtlynch/gojust/internal/justfile"
)

// Loader loads a root justfile and its transitive imports/mods.
type Loader struct {
	parsed  map[string]*ast.File // cache: absolute path -> parsed file
	loading map[string]bool      // in-flight import set, for cycle detection
	errors  langerr.List
}

// New creates an empty Loader.
func New() *Loader {
	return &Loader{
		parsed:  make(map[string]*ast.File),
		loading: make(map[string]bool),
	}
}

// Errors returns every error accumulated while loading.
func (l *Loader) Errors() *langerr.List { return &l.errors }

// LoadRoot reads, lexes, and parses path, then recursively resolves its
// imports (merged into the returned Module's Items) and mods (resolved into
// Submodules).
func (l *Loader) LoadRoot(path string) *justfile.Module {
	absPath, err := filepath.Abs(path)
	if err != nil {
		l.errors.Add(langerr.NewLoadError(token.Position{}, path, "resolving root path: %v", err))
		return nil
	}

	file, err := l.loadFile(absPath)
	if err != nil {
		l.errors.Add(langerr.NewLoadError(token.Position{}, path, "%v", err))
		return nil
	}

	dir := filepath.Dir(absPath)
	mod := justfile.NewModule(absPath, dir)
	l.resolveItems(file, dir, mod)
	return mod
}

func (l *Loader) loadFile(absPath string) (*ast.File, error) {
	if cached, ok := l.parsed[absPath]; ok {
		return cached, nil
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	lx := lexer.New(string(data), absPath)
	p := parser.New(lx, absPath)
	file := p.ParseFile()
	if p.Errors().HasErrors() {
		for _, e := range p.Errors().Errors {
			l.errors.Add(e)
		}
	}

	l.parsed[absPath] = file
	return file, nil
}

// resolveItems walks file's items, splicing import targets' items directly
// into mod.Items (import is a textual merge within the same namespace) and
// recursively loading `mod` declarations into mod.Submodules. Any other item
// is copied through unchanged.
func (l *Loader) resolveItems(file *ast.File, dir string, mod *justfile.Module) {
	for _, item := range file.Items {
		switch it := item.(type) {
		case *ast.Import:
			l.resolveImport(it, dir, mod)
		case *ast.Mod:
			l.resolveMod(it, dir, mod)
		default:
			mod.Items = append(mod.Items, item)
		}
	}
}

func (l *Loader) resolveImport(imp *ast.Import, dir string, mod *justfile.Module) {
	pattern := expandHome(imp.Path)
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(dir, pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		l.errors.Add(langerr.NewLoadError(imp.Pos, imp.Path, "invalid import pattern: %v", err))
		return
	}
	if len(matches) == 0 {
		if !strings.ContainsAny(imp.Path, "*?[") {
			matches = []string{pattern}
		}
	}

	sort.Strings(matches)
	any := false
	for _, m := range matches {
		if l.importOne(m, imp, mod) {
			any = true
		}
	}
	if !any && !imp.Optional {
		l.errors.Add(langerr.NewLoadError(imp.Pos, imp.Path, "import matched no files: %s", imp.Path))
	}
}

func (l *Loader) importOne(absPath string, imp *ast.Import, mod *justfile.Module) bool {
	if l.loading[absPath] {
		l.errors.Add(langerr.NewLoadError(imp.Pos, imp.Path, "circular import detected at %s", absPath))
		return false
	}

	file, err := l.statAndLoad(absPath)
	if err != nil {
		if !imp.Optional {
			l.errors.Add(langerr.NewLoadError(imp.Pos, imp.Path, "%v", err))
		}
		return false
	}

	l.loading[absPath] = true
	defer delete(l.loading, absPath)

	l.resolveItems(file, filepath.Dir(absPath), mod)
	return true
}

func (l *Loader) statAndLoad(absPath string) (*ast.File, error) {
	if _, err := os.Stat(absPath); err != nil {
		return nil, err
	}
	return l.loadFile(absPath)
}

// resolveMod resolves `mod name` / `mod name "path"` to one of the three
// candidate locations (spec.md §4.2's Loader contract): name.just,
// name/mod.just, or name/justfile as a fallback. An explicit path skips
// candidate search entirely.
func (l *Loader) resolveMod(m *ast.Mod, dir string, parentMod *justfile.Module) {
	var candidates []string
	if m.Path != "" {
		candidates = []string{expandHome(m.Path)}
	} else {
		candidates = []string{
			m.Name + ".just",
			filepath.Join(m.Name, "mod.just"),
			filepath.Join(m.Name, "justfile"),
		}
	}

	var found []string
	for _, c := range candidates {
		p := c
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}

	if len(found) == 0 {
		if !m.Optional {
			l.errors.Add(langerr.NewLoadError(m.Pos, m.Name, "module %q not found: tried %v", m.Name, candidates))
		}
		return
	}
	if len(found) > 1 {
		l.errors.Add(langerr.NewLoadError(m.Pos, m.Name, "ambiguous module %q: matches %v", m.Name, found))
		return
	}

	absPath, _ := filepath.Abs(found[0])
	if l.loading[absPath] {
		l.errors.Add(langerr.NewLoadError(m.Pos, m.Name, "circular mod reference at %s", absPath))
		return
	}

	file, err := l.loadFile(absPath)
	if err != nil {
		l.errors.Add(langerr.NewLoadError(m.Pos, m.Name, "%v", err))
		return
	}

	l.loading[absPath] = true
	defer delete(l.loading, absPath)

	childDir := filepath.Dir(absPath)
	child := justfile.NewModule(absPath, childDir)
	l.resolveItems(file, childDir, child)
	parentMod.AddSubmodule(m.Name, child)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
