// Package justfile holds the post-loader module tree and the post-analysis
// justfile data model (spec.md §3 "Module", "Justfile").
package justfile

import "github.com/mtlynch/gojust/internal/lang/ast"

// Module is one justfile source file with its imports already spliced into
// Items (import is a textual merge) and its `mod` declarations resolved into
// Submodules (a mod is a separate namespace, addressed with `::`).
type Module struct {
	Path           string // absolute path to the file this module was parsed from
	Dir            string // directory containing Path, imports/workdir resolve against this
	Items          []ast.Item
	Submodules     map[string]*Module
	SubmoduleOrder []string // insertion order, so listings stay source-ordered
}

// NewModule creates an empty Module rooted at dir/path.
func NewModule(path, dir string) *Module {
	return &Module{
		Path:       path,
		Dir:        dir,
		Submodules: make(map[string]*Module),
	}
}

// AddSubmodule registers child under name, preserving declaration order.
func (m *Module) AddSubmodule(name string, child *Module) {
	if _, exists := m.Submodules[name]; !exists {
		m.SubmoduleOrder = append(m.SubmoduleOrder, name)
	}
	m.Submodules[name] = child
}
