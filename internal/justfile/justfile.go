package justfile

import (
	"fmt"

	"github.com/mtlynch/gojust/internal/lang/ast"
)

// Settings is a module's resolved `set` directives (spec.md §6.3). Each
// field defaults to its spec-mandated zero value when the setting is absent.
type Settings struct {
	AllowDuplicateRecipes   bool
	AllowDuplicateVariables bool
	DotenvFilename          string
	DotenvLoad              bool
	DotenvPath              string
	DotenvRequired          bool
	Export                  bool
	Fallback                bool
	IgnoreComments          bool
	NoCD                    bool
	PositionalArguments     bool
	Quiet                   bool
	Shell                   []string
	ScriptInterpreter       []string
	Tempdir                 string
	Unstable                bool
	WindowsShell            []string
	WindowsPowerShell       bool
	WorkingDirectory        string
	Workdir                 string
}

// DefaultShell is used when no `shell` setting overrides it.
var DefaultShell = []string{"sh", "-cu"}

// Justfile is the post-analysis data model for one module (spec.md §3
// "Justfile"): name tables built from a *Module's items, with duplicates
// resolved and aliases/dependencies/defaults computed.
type Justfile struct {
	ModulePath string

	Recipes     map[string]*ast.Recipe
	RecipeOrder []string

	Aliases     map[string]*ast.Alias
	AliasOrder  []string

	Assignments     map[string]*ast.Assignment
	AssignmentOrder []string

	Settings Settings

	DefaultRecipe *ast.Recipe

	Unexports []string // names removed from the runner's environment overlay

	Submodules     map[string]*Justfile
	SubmoduleOrder []string

	Warnings []string
}

// New creates an empty Justfile for modulePath.
func New(modulePath string) *Justfile {
	return &Justfile{
		ModulePath:  modulePath,
		Recipes:     make(map[string]*ast.Recipe),
		Aliases:     make(map[string]*ast.Alias),
		Assignments: make(map[string]*ast.Assignment),
		Submodules:  make(map[string]*Justfile),
	}
}

// Warn records a non-fatal warning (spec.md §4.3's "list of non-fatal
// warnings" contract item).
func (j *Justfile) Warn(format string, args ...any) {
	j.Warnings = append(j.Warnings, fmt.Sprintf(format, args...))
}
