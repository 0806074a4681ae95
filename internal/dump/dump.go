// Package dump serializes a resolved *justfile.Justfile into the stable
// JSON object shape spec.md §6.5 names for `--dump --dump-format json`:
// first recipe, aliases, assignments, recipes (with their interpolated
// body as a fragment tree), nested modules, settings, and warnings.
//
// New code: encoding/json is the only encoder available anywhere in the
// pack's domain stacks (justified stdlib use — see DESIGN.md), but key
// order is made deterministic by an insertion-ordered map wrapper
// (ordered.go), following the teacher's own discipline of ordered slices
// over unordered maps in ast.go.
package dump

import (
	"strings"

	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/justfile"
)

// Dump builds the §6.5 JSON shape for jf, recursing into jf.Submodules.
func Dump(jf *justfile.Justfile) *orderedMap {
	root := newOrderedMap()

	if jf.DefaultRecipe != nil {
		root.set("first", jf.DefaultRecipe.Name)
	} else {
		root.set("first", nil)
	}

	aliases := newOrderedMap()
	for _, name := range jf.AliasOrder {
		a := jf.Aliases[name]
		entry := newOrderedMap()
		entry.set("name", a.Name)
		entry.set("target", a.Target)
		aliases.set(name, entry)
	}
	root.set("aliases", aliases)

	assignments := newOrderedMap()
	for _, name := range jf.AssignmentOrder {
		asn := jf.Assignments[name]
		entry := newOrderedMap()
		entry.set("name", asn.Name)
		entry.set("value", exprToJSON(asn.Value))
		entry.set("export", asn.Exported)
		entry.set("private", isPrivateName(asn.Name))
		assignments.set(name, entry)
	}
	root.set("assignments", assignments)

	recipes := newOrderedMap()
	for _, name := range jf.RecipeOrder {
		recipes.set(name, recipeToJSON(jf.Recipes[name]))
	}
	root.set("recipes", recipes)

	modules := newOrderedMap()
	for _, name := range jf.SubmoduleOrder {
		modules.set(name, Dump(jf.Submodules[name]))
	}
	root.set("modules", modules)

	root.set("settings", settingsToJSON(jf.Settings))
	root.set("warnings", jf.Warnings)

	return root
}

func recipeToJSON(r *ast.Recipe) *orderedMap {
	entry := newOrderedMap()
	entry.set("name", r.Name)
	entry.set("parameters", parametersToJSON(r.Parameters))
	entry.set("dependencies", dependenciesToJSON(r.Deps, false))
	entry.set("priors", dependenciesToJSON(r.Deps, true))
	entry.set("subsequents", plainDependenciesToJSON(r.Subsequents))
	entry.set("body", bodyToJSON(r.Body))
	entry.set("doc", docFor(r))
	entry.set("private", isPrivateName(r.Name) || hasAttr(r, "private"))
	entry.set("quiet", r.Quiet)
	entry.set("shebang", isShebang(r))
	entry.set("attributes", attributesToJSON(r.Attributes))
	return entry
}

func parametersToJSON(params []ast.Parameter) []*orderedMap {
	out := make([]*orderedMap, 0, len(params))
	for _, p := range params {
		entry := newOrderedMap()
		entry.set("name", p.Name)
		entry.set("kind", parameterKind(p))
		if p.Default != nil {
			entry.set("default", exprToJSON(p.Default))
		} else {
			entry.set("default", nil)
		}
		entry.set("export", false)
		out = append(out, entry)
	}
	return out
}

func parameterKind(p ast.Parameter) string {
	if !p.Variadic {
		return "singular"
	}
	if p.AtLeastOne {
		return "plus"
	}
	return "star"
}

// dependenciesToJSON splits recipe.Deps into the "run before the body"
// group (priors=false) or the `||`-marked recovery group (priors=true, run
// only after the recipe's own body fails).
func dependenciesToJSON(deps []ast.Dependency, recovery bool) []*orderedMap {
	var out []*orderedMap
	for _, d := range deps {
		if d.Recovery != recovery {
			continue
		}
		out = append(out, dependencyToJSON(d))
	}
	return out
}

// plainDependenciesToJSON renders recipe.Subsequents (the `&&`-introduced
// list, run only after the body succeeds); none of its entries carry the
// Recovery flag.
func plainDependenciesToJSON(deps []ast.Dependency) []*orderedMap {
	out := make([]*orderedMap, 0, len(deps))
	for _, d := range deps {
		out = append(out, dependencyToJSON(d))
	}
	return out
}

func dependencyToJSON(d ast.Dependency) *orderedMap {
	entry := newOrderedMap()
	entry.set("recipe", d.Recipe)
	args := make([]any, 0, len(d.Args))
	for _, a := range d.Args {
		args = append(args, exprToJSON(a))
	}
	entry.set("arguments", args)
	return entry
}

func bodyToJSON(lines []ast.BodyLine) [][]any {
	out := make([][]any, 0, len(lines))
	for _, line := range lines {
		out = append(out, fragmentsToJSON(line.Fragments))
	}
	return out
}

func fragmentsToJSON(fragments []ast.BodyFragment) []any {
	out := make([]any, 0, len(fragments))
	for _, f := range fragments {
		if f.Expr == nil {
			out = append(out, f.Text)
			continue
		}
		out = append(out, []any{"interpolation", exprToJSON(f.Expr)})
	}
	return out
}

func attributesToJSON(attrs []ast.Attribute) []*orderedMap {
	out := make([]*orderedMap, 0, len(attrs))
	for _, a := range attrs {
		entry := newOrderedMap()
		entry.set("name", a.Name)
		entry.set("arguments", a.Args)
		out = append(out, entry)
	}
	return out
}

func settingsToJSON(s justfile.Settings) *orderedMap {
	entry := newOrderedMap()
	entry.set("allow-duplicate-recipes", s.AllowDuplicateRecipes)
	entry.set("allow-duplicate-variables", s.AllowDuplicateVariables)
	entry.set("dotenv-filename", s.DotenvFilename)
	entry.set("dotenv-load", s.DotenvLoad)
	entry.set("dotenv-path", s.DotenvPath)
	entry.set("dotenv-required", s.DotenvRequired)
	entry.set("export", s.Export)
	entry.set("fallback", s.Fallback)
	entry.set("ignore-comments", s.IgnoreComments)
	entry.set("no-cd", s.NoCD)
	entry.set("positional-arguments", s.PositionalArguments)
	entry.set("quiet", s.Quiet)
	entry.set("shell", s.Shell)
	entry.set("script-interpreter", s.ScriptInterpreter)
	entry.set("tempdir", s.Tempdir)
	entry.set("unstable", s.Unstable)
	entry.set("windows-shell", s.WindowsShell)
	entry.set("windows-powershell", s.WindowsPowerShell)
	entry.set("working-directory", s.WorkingDirectory)
	entry.set("workdir", s.Workdir)
	return entry
}

// exprToJSON serializes an expression tree as a tagged map, so ParenExpr's
// grouping round-trips instead of being silently flattened away (ast.go's
// ParenExpr doc comment: "kept distinct so the printer and --dump
// serializer can round-trip grouping").
func exprToJSON(expr ast.Expression) any {
	if expr == nil {
		return nil
	}
	switch e := expr.(type) {
	case *ast.StringLiteral:
		m := tagged("string")
		m.set("value", e.Value)
		m.set("raw", e.Raw)
		return m
	case *ast.FormatString:
		m := tagged("fstring")
		m.set("fragments", fragmentsToJSON(e.Fragments))
		return m
	case *ast.ShellString:
		m := tagged("shellstring")
		m.set("value", e.Value)
		m.set("raw", e.Raw)
		return m
	case *ast.Identifier:
		m := tagged("identifier")
		m.set("name", e.Name)
		return m
	case *ast.Call:
		args := make([]any, 0, len(e.Arguments))
		for _, a := range e.Arguments {
			args = append(args, exprToJSON(a))
		}
		m := tagged("call")
		m.set("function", e.Function)
		m.set("arguments", args)
		return m
	case *ast.Backtick:
		m := tagged("backtick")
		m.set("script", e.Script)
		return m
	case *ast.Concatenation:
		m := tagged("concat")
		m.set("left", exprToJSON(e.Left))
		m.set("right", exprToJSON(e.Right))
		return m
	case *ast.BinaryExpr:
		m := tagged("binary")
		m.set("op", string(e.Op))
		m.set("left", exprToJSON(e.Left))
		m.set("right", exprToJSON(e.Right))
		return m
	case *ast.UnaryExpr:
		m := tagged("unary")
		m.set("op", string(e.Op))
		m.set("operand", exprToJSON(e.Operand))
		return m
	case *ast.Conditional:
		m := tagged("conditional")
		m.set("op", string(e.Op))
		m.set("left", exprToJSON(e.Left))
		m.set("right", exprToJSON(e.Right))
		m.set("then", exprToJSON(e.Then))
		m.set("otherwise", exprToJSON(e.Otherwise))
		return m
	case *ast.Match:
		arms := make([]*orderedMap, 0, len(e.Arms))
		for _, arm := range e.Arms {
			armEntry := newOrderedMap()
			armEntry.set("pattern", exprToJSON(arm.Pattern))
			armEntry.set("wildcard", arm.Wildcard)
			armEntry.set("value", exprToJSON(arm.Value))
			arms = append(arms, armEntry)
		}
		m := tagged("match")
		m.set("subject", exprToJSON(e.Subject))
		m.set("arms", arms)
		return m
	case *ast.ArrayLiteral:
		elems := make([]any, 0, len(e.Elements))
		for _, el := range e.Elements {
			elems = append(elems, exprToJSON(el))
		}
		m := tagged("array")
		m.set("elements", elems)
		return m
	case *ast.ParenExpr:
		m := tagged("paren")
		m.set("inner", exprToJSON(e.Inner))
		return m
	default:
		m := tagged("unknown")
		m.set("literal", expr.TokenLiteral())
		return m
	}
}

func tagged(kind string) *orderedMap {
	m := newOrderedMap()
	m.set("kind", kind)
	return m
}

func isPrivateName(name string) bool {
	return strings.HasPrefix(name, "_")
}

func hasAttr(r *ast.Recipe, name string) bool {
	for _, a := range r.Attributes {
		if a.Name == name {
			return true
		}
	}
	return false
}

func docFor(r *ast.Recipe) any {
	for _, a := range r.Attributes {
		if a.Name == "doc" && len(a.Args) > 0 {
			return a.Args[0]
		}
	}
	return nil
}

func isShebang(r *ast.Recipe) bool {
	if len(r.Body) == 0 || len(r.Body[0].Fragments) == 0 {
		return false
	}
	first := r.Body[0].Fragments[0]
	return first.Expr == nil && strings.HasPrefix(strings.TrimSpace(first.Text), "#!")
}
