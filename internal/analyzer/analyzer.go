// Package analyzer turns a loaded *justfile.Module tree into a resolved
// *justfile.Justfile: name tables, duplicate handling, dependency/alias
// resolution, two independent cycle checks, parameter-shadowing detection,
// and attribute-target validation (spec.md §4.3).
//
// Generalized from the teacher's internal/compiler/resolver.go duplicate
// handling (there: warn-and-skip on a second `model`/`service` with the same
// name; here: configurable last-definition-wins, gated by the
// allow-duplicate-recipes/allow-duplicate-variables settings).
package analyzer

import (
	"fmt"

	"github.com/mtlynch/gojust/internal/eval"
	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/lang/token"
	"github.com/mtlynch/gojust/internal/langerr"
	"github.com/mtlynch/gojust/internal/justfile"
)

// Analyzer walks a Module tree, producing a Justfile and accumulating errors.
type Analyzer struct {
	errors langerr.List
}

// New creates an Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Errors returns every error accumulated during analysis.
func (a *Analyzer) Errors() *langerr.List { return &a.errors }

// Analyze resolves mod into a *justfile.Justfile.
func (a *Analyzer) Analyze(mod *justfile.Module) *justfile.Justfile {
	jf := justfile.New(mod.Path)

	a.collectSettings(mod, jf)
	a.collectNames(mod, jf)
	a.resolveAliases(jf)
	a.resolveDependencies(jf)
	a.checkRecipeCycles(jf)
	a.checkAssignmentCycles(jf)
	a.checkParameterShadowing(jf)
	a.checkAttributes(jf)
	a.checkUnstableFeatures(jf)
	a.chooseDefaultRecipe(jf)

	for _, name := range mod.SubmoduleOrder {
		child := a.Analyze(mod.Submodules[name])
		jf.Submodules[name] = child
		jf.SubmoduleOrder = append(jf.SubmoduleOrder, name)
	}

	return jf
}

// collectNames builds the recipe/alias/assignment tables, applying
// last-definition-wins when the corresponding allow-duplicate-* setting is
// enabled, and reporting a ResolveError otherwise.
func (a *Analyzer) collectNames(mod *justfile.Module, jf *justfile.Justfile) {
	for _, item := range mod.Items {
		switch it := item.(type) {
		case *ast.Recipe:
			if _, exists := jf.Recipes[it.Name]; exists {
				if !jf.Settings.AllowDuplicateRecipes {
					a.errors.Add(langerr.NewResolveError(it.Pos, "DuplicateRecipe: recipe %q already defined", it.Name))
					continue
				}
			} else {
				jf.RecipeOrder = append(jf.RecipeOrder, it.Name)
			}
			jf.Recipes[it.Name] = it

		case *ast.Alias:
			if _, exists := jf.Aliases[it.Name]; exists {
				if !jf.Settings.AllowDuplicateRecipes {
					a.errors.Add(langerr.NewResolveError(it.Pos, "DuplicateAlias: alias %q already defined", it.Name))
					continue
				}
			} else {
				jf.AliasOrder = append(jf.AliasOrder, it.Name)
			}
			if _, isRecipe := jf.Recipes[it.Name]; isRecipe {
				a.errors.Add(langerr.NewResolveError(it.Pos, "AliasShadowsRecipe: alias %q has the same name as a recipe", it.Name))
			}
			jf.Aliases[it.Name] = it

		case *ast.Assignment:
			if _, exists := jf.Assignments[it.Name]; exists {
				if !jf.Settings.AllowDuplicateVariables {
					a.errors.Add(langerr.NewResolveError(it.Pos, "DuplicateVariable: variable %q already defined", it.Name))
					continue
				}
			} else {
				jf.AssignmentOrder = append(jf.AssignmentOrder, it.Name)
			}
			jf.Assignments[it.Name] = it

		case *ast.Unexport:
			jf.Unexports = append(jf.Unexports, it.Name)

		case *ast.Setting:
			// already consumed in collectSettings
		}
	}
}

// collectSettings evaluates `set` items as constants (spec.md §6.3: "All
// list/string settings accept any constant expression ... evaluated at load
// time", explicitly excluding backticks and function calls).
func (a *Analyzer) collectSettings(mod *justfile.Module, jf *justfile.Justfile) {
	jf.Settings.Shell = justfile.DefaultShell

	for _, item := range mod.Items {
		s, ok := item.(*ast.Setting)
		if !ok {
			continue
		}
		a.applySetting(s, jf)
	}
}

func (a *Analyzer) applySetting(s *ast.Setting, jf *justfile.Justfile) {
	boolValue := func() bool {
		if s.Value == nil {
			return true
		}
		v, err := evalConstantBool(s.Value)
		if err != nil {
			a.errors.Add(langerr.NewResolveError(s.Pos, "setting %q: %v", s.Name, err))
		}
		return v
	}
	stringValue := func() string {
		v, err := evalConstantString(s.Value)
		if err != nil {
			a.errors.Add(langerr.NewResolveError(s.Pos, "setting %q: %v", s.Name, err))
		}
		return v
	}
	listValue := func() []string {
		v, err := evalConstantList(s.Value)
		if err != nil {
			a.errors.Add(langerr.NewResolveError(s.Pos, "setting %q: %v", s.Name, err))
		}
		return v
	}

	switch s.Name {
	case "allow-duplicate-recipes":
		jf.Settings.AllowDuplicateRecipes = boolValue()
	case "allow-duplicate-variables":
		jf.Settings.AllowDuplicateVariables = boolValue()
	case "dotenv-filename":
		jf.Settings.DotenvFilename = stringValue()
	case "dotenv-load":
		jf.Settings.DotenvLoad = boolValue()
	case "dotenv-path":
		jf.Settings.DotenvPath = stringValue()
	case "dotenv-required":
		jf.Settings.DotenvRequired = boolValue()
	case "export":
		jf.Settings.Export = boolValue()
	case "fallback":
		jf.Settings.Fallback = boolValue()
	case "ignore-comments":
		jf.Settings.IgnoreComments = boolValue()
	case "no-cd":
		jf.Settings.NoCD = boolValue()
	case "positional-arguments":
		jf.Settings.PositionalArguments = boolValue()
	case "quiet":
		jf.Settings.Quiet = boolValue()
	case "shell":
		jf.Settings.Shell = listValue()
	case "script-interpreter":
		jf.Settings.ScriptInterpreter = listValue()
	case "tempdir":
		jf.Settings.Tempdir = stringValue()
	case "unstable":
		jf.Settings.Unstable = boolValue()
	case "windows-shell":
		jf.Settings.WindowsShell = listValue()
	case "windows-powershell":
		jf.Settings.WindowsPowerShell = boolValue()
	case "working-directory":
		jf.Settings.WorkingDirectory = stringValue()
	case "workdir":
		jf.Settings.Workdir = stringValue()
	default:
		a.errors.Add(langerr.NewResolveError(s.Pos, "UnknownSetting: %q", s.Name))
	}
}

func (a *Analyzer) resolveAliases(jf *justfile.Justfile) {
	for _, name := range jf.AliasOrder {
		alias := jf.Aliases[name]
		if _, ok := jf.Recipes[alias.Target]; !ok {
			a.errors.Add(langerr.NewResolveError(alias.Pos, "UnknownAliasTarget: alias %q targets unknown recipe %q", alias.Name, alias.Target))
		}
	}
}

// resolveDependencies checks every dependency and subsequent references a
// known recipe with an argument count within [min_required, max_accepted]
// (spec.md §4.3 step 3).
func (a *Analyzer) resolveDependencies(jf *justfile.Justfile) {
	for _, name := range jf.RecipeOrder {
		r := jf.Recipes[name]
		for _, deps := range [][]ast.Dependency{r.Deps, r.Subsequents} {
			for _, dep := range deps {
				target, ok := jf.Recipes[dep.Recipe]
				if !ok {
					a.errors.Add(langerr.NewResolveError(dep.Pos, "UnknownDependency: recipe %q depends on unknown recipe %q", r.Name, dep.Recipe))
					continue
				}
				min, max := parameterArgRange(target.Parameters)
				got := len(dep.Args)
				if got < min || (max >= 0 && got > max) {
					a.errors.Add(langerr.NewResolveError(dep.Pos,
						"DependencyArgumentCountMismatch: %q passes %d argument(s) to %q, expected between %d and %d",
						r.Name, got, dep.Recipe, min, max))
				}
			}
		}
	}
}

// parameterArgRange returns the [min_required, max_accepted] argument count
// for params; max is -1 when the recipe is variadic (unbounded).
func parameterArgRange(params []ast.Parameter) (min, max int) {
	for _, p := range params {
		if p.Variadic {
			if p.AtLeastOne {
				min++
			}
			return min, -1
		}
		if p.Default == nil {
			min++
		}
		max++
	}
	return min, max
}

// checkRecipeCycles walks the recipe dependency graph with the classic
// white/gray/black DFS coloring, reporting the first cycle found. Both
// prior (Deps) and subsequent (Subsequents) edges participate (spec.md §3:
// "No recipe participates in a dependency cycle (detected across both prior
// and subsequent edges)").
func (a *Analyzer) checkRecipeCycles(jf *justfile.Justfile) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(jf.Recipes))
	var path []string

	var visit func(name string) bool
	visit = func(name string) bool {
		switch color[name] {
		case black:
			return false
		case gray:
			path = append(path, name)
			a.errors.Add(langerr.NewResolveError(token.Position{}, "CircularRecipeDependency: %v", path))
			return true
		}
		color[name] = gray
		path = append(path, name)
		r, ok := jf.Recipes[name]
		if ok {
			for _, deps := range [][]ast.Dependency{r.Deps, r.Subsequents} {
				for _, dep := range deps {
					if visit(dep.Recipe) {
						return true
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return false
	}

	for _, name := range jf.RecipeOrder {
		if color[name] == white {
			if visit(name) {
				return
			}
		}
	}
}

// checkAssignmentCycles mirrors checkRecipeCycles over the assignment
// reference graph (an assignment referencing itself, directly or through a
// chain of other assignments).
func (a *Analyzer) checkAssignmentCycles(jf *justfile.Justfile) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(jf.Assignments))
	var path []string

	var visit func(name string) bool
	visit = func(name string) bool {
		switch color[name] {
		case black:
			return false
		case gray:
			path = append(path, name)
			a.errors.Add(langerr.NewResolveError(token.Position{}, "CircularVariableDependency: %v", path))
			return true
		}
		color[name] = gray
		path = append(path, name)
		asn, ok := jf.Assignments[name]
		if ok {
			for _, ref := range referencedIdentifiers(asn.Value) {
				if _, isAssignment := jf.Assignments[ref]; isAssignment {
					if visit(ref) {
						return true
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return false
	}

	for _, name := range jf.AssignmentOrder {
		if color[name] == white {
			if visit(name) {
				return
			}
		}
	}
}

// referencedIdentifiers collects every bare-identifier reference inside expr,
// for building the assignment-reference graph.
func referencedIdentifiers(expr ast.Expression) []string {
	var out []string
	var walk func(ast.Expression)
	walk = func(e ast.Expression) {
		switch v := e.(type) {
		case nil:
		case *ast.Identifier:
			out = append(out, v.Name)
		case *ast.Concatenation:
			walk(v.Left)
			walk(v.Right)
		case *ast.ParenExpr:
			walk(v.Inner)
		case *ast.Conditional:
			walk(v.Left)
			walk(v.Right)
			walk(v.Then)
			walk(v.Otherwise)
		case *ast.Match:
			walk(v.Subject)
			for _, arm := range v.Arms {
				walk(arm.Pattern)
				walk(arm.Value)
			}
		case *ast.Call:
			for _, arg := range v.Arguments {
				walk(arg)
			}
		case *ast.FormatString:
			for _, f := range v.Fragments {
				walk(f.Expr)
			}
		case *ast.ArrayLiteral:
			for _, el := range v.Elements {
				walk(el)
			}
		case *ast.BinaryExpr:
			walk(v.Left)
			walk(v.Right)
		case *ast.UnaryExpr:
			walk(v.Operand)
		}
	}
	walk(expr)
	return out
}

// checkUnstableFeatures enforces spec.md §4.5's gating of the `||`/`&&`
// logical operators behind `set unstable`. The --unstable command-line flag
// is not consulted.
func (a *Analyzer) checkUnstableFeatures(jf *justfile.Justfile) {
	if jf.Settings.Unstable {
		return
	}
	var walk func(ast.Expression)
	walk = func(e ast.Expression) {
		switch v := e.(type) {
		case nil:
		case *ast.BinaryExpr:
			if v.Op == token.BAR_BAR || v.Op == token.AMP_AMP {
				a.errors.Add(langerr.NewResolveError(v.Pos, "UnstableFeatureWithoutFlag: %q requires set unstable", v.Op))
			}
			walk(v.Left)
			walk(v.Right)
		case *ast.UnaryExpr:
			walk(v.Operand)
		case *ast.Concatenation:
			walk(v.Left)
			walk(v.Right)
		case *ast.ParenExpr:
			walk(v.Inner)
		case *ast.Conditional:
			walk(v.Left)
			walk(v.Right)
			walk(v.Then)
			walk(v.Otherwise)
		case *ast.Match:
			walk(v.Subject)
			for _, arm := range v.Arms {
				walk(arm.Pattern)
				walk(arm.Value)
			}
		case *ast.Call:
			for _, arg := range v.Arguments {
				walk(arg)
			}
		case *ast.FormatString:
			for _, f := range v.Fragments {
				walk(f.Expr)
			}
		case *ast.ArrayLiteral:
			for _, el := range v.Elements {
				walk(el)
			}
		}
	}
	for _, name := range jf.AssignmentOrder {
		walk(jf.Assignments[name].Value)
	}
	for _, name := range jf.RecipeOrder {
		r := jf.Recipes[name]
		for _, p := range r.Parameters {
			walk(p.Default)
		}
		for _, deps := range [][]ast.Dependency{r.Deps, r.Subsequents} {
			for _, dep := range deps {
				for _, arg := range dep.Args {
					walk(arg)
				}
			}
		}
		for _, line := range r.Body {
			for _, frag := range line.Fragments {
				walk(frag.Expr)
			}
		}
	}
}

// checkParameterShadowing enforces spec.md §4.3 step 5: no recipe parameter
// may share a name with a module-scope assignment.
func (a *Analyzer) checkParameterShadowing(jf *justfile.Justfile) {
	for _, name := range jf.RecipeOrder {
		r := jf.Recipes[name]
		for _, param := range r.Parameters {
			if _, ok := jf.Assignments[param.Name]; ok {
				a.errors.Add(langerr.NewResolveError(param.Pos,
					"ParameterShadowsVariable: parameter %q of recipe %q shadows a module-level assignment", param.Name, r.Name))
			}
		}
	}
}

var knownAttributes = map[string]struct {
	recipe, alias, module, assignment bool
}{
	"private":              {recipe: true, alias: true, module: true},
	"no-exit-message":      {recipe: true},
	"no-cd":                {recipe: true},
	"no-quiet":             {recipe: true},
	"confirm":              {recipe: true},
	"group":                {recipe: true, module: true},
	"doc":                  {recipe: true, alias: true, module: true},
	"linux":                {recipe: true},
	"macos":                {recipe: true},
	"unix":                 {recipe: true},
	"windows":              {recipe: true},
	"positional-arguments": {recipe: true},
	"script":               {recipe: true},
	"extension":            {recipe: true},
	"working-directory":    {recipe: true},
	"env":                  {recipe: true},
	"arg":                  {recipe: true},
	"default":              {recipe: true},
	"parallel":             {recipe: true},
	"cached":               {recipe: true},
}

// checkAttributes enforces spec.md §4.3 step 6: every attribute must belong
// to the enumerated set and attach to a legal target.
func (a *Analyzer) checkAttributes(jf *justfile.Justfile) {
	for _, name := range jf.RecipeOrder {
		r := jf.Recipes[name]
		seen := make(map[string]bool)
		for _, attr := range r.Attributes {
			spec, ok := knownAttributes[attr.Name]
			if !ok {
				a.errors.Add(langerr.NewResolveError(attr.Pos, "UnknownAttribute: %q", attr.Name))
				continue
			}
			if !spec.recipe {
				a.errors.Add(langerr.NewResolveError(attr.Pos, "InvalidAttribute: %q does not apply to recipes", attr.Name))
			}
			if seen[attr.Name] {
				a.errors.Add(langerr.NewResolveError(attr.Pos, "DuplicateAttribute: %q repeated on recipe %q", attr.Name, r.Name))
			}
			seen[attr.Name] = true
			if attr.Name == "cached" && !jf.Settings.Unstable {
				a.errors.Add(langerr.NewResolveError(attr.Pos, "UnstableFeatureWithoutFlag: [cached] requires set unstable"))
			}
			if attr.Name == "cached" {
				a.checkCachedPurity(r)
			}
		}
	}
}

// checkCachedPurity rejects [cached] on a recipe whose body calls an impure
// builtin function directly (spec.md §9's "safest baseline" open question
// decision): the memoized result would otherwise silently go stale across
// runs.
func (a *Analyzer) checkCachedPurity(r *ast.Recipe) {
	for _, line := range r.Body {
		for _, frag := range line.Fragments {
			if frag.Expr == nil {
				continue
			}
			for _, name := range impureCallsIn(frag.Expr) {
				a.errors.Add(langerr.NewResolveError(r.Pos,
					"CachedRecipeCallsImpureFunction: [cached] recipe %q calls impure function %q", r.Name, name))
			}
		}
	}
}

// impureCallsIn walks expr collecting the names of any impure builtin
// function calls it contains, direct or nested.
func impureCallsIn(expr ast.Expression) []string {
	var names []string
	switch v := expr.(type) {
	case *ast.Call:
		if eval.IsImpureBuiltin(v.Function) {
			names = append(names, v.Function)
		}
		for _, arg := range v.Arguments {
			names = append(names, impureCallsIn(arg)...)
		}
	case *ast.Concatenation:
		names = append(names, impureCallsIn(v.Left)...)
		names = append(names, impureCallsIn(v.Right)...)
	case *ast.BinaryExpr:
		names = append(names, impureCallsIn(v.Left)...)
		names = append(names, impureCallsIn(v.Right)...)
	case *ast.UnaryExpr:
		names = append(names, impureCallsIn(v.Operand)...)
	case *ast.ParenExpr:
		names = append(names, impureCallsIn(v.Inner)...)
	case *ast.Conditional:
		names = append(names, impureCallsIn(v.Left)...)
		names = append(names, impureCallsIn(v.Right)...)
		names = append(names, impureCallsIn(v.Then)...)
		names = append(names, impureCallsIn(v.Otherwise)...)
	case *ast.Match:
		names = append(names, impureCallsIn(v.Subject)...)
		for _, arm := range v.Arms {
			names = append(names, impureCallsIn(arm.Pattern)...)
			names = append(names, impureCallsIn(arm.Value)...)
		}
	case *ast.FormatString:
		for _, frag := range v.Fragments {
			if frag.Expr != nil {
				names = append(names, impureCallsIn(frag.Expr)...)
			}
		}
	}
	return names
}

// chooseDefaultRecipe picks the first recipe in source order, unless one
// carries [default], matching spec.md §5 step 2.
func (a *Analyzer) chooseDefaultRecipe(jf *justfile.Justfile) {
	for _, name := range jf.RecipeOrder {
		r := jf.Recipes[name]
		for _, attr := range r.Attributes {
			if attr.Name == "default" {
				jf.DefaultRecipe = r
				return
			}
		}
	}
	if len(jf.RecipeOrder) > 0 {
		jf.DefaultRecipe = jf.Recipes[jf.RecipeOrder[0]]
	}
}

// evalConstantBool, evalConstantString, and evalConstantList evaluate the
// narrow constant-expression grammar settings are restricted to: string
// literals, concatenation, and (for lists) array literals of strings. No
// backticks, calls, or variable references are legal here.
func evalConstantString(e ast.Expression) (string, error) {
	switch v := e.(type) {
	case nil:
		return "", nil
	case *ast.StringLiteral:
		return v.Value, nil
	case *ast.Concatenation:
		l, err := evalConstantString(v.Left)
		if err != nil {
			return "", err
		}
		r, err := evalConstantString(v.Right)
		if err != nil {
			return "", err
		}
		return l + r, nil
	case *ast.ParenExpr:
		return evalConstantString(v.Inner)
	default:
		return "", fmt.Errorf("expected a constant string expression")
	}
}

func evalConstantBool(e ast.Expression) (bool, error) {
	if e == nil {
		return true, nil
	}
	s, err := evalConstantString(e)
	if err != nil {
		if id, ok := e.(*ast.Identifier); ok {
			switch id.Name {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
		return false, err
	}
	return s == "true", nil
}

func evalConstantList(e ast.Expression) ([]string, error) {
	arr, ok := e.(*ast.ArrayLiteral)
	if !ok {
		return nil, fmt.Errorf("expected a list literal")
	}
	out := make([]string, 0, len(arr.Elements))
	for _, el := range arr.Elements {
		s, err := evalConstantString(el)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
