// Package plan turns the remaining command-line tokens (after global
// options have been stripped) into an ordered list of Invocations: a
// recipe reference plus the raw argument tokens bound to it (spec.md §4.6).
//
// New code: the teacher has a single compile entrypoint, not a CLI
// sub-invocation language, so there is no direct analogue to adapt. Grounded
// in *style* only on cmd/gmx/run.go's flag-parsing-then-argument-splitting
// pattern (it splits its argv at a literal "--" token before handing the
// remainder to the child process; here the equivalent split is overrides
// vs. invocation tokens).
package plan

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/lang/token"
	"github.com/mtlynch/gojust/internal/langerr"
	"github.com/mtlynch/gojust/internal/justfile"
)

// Invocation is one resolved (recipe, argument-group) pair.
type Invocation struct {
	ModulePath []string // submodule names walked to reach Recipe, outermost first
	Justfile   *justfile.Justfile
	Recipe     *ast.Recipe
	Args       []string // raw positional tokens supplied on the command line
}

// Plan is a complete invocation plan: global overrides plus the ordered
// invocation list.
type Plan struct {
	Overrides   map[string]string
	Invocations []Invocation
}

var overridePattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_-]*)=(.*)$`)

// Build implements spec.md §4.6's algorithm: partition overrides, choose
// the default recipe when no invocation tokens remain, otherwise resolve
// a chain of module-path-qualified recipe invocations.
func Build(root *justfile.Justfile, args []string, setOverrides map[string]string) (*Plan, error) {
	plan := &Plan{Overrides: make(map[string]string)}
	for k, v := range setOverrides {
		plan.Overrides[k] = v
	}

	i := 0
	for i < len(args) {
		m := overridePattern.FindStringSubmatch(args[i])
		if m == nil {
			break
		}
		plan.Overrides[m[1]] = m[2]
		i++
	}
	rest := args[i:]

	if len(rest) == 0 {
		if root.DefaultRecipe == nil {
			return nil, langerr.NewPlanError(token.Position{}, "NoDefaultRecipe: no recipes defined")
		}
		min, _ := parameterArgRange(root.DefaultRecipe.Parameters)
		if min > 0 {
			return nil, langerr.NewPlanError(root.DefaultRecipe.Pos,
				"MissingRequiredArgument: default recipe %q requires arguments, none given", root.DefaultRecipe.Name)
		}
		plan.Invocations = append(plan.Invocations, Invocation{Justfile: root, Recipe: root.DefaultRecipe})
		return plan, nil
	}

	for len(rest) > 0 {
		inv, remaining, err := resolveOne(root, rest)
		if err != nil {
			return nil, err
		}
		plan.Invocations = append(plan.Invocations, inv)
		rest = remaining
	}

	return plan, nil
}

// resolveOne resolves the next invocation from the front of tokens,
// returning the tokens left over for subsequent invocations.
func resolveOne(root *justfile.Justfile, tokens []string) (Invocation, []string, error) {
	head := tokens[0]

	if strings.Contains(head, "::") {
		segments := strings.Split(head, "::")
		jf := root
		var modPath []string
		for idx, seg := range segments {
			if r, ok := jf.Recipes[seg]; ok {
				if idx != len(segments)-1 {
					return Invocation{}, nil, langerr.NewPlanError(r.Pos,
						"ExtraModulePathSegments: %q has trailing segments after recipe %q", head, seg)
				}
				consumed, rest := consumeArgs(tokens[1:], r.Parameters)
				return Invocation{ModulePath: modPath, Justfile: jf, Recipe: r, Args: consumed}, rest, nil
			}
			child, ok := jf.Submodules[seg]
			if !ok {
				return Invocation{}, nil, unknownSegmentError(jf, seg)
			}
			jf = child
			modPath = append(modPath, seg)
		}
		return Invocation{}, nil, langerr.NewPlanError(token.Position{}, "UnknownRecipe: %q", head)
	}

	jf := root
	var modPath []string
	i := 0
	for i < len(tokens) {
		name := tokens[i]
		if r, ok := jf.Recipes[name]; ok {
			consumed, rest := consumeArgs(tokens[i+1:], r.Parameters)
			return Invocation{ModulePath: modPath, Justfile: jf, Recipe: r, Args: consumed}, rest, nil
		}
		if child, ok := jf.Submodules[name]; ok {
			jf = child
			modPath = append(modPath, name)
			i++
			continue
		}
		return Invocation{}, nil, unknownSegmentError(jf, name)
	}

	return Invocation{}, nil, langerr.NewPlanError(token.Position{}, "UnknownRecipe: %q", strings.Join(tokens, " "))
}

func unknownSegmentError(jf *justfile.Justfile, name string) error {
	var candidates []string
	for _, r := range jf.RecipeOrder {
		candidates = append(candidates, r)
	}
	for _, m := range jf.SubmoduleOrder {
		candidates = append(candidates, m)
	}
	if suggestion := closestMatch(name, candidates); suggestion != "" {
		return langerr.NewPlanError(token.Position{}, "UnknownRecipe: no recipe or module named %q, did you mean %q?", name, suggestion)
	}
	return langerr.NewPlanError(token.Position{}, "UnknownRecipe: no recipe or module named %q", name)
}

// consumeArgs takes as many leading tokens as params accepts: all remaining
// tokens if the recipe has a variadic parameter (it always consumes the
// rest of the invocation), otherwise up to max_accepted tokens.
func consumeArgs(tokens []string, params []ast.Parameter) ([]string, []string) {
	_, max := parameterArgRange(params)
	if max < 0 || max > len(tokens) {
		return tokens, nil
	}
	return tokens[:max], tokens[max:]
}

// parameterArgRange mirrors the analyzer's arity computation: [min_required,
// max_accepted], with max == -1 meaning unbounded (a variadic parameter).
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

// Validate checks inv.Args against its recipe's arity and any
// [arg(name, pattern)] attribute declared on it (spec.md §4.6 step 4).
func Validate(inv Invocation) error {
	return ValidateArgs(inv.Recipe, inv.Args)
}

// ValidateArgs is Validate's logic without an Invocation wrapper, reused by
// internal/run to validate dependency-bound arguments before a dependency
// runs (spec.md §4.7: "validated against the parameter's pattern, if any,
// before dependencies run").
func ValidateArgs(recipe *ast.Recipe, args []string) error {
	min, max := parameterArgRange(recipe.Parameters)
	got := len(args)
	if got < min || (max >= 0 && got > max) {
		return langerr.NewPlanError(recipe.Pos,
			"MissingRequiredArgument: %q expects between %d and %d argument(s), got %d", recipe.Name, min, max, got)
	}

	patterns := argPatterns(recipe)
	for i, p := range recipe.Parameters {
		if i >= len(args) {
			break
		}
		pat, ok := patterns[p.Name]
		if !ok {
			continue
		}
		re, err := regexp.Compile(`^(?:` + pat + `)$`)
		if err != nil {
			return langerr.NewPlanError(recipe.Pos, "RegexParse: invalid pattern for argument %q: %v", p.Name, err)
		}
		if !re.MatchString(args[i]) {
			return langerr.NewPlanError(recipe.Pos, "ArgumentPatternMismatch: argument %q value %q does not match pattern %q", p.Name, args[i], pat)
		}
	}
	return nil
}

// argPatterns extracts the name -> pattern map from any [arg(name,
// pattern='...')] attributes on recipe. The positional form [arg(name,
// '...')] is accepted too.
func argPatterns(recipe *ast.Recipe) map[string]string {
	patterns := make(map[string]string)
	for _, attr := range recipe.Attributes {
		if attr.Name != "arg" || len(attr.Args) < 2 {
			continue
		}
		pattern := attr.Args[1]
		// The attribute parser drops '=', so `pattern='...'` arrives as the
		// two Args "pattern" and '...'.
		for j := 1; j+1 < len(attr.Args); j++ {
			if attr.Args[j] == "pattern" {
				pattern = attr.Args[j+1]
			}
		}
		patterns[attr.Args[0]] = pattern
	}
	return patterns
}

// closestMatch returns the candidate with the smallest edit distance to
// name, or "" if none is within a reasonable threshold.
func closestMatch(name string, candidates []string) string {
	type scored struct {
		name string
		dist int
	}
	var scoredCandidates []scored
	for _, c := range candidates {
		scoredCandidates = append(scoredCandidates, scored{c, editDistance(name, c)})
	}
	sort.Slice(scoredCandidates, func(i, j int) bool { return scoredCandidates[i].dist < scoredCandidates[j].dist })
	if len(scoredCandidates) == 0 {
		return ""
	}
	best := scoredCandidates[0]
	threshold := len(name)/2 + 1
	if best.dist > threshold {
		return ""
	}
	return best.name
}

// editDistance computes the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
