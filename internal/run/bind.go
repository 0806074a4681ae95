package run

import (
	"strings"

	"github.com/mtlynch/gojust/internal/eval"
	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/langerr"
)

// bindParameters binds args to params in scope: positional values first,
// then evaluated defaults, then a space-joined variadic tail (spec.md
// §4.7's argument binding step). It also returns the flat name->value map
// buildEnvironment needs for `set export`.
func bindParameters(ev *eval.Evaluator, scope *eval.Scope, params []ast.Parameter, args []string) (map[string]string, error) {
	bound := make(map[string]string, len(params))
	i := 0
	for _, p := range params {
		if p.Variadic {
			v := strings.Join(args[i:], " ")
			scope.Set(p.Name, v)
			bound[p.Name] = v
			i = len(args)
			continue
		}
		if i < len(args) {
			scope.Set(p.Name, args[i])
			bound[p.Name] = args[i]
			i++
			continue
		}
		if p.Default != nil {
			v, err := ev.Eval(p.Default, scope)
			if err != nil {
				return nil, err
			}
			scope.Set(p.Name, v)
			bound[p.Name] = v
			continue
		}
		return nil, langerr.NewEvalError(p.Pos, "MissingRequiredArgument: %s", p.Name)
	}
	return bound, nil
}

// evalDependencyArgs evaluates a dependency's argument expressions against
// the calling recipe's already-bound scope.
func evalDependencyArgs(ev *eval.Evaluator, scope *eval.Scope, exprs []ast.Expression) ([]string, error) {
	args := make([]string, 0, len(exprs))
	for _, expr := range exprs {
		v, err := ev.Eval(expr, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}
