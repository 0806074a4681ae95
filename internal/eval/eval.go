// Package eval evaluates the expression tree produced by internal/lang/ast
// against a resolved *justfile.Justfile: lazy, memoized assignment
// evaluation, a builtin function registry, backtick/shell subprocess
// execution, and short-circuiting conditional/match dispatch (spec.md §4.5).
//
// Grounded on the teacher's `switch expr.(type)` dispatch idiom (used
// throughout internal/compiler/script/transpiler.go to walk the same kind of
// tagged-union expression tree, there emitting Go source instead of a
// string) and, for the lazy/memoized evaluation order specifically, on
// lenticularis39-mk/expand.go's variable-expansion shape (a secondary,
// non-teacher reference already used elsewhere in this pack).
package eval

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/lang/token"
	"github.com/mtlynch/gojust/internal/langerr"
	"github.com/mtlynch/gojust/internal/justfile"
)

// Evaluator evaluates expressions against one Justfile, caching module-level
// assignment values as they are first demanded.
type Evaluator struct {
	jf         *justfile.Justfile
	ctx        *Context
	memo       *lru.Cache[string, string]
	evaluating map[string]bool
	root       *Scope
}

// New creates an Evaluator for jf, rooted at ctx's runtime facts. The memo
// cache is sized to the module's assignment count: effectively unbounded for
// realistic justfiles, while still exercising golang-lru rather than a bare
// map.
func New(jf *justfile.Justfile, ctx *Context) *Evaluator {
	capacity := len(jf.Assignments)
	if capacity < 1 {
		capacity = 1
	}
	cache, _ := lru.New[string, string](capacity)
	return &Evaluator{
		jf:         jf,
		ctx:        ctx,
		memo:       cache,
		evaluating: make(map[string]bool),
		root:       NewScope(),
	}
}

// RootScope returns the module-level scope: no local bindings, so identifier
// lookups fall through to EvalAssignment.
func (e *Evaluator) RootScope() *Scope { return e.root }

// EvalAssignment evaluates and memoizes a module-level assignment by name.
func (e *Evaluator) EvalAssignment(name string) (string, error) {
	if v, ok := e.memo.Get(name); ok {
		return v, nil
	}
	if e.evaluating[name] {
		return "", langerr.NewEvalError(token.Position{}, "AssignmentCycle: %s", name)
	}
	asn, ok := e.jf.Assignments[name]
	if !ok {
		return "", langerr.NewEvalError(token.Position{}, "UndefinedVariable: %s", name)
	}

	e.evaluating[name] = true
	defer delete(e.evaluating, name)

	v, err := e.Eval(asn.Value, e.root)
	if err != nil {
		return "", err
	}
	e.memo.Add(name, v)
	return v, nil
}

// Eval evaluates expr in scope, returning its string value.
func (e *Evaluator) Eval(expr ast.Expression, scope *Scope) (string, error) {
	switch v := expr.(type) {
	case nil:
		return "", nil

	case *ast.StringLiteral:
		return v.Value, nil

	case *ast.ShellString:
		return e.expandShellString(v.Value), nil

	case *ast.Identifier:
		return e.evalIdentifier(v, scope)

	case *ast.Concatenation:
		l, err := e.Eval(v.Left, scope)
		if err != nil {
			return "", err
		}
		r, err := e.Eval(v.Right, scope)
		if err != nil {
			return "", err
		}
		return l + r, nil

	case *ast.BinaryExpr:
		return e.evalBinary(v, scope)

	case *ast.UnaryExpr:
		operand, err := e.Eval(v.Operand, scope)
		if err != nil {
			return "", err
		}
		return "/" + strings.TrimPrefix(operand, "/"), nil

	case *ast.ParenExpr:
		return e.Eval(v.Inner, scope)

	case *ast.FormatString:
		var b strings.Builder
		for _, frag := range v.Fragments {
			if frag.Expr != nil {
				val, err := e.Eval(frag.Expr, scope)
				if err != nil {
					return "", err
				}
				b.WriteString(val)
			} else {
				b.WriteString(frag.Text)
			}
		}
		return b.String(), nil

	case *ast.Call:
		return e.evalCall(v, scope)

	case *ast.Backtick:
		return e.runSubprocess(v.Pos, v.Script, nil, nil)

	case *ast.Conditional:
		return e.evalConditional(v, scope)

	case *ast.Match:
		return e.evalMatch(v, scope)

	default:
		return "", langerr.NewEvalError(exprPos(expr), "unsupported expression type %T", expr)
	}
}

func (e *Evaluator) evalIdentifier(id *ast.Identifier, scope *Scope) (string, error) {
	if v, ok := scope.Get(id.Name); ok {
		return v, nil
	}
	if _, ok := e.jf.Assignments[id.Name]; ok {
		return e.EvalAssignment(id.Name)
	}
	return "", langerr.NewEvalError(id.Pos, "UndefinedVariable: %s", id.Name)
}

func (e *Evaluator) evalBinary(b *ast.BinaryExpr, scope *Scope) (string, error) {
	left, err := e.Eval(b.Left, scope)
	if err != nil {
		return "", err
	}

	switch b.Op {
	case token.SLASH:
		right, err := e.Eval(b.Right, scope)
		if err != nil {
			return "", err
		}
		return strings.TrimSuffix(left, "/") + "/" + strings.TrimPrefix(right, "/"), nil

	case token.AMP_AMP:
		if left == "" {
			return "", nil
		}
		return e.Eval(b.Right, scope)

	case token.BAR_BAR:
		if left != "" {
			return left, nil
		}
		return e.Eval(b.Right, scope)

	default:
		return "", langerr.NewEvalError(b.Pos, "unsupported binary operator %s", b.Op)
	}
}

func (e *Evaluator) evalCall(c *ast.Call, scope *Scope) (string, error) {
	b, ok := builtins[c.Function]
	if !ok {
		return "", langerr.NewEvalError(c.Pos, "UnknownFunction: %q", c.Function)
	}

	args := make([]string, 0, len(c.Arguments))
	for _, argExpr := range c.Arguments {
		v, err := e.Eval(argExpr, scope)
		if err != nil {
			return "", err
		}
		args = append(args, v)
	}

	if len(args) < b.minArgs || (b.maxArgs >= 0 && len(args) > b.maxArgs) {
		return "", arityError(c.Pos, c.Function, len(args), b.minArgs, b.maxArgs)
	}

	return b.fn(e, c.Pos, args)
}

// evalConditional evaluates only the selected branch (spec.md §4.5).
func (e *Evaluator) evalConditional(c *ast.Conditional, scope *Scope) (string, error) {
	left, err := e.Eval(c.Left, scope)
	if err != nil {
		return "", err
	}
	right, err := e.Eval(c.Right, scope)
	if err != nil {
		return "", err
	}

	var matched bool
	switch c.Op {
	case token.EQ_EQ:
		matched = left == right
	case token.NOT_EQ:
		matched = left != right
	case token.TILDE_EQ:
		re, err := compileRegex(right)
		if err != nil {
			return "", langerr.NewEvalError(c.Pos, "RegexParse: %v", err)
		}
		matched = re.MatchString(left)
	default:
		return "", langerr.NewEvalError(c.Pos, "unsupported conditional operator %s", c.Op)
	}

	if matched {
		return e.Eval(c.Then, scope)
	}
	return e.Eval(c.Otherwise, scope)
}

// evalMatch evaluates the subject once, then the first arm whose pattern
// equals it (or the wildcard arm), evaluating only the matched value.
func (e *Evaluator) evalMatch(m *ast.Match, scope *Scope) (string, error) {
	subject, err := e.Eval(m.Subject, scope)
	if err != nil {
		return "", err
	}

	var wildcard *ast.MatchArm
	for i := range m.Arms {
		arm := &m.Arms[i]
		if arm.Wildcard {
			wildcard = arm
			continue
		}
		pattern, err := e.Eval(arm.Pattern, scope)
		if err != nil {
			return "", err
		}
		if pattern == subject {
			return e.Eval(arm.Value, scope)
		}
	}
	if wildcard != nil {
		return e.Eval(wildcard.Value, scope)
	}
	return "", langerr.NewEvalError(m.Pos, "FunctionCallFailed: match: no arm matched %q", subject)
}

// expandShellString expands `~` and `$VAR`/`${VAR}` references in an
// x-prefixed string, without invoking a subprocess.
func (e *Evaluator) expandShellString(s string) string {
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = home + strings.TrimPrefix(s, "~")
		}
	}
	return os.ExpandEnv(s)
}

// runSubprocess executes script through the configured shell (spec.md
// §4.5's backtick contract), appending extraArgs as positional parameters to
// the script and overlaying extraEnv on top of the process/exported-
// assignment environment. Trailing line-ending forms are stripped; non-UTF8
// output and a non-zero exit are both reported as EvalErrors.
func (e *Evaluator) runSubprocess(pos token.Position, script string, extraArgs []string, extraEnv []string) (string, error) {
	shell := e.jf.Settings.Shell
	if len(shell) == 0 {
		shell = justfile.DefaultShell
	}

	cmdArgs := append(append([]string{}, shell[1:]...), script)
	if len(extraArgs) > 0 {
		// `sh -c` binds the first trailing argument to $0; pass the script
		// there so extraArgs become $1, $2, ...
		cmdArgs = append(cmdArgs, script)
	}
	cmdArgs = append(cmdArgs, extraArgs...)

	cmd := exec.Command(shell[0], cmdArgs...)
	cmd.Env = e.backtickEnv(extraEnv)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := stdout.String()
	out = strings.TrimSuffix(out, "\n")
	out = strings.TrimSuffix(out, "\r")

	if !utf8.ValidString(out) {
		return "", langerr.NewEvalError(pos, "BacktickUtf8: subprocess output is not valid UTF-8")
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", langerr.NewEvalErrorExit(pos, exitErr.ExitCode(), "BacktickExitCode: `%s` failed: %s", script, stderr.String())
		}
		return "", langerr.NewEvalError(pos, "FunctionCallFailed: `%s`: %v", script, err)
	}
	return out, nil
}

// backtickEnv builds the process + exported-assignments environment a
// backtick or shell() call runs with (spec.md §4.5: "Backticks do not
// inherit the recipe's per-recipe environment overlay").
func (e *Evaluator) backtickEnv(extra []string) []string {
	env := os.Environ()
	for _, name := range e.jf.AssignmentOrder {
		asn := e.jf.Assignments[name]
		if !asn.Exported {
			continue
		}
		v, err := e.EvalAssignment(name)
		if err != nil {
			continue
		}
		env = append(env, fmt.Sprintf("%s=%s", name, v))
	}
	return append(env, extra...)
}

// compileRegex compiles pattern for `=~`, anchored so it matches the entire
// left-hand side rather than any substring (spec.md §4.2: "regex full-string
// match").
func compileRegex(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)$`)
}

// exprPos extracts the source position carried by every concrete
// Expression type, for error reporting on node kinds this evaluator doesn't
// itself dispatch on.
func exprPos(expr ast.Expression) token.Position {
	switch v := expr.(type) {
	case *ast.StringLiteral:
		return v.Pos
	case *ast.FormatString:
		return v.Pos
	case *ast.ShellString:
		return v.Pos
	case *ast.Identifier:
		return v.Pos
	case *ast.Call:
		return v.Pos
	case *ast.Backtick:
		return v.Pos
	case *ast.Concatenation:
		return v.Pos
	case *ast.BinaryExpr:
		return v.Pos
	case *ast.UnaryExpr:
		return v.Pos
	case *ast.Conditional:
		return v.Pos
	case *ast.Match:
		return v.Pos
	case *ast.ArrayLiteral:
		return v.Pos
	case *ast.ParenExpr:
		return v.Pos
	default:
		return token.Position{}
	}
}
