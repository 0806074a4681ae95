package eval_test

import (
	"testing"

	"github.com/mtlynch/gojust/internal/analyzer"
	"github.com/mtlynch/gojust/internal/eval"
	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/lang/lexer"
	"github.com/mtlynch/gojust/internal/lang/parser"
	"github.com/mtlynch/gojust/internal/lang/token"
	"github.com/mtlynch/gojust/internal/justfile"
)

func buildJustfile(t *testing.T, src string) *justfile.Justfile {
	t.Helper()
	l := lexer.New(src, "test.just")
	p := parser.New(l, "test.just")
	file := p.ParseFile()
	if p.Errors().HasErrors() {
		t.Fatalf("unexpected parse errors: %s", p.Errors().Error())
	}
	mod := justfile.NewModule("test.just", ".")
	mod.Items = file.Items
	a := analyzer.New()
	jf := a.Analyze(mod)
	if a.Errors().HasErrors() {
		t.Fatalf("unexpected analyzer errors: %s", a.Errors().Error())
	}
	return jf
}

func newTestEvaluator(t *testing.T, src string) *eval.Evaluator {
	jf := buildJustfile(t, src)
	return eval.New(jf, eval.NewContext("test.just"))
}

func TestEvalStringLiteralAndConcatenation(t *testing.T) {
	e := newTestEvaluator(t, "x := \"a\" + \"b\"\n")
	v, err := e.EvalAssignment("x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ab" {
		t.Fatalf("value = %q", v)
	}
}

func TestEvalAssignmentChain(t *testing.T) {
	e := newTestEvaluator(t, "a := \"1\"\nb := a + \"2\"\n")
	v, err := e.EvalAssignment("b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "12" {
		t.Fatalf("value = %q", v)
	}
}

func TestEvalIdentifierScopeOverridesAssignment(t *testing.T) {
	e := newTestEvaluator(t, "name := \"module\"\n")
	scope := e.RootScope().Push()
	scope.Set("name", "local")
	id := &ast.Identifier{Name: "name"}
	v, err := e.Eval(id, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "local" {
		t.Fatalf("expected scope binding to win, got %q", v)
	}
}

func TestEvalUndefinedVariable(t *testing.T) {
	e := newTestEvaluator(t, "x := \"ok\"\n")
	_, err := e.Eval(&ast.Identifier{Name: "missing"}, e.RootScope())
	if err == nil {
		t.Fatalf("expected an UndefinedVariable error")
	}
}

func TestEvalBuiltinStringFunctions(t *testing.T) {
	e := newTestEvaluator(t, "x := \"ok\"\n")
	cases := []struct {
		call ast.Call
		want string
	}{
		{ast.Call{Function: "uppercase", Arguments: []ast.Expression{&ast.StringLiteral{Value: "abc"}}}, "ABC"},
		{ast.Call{Function: "trim", Arguments: []ast.Expression{&ast.StringLiteral{Value: "  abc  "}}}, "abc"},
		{ast.Call{Function: "replace", Arguments: []ast.Expression{
			&ast.StringLiteral{Value: "a-b-c"}, &ast.StringLiteral{Value: "-"}, &ast.StringLiteral{Value: "_"},
		}}, "a_b_c"},
		{ast.Call{Function: "snakecase", Arguments: []ast.Expression{&ast.StringLiteral{Value: "HelloWorld"}}}, "hello_world"},
	}
	for _, c := range cases {
		v, err := e.Eval(&c.call, e.RootScope())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.call.Function, err)
		}
		if v != c.want {
			t.Fatalf("%s: got %q, want %q", c.call.Function, v, c.want)
		}
	}
}

func TestEvalUnknownFunction(t *testing.T) {
	e := newTestEvaluator(t, "x := \"ok\"\n")
	_, err := e.Eval(&ast.Call{Function: "bogus"}, e.RootScope())
	if err == nil {
		t.Fatalf("expected an UnknownFunction error")
	}
}

func TestEvalWrongArity(t *testing.T) {
	e := newTestEvaluator(t, "x := \"ok\"\n")
	_, err := e.Eval(&ast.Call{Function: "uppercase"}, e.RootScope())
	if err == nil {
		t.Fatalf("expected an arity error")
	}
}

func TestEvalConditionalShortCircuit(t *testing.T) {
	e := newTestEvaluator(t, "x := \"ok\"\n")
	cond := &ast.Conditional{
		Op:        token.EQ_EQ,
		Left:      &ast.StringLiteral{Value: "linux"},
		Right:     &ast.StringLiteral{Value: "linux"},
		Then:      &ast.StringLiteral{Value: "matched"},
		Otherwise: &ast.Call{Function: "error", Arguments: []ast.Expression{&ast.StringLiteral{Value: "should not evaluate"}}},
	}
	v, err := e.Eval(cond, e.RootScope())
	if err != nil {
		t.Fatalf("unexpected error (otherwise branch should not run): %v", err)
	}
	if v != "matched" {
		t.Fatalf("value = %q", v)
	}
}

func TestEvalConditionalRegex(t *testing.T) {
	e := newTestEvaluator(t, "x := \"ok\"\n")
	cond := &ast.Conditional{
		Op:        token.TILDE_EQ,
		Left:      &ast.StringLiteral{Value: "v1.2.3"},
		Right:     &ast.StringLiteral{Value: `^v\d+\.\d+\.\d+$`},
		Then:      &ast.StringLiteral{Value: "yes"},
		Otherwise: &ast.StringLiteral{Value: "no"},
	}
	v, err := e.Eval(cond, e.RootScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "yes" {
		t.Fatalf("value = %q", v)
	}
}

func TestEvalMatchWildcard(t *testing.T) {
	e := newTestEvaluator(t, "x := \"ok\"\n")
	m := &ast.Match{
		Subject: &ast.StringLiteral{Value: "linux"},
		Arms: []ast.MatchArm{
			{Pattern: &ast.StringLiteral{Value: "macos"}, Value: &ast.StringLiteral{Value: "darwin"}},
			{Wildcard: true, Value: &ast.StringLiteral{Value: "other"}},
		},
	}
	v, err := e.Eval(m, e.RootScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "other" {
		t.Fatalf("value = %q", v)
	}
}

func TestEvalPathJoinOperator(t *testing.T) {
	e := newTestEvaluator(t, "x := \"ok\"\n")
	b := &ast.BinaryExpr{
		Op:    token.SLASH,
		Left:  &ast.StringLiteral{Value: "a"},
		Right: &ast.StringLiteral{Value: "b"},
	}
	v, err := e.Eval(b, e.RootScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "a/b" {
		t.Fatalf("value = %q", v)
	}
}

func TestEvalLogicalOperators(t *testing.T) {
	e := newTestEvaluator(t, "x := \"ok\"\n")
	and := &ast.BinaryExpr{Op: token.AMP_AMP, Left: &ast.StringLiteral{Value: ""}, Right: &ast.StringLiteral{Value: "b"}}
	v, err := e.Eval(and, e.RootScope())
	if err != nil || v != "" {
		t.Fatalf("&& with empty left = %q, %v", v, err)
	}

	or := &ast.BinaryExpr{Op: token.BAR_BAR, Left: &ast.StringLiteral{Value: ""}, Right: &ast.StringLiteral{Value: "b"}}
	v, err = e.Eval(or, e.RootScope())
	if err != nil || v != "b" {
		t.Fatalf("|| with empty left = %q, %v", v, err)
	}
}

func TestEvalFormatString(t *testing.T) {
	e := newTestEvaluator(t, "name := \"world\"\n")
	fs := &ast.FormatString{
		Fragments: []ast.BodyFragment{
			{Text: "hello "},
			{Expr: &ast.Identifier{Name: "name"}},
		},
	}
	v, err := e.Eval(fs, e.RootScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "hello world" {
		t.Fatalf("value = %q", v)
	}
}
