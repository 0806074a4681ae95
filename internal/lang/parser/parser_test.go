package parser

import (
	"testing"

	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/lang/lexer"
)

func parse(t *testing.T, src string) *ast.File {
	t.Helper()
	l := lexer.New(src, "test.just")
	p := New(l, "test.just")
	file := p.ParseFile()
	if p.Errors().HasErrors() {
		t.Fatalf("unexpected parse errors: %s", p.Errors().Error())
	}
	return file
}

func TestParseAssignment(t *testing.T) {
	file := parse(t, "greeting := \"hello\"\n")
	if len(file.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(file.Items))
	}
	a, ok := file.Items[0].(*ast.Assignment)
	if !ok {
		t.Fatalf("expected *ast.Assignment, got %T", file.Items[0])
	}
	if a.Name != "greeting" {
		t.Fatalf("name = %q", a.Name)
	}
	s, ok := a.Value.(*ast.StringLiteral)
	if !ok || s.Value != "hello" {
		t.Fatalf("value = %#v", a.Value)
	}
}

func TestParseExportedAssignment(t *testing.T) {
	file := parse(t, "export FOO := \"bar\"\n")
	a, ok := file.Items[0].(*ast.Assignment)
	if !ok || !a.Exported {
		t.Fatalf("expected exported assignment, got %#v", file.Items[0])
	}
}

func TestParseSimpleRecipe(t *testing.T) {
	file := parse(t, "build:\n    echo one\n    echo two\n")
	r, ok := file.Items[0].(*ast.Recipe)
	if !ok {
		t.Fatalf("expected *ast.Recipe, got %T", file.Items[0])
	}
	if r.Name != "build" {
		t.Fatalf("name = %q", r.Name)
	}
	if len(r.Body) != 2 {
		t.Fatalf("expected 2 body lines, got %d: %#v", len(r.Body), r.Body)
	}
}

func TestParseRecipeWithParamsAndDeps(t *testing.T) {
	file := parse(t, "deploy env=\"dev\": build test\n    echo deploying\n")
	r := file.Items[0].(*ast.Recipe)
	if len(r.Parameters) != 1 || r.Parameters[0].Name != "env" {
		t.Fatalf("params = %#v", r.Parameters)
	}
	if len(r.Deps) != 2 || r.Deps[0].Recipe != "build" || r.Deps[1].Recipe != "test" {
		t.Fatalf("deps = %#v", r.Deps)
	}
}

func TestParseRecipeWithRecoveryDependency(t *testing.T) {
	file := parse(t, "ci: lint || notify-failure\n    echo ok\n")
	r := file.Items[0].(*ast.Recipe)
	if len(r.Deps) != 2 {
		t.Fatalf("expected 2 deps, got %d", len(r.Deps))
	}
	if r.Deps[0].Recovery {
		t.Fatalf("first dep should not be a recovery step")
	}
	if !r.Deps[1].Recovery {
		t.Fatalf("second dep should be a recovery step")
	}
}

func TestParseRecipeWithSubsequents(t *testing.T) {
	file := parse(t, "deploy: build && notify cleanup\n    echo deploying\n")
	r := file.Items[0].(*ast.Recipe)
	if len(r.Deps) != 1 || r.Deps[0].Recipe != "build" {
		t.Fatalf("deps = %#v", r.Deps)
	}
	if len(r.Subsequents) != 2 || r.Subsequents[0].Recipe != "notify" || r.Subsequents[1].Recipe != "cleanup" {
		t.Fatalf("subsequents = %#v", r.Subsequents)
	}
}

func TestParseRecipeRecoveryDoesNotCarryPastAmpAmp(t *testing.T) {
	file := parse(t, "deploy: || rollback && notify\n    echo deploying\n")
	r := file.Items[0].(*ast.Recipe)
	if len(r.Deps) != 1 || r.Deps[0].Recipe != "rollback" || !r.Deps[0].Recovery {
		t.Fatalf("deps = %#v", r.Deps)
	}
	if len(r.Subsequents) != 1 || r.Subsequents[0].Recipe != "notify" || r.Subsequents[0].Recovery {
		t.Fatalf("subsequents = %#v", r.Subsequents)
	}
}

func TestParseInterpolatedBody(t *testing.T) {
	file := parse(t, "greet name:\n    echo hello {{ name }}\n")
	r := file.Items[0].(*ast.Recipe)
	frags := r.Body[0].Fragments
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %d: %#v", len(frags), frags)
	}
	if frags[0].Text != "echo hello " {
		t.Fatalf("text fragment = %q", frags[0].Text)
	}
	id, ok := frags[1].Expr.(*ast.Identifier)
	if !ok || id.Name != "name" {
		t.Fatalf("expr fragment = %#v", frags[1].Expr)
	}
}

func TestParseQuietAndIgnoreBodyLines(t *testing.T) {
	file := parse(t, "build:\n    @echo quiet\n    -echo ignored\n")
	r := file.Items[0].(*ast.Recipe)
	if !r.Body[0].Quiet {
		t.Fatalf("expected first line quiet")
	}
	if !r.Body[1].Ignore {
		t.Fatalf("expected second line ignore")
	}
}

func TestParseAlias(t *testing.T) {
	file := parse(t, "alias b := build\n")
	a := file.Items[0].(*ast.Alias)
	if a.Name != "b" || a.Target != "build" {
		t.Fatalf("alias = %#v", a)
	}
}

func TestParseShellSetting(t *testing.T) {
	file := parse(t, "set shell := [\"bash\", \"-c\"]\n")
	s := file.Items[0].(*ast.Setting)
	arr, ok := s.Value.(*ast.ArrayLiteral)
	if !ok || len(arr.Elements) != 2 {
		t.Fatalf("setting value = %#v", s.Value)
	}
}

func TestParseBooleanSetting(t *testing.T) {
	file := parse(t, "set export\n")
	s := file.Items[0].(*ast.Setting)
	if s.Name != "export" || s.Value != nil {
		t.Fatalf("setting = %#v", s)
	}
}

func TestParseImportAndMod(t *testing.T) {
	file := parse(t, "import \"lib.just\"\nmod docker\n")
	imp := file.Items[0].(*ast.Import)
	if imp.Path != "lib.just" || imp.Optional {
		t.Fatalf("import = %#v", imp)
	}
	mod := file.Items[1].(*ast.Mod)
	if mod.Name != "docker" {
		t.Fatalf("mod = %#v", mod)
	}
}

func TestParseAttributeOnRecipe(t *testing.T) {
	file := parse(t, "[confirm]\n[group('ci')]\nbuild:\n    echo hi\n")
	r := file.Items[0].(*ast.Recipe)
	if len(r.Attributes) != 2 {
		t.Fatalf("expected 2 attributes, got %d: %#v", len(r.Attributes), r.Attributes)
	}
	if r.Attributes[0].Name != "confirm" {
		t.Fatalf("attr0 = %#v", r.Attributes[0])
	}
	if r.Attributes[1].Name != "group" || len(r.Attributes[1].Args) != 1 || r.Attributes[1].Args[0] != "ci" {
		t.Fatalf("attr1 = %#v", r.Attributes[1])
	}
}

func TestParseConcatenation(t *testing.T) {
	file := parse(t, "x := \"a\" + \"b\"\n")
	a := file.Items[0].(*ast.Assignment)
	c, ok := a.Value.(*ast.Concatenation)
	if !ok {
		t.Fatalf("expected concatenation, got %#v", a.Value)
	}
	left := c.Left.(*ast.StringLiteral)
	right := c.Right.(*ast.StringLiteral)
	if left.Value != "a" || right.Value != "b" {
		t.Fatalf("concat = %#v", c)
	}
}

func TestParseConditional(t *testing.T) {
	file := parse(t, "x := if os() == \"linux\" { \"gnu\" } else { \"other\" }\n")
	a := file.Items[0].(*ast.Assignment)
	c, ok := a.Value.(*ast.Conditional)
	if !ok {
		t.Fatalf("expected conditional, got %#v", a.Value)
	}
	if c.Op == "" {
		t.Fatalf("expected an operator")
	}
}
