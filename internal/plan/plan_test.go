package plan

import (
	"strings"
	"testing"

	"github.com/mtlynch/gojust/internal/analyzer"
	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/lang/lexer"
	"github.com/mtlynch/gojust/internal/lang/parser"
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

func TestBuildDefaultRecipeWithNoArgs(t *testing.T) {
	jf := buildJustfile(t, "build:\n    echo hi\n")
	p, err := Build(jf, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Invocations) != 1 || p.Invocations[0].Recipe.Name != "build" {
		t.Fatalf("invocations = %#v", p.Invocations)
	}
}

func TestBuildDefaultRecipeRequiresArgsErrors(t *testing.T) {
	jf := buildJustfile(t, "build name:\n    echo {{ name }}\n")
	_, err := Build(jf, nil, nil)
	if err == nil {
		t.Fatalf("expected an error: default recipe requires an argument")
	}
}

func TestBuildSingleRecipeWithArgs(t *testing.T) {
	jf := buildJustfile(t, "greet name:\n    echo {{ name }}\n")
	p, err := Build(jf, []string{"greet", "alice"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Invocations) != 1 {
		t.Fatalf("invocations = %#v", p.Invocations)
	}
	inv := p.Invocations[0]
	if inv.Recipe.Name != "greet" || len(inv.Args) != 1 || inv.Args[0] != "alice" {
		t.Fatalf("invocation = %#v", inv)
	}
}

func TestBuildOverrides(t *testing.T) {
	jf := buildJustfile(t, "build:\n    echo hi\n")
	p, err := Build(jf, []string{"FOO=bar", "build"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Overrides["FOO"] != "bar" {
		t.Fatalf("overrides = %#v", p.Overrides)
	}
	if len(p.Invocations) != 1 || p.Invocations[0].Recipe.Name != "build" {
		t.Fatalf("invocations = %#v", p.Invocations)
	}
}

func TestBuildSetOverridesMerged(t *testing.T) {
	jf := buildJustfile(t, "build:\n    echo hi\n")
	p, err := Build(jf, []string{"build"}, map[string]string{"FOO": "bar"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Overrides["FOO"] != "bar" {
		t.Fatalf("overrides = %#v", p.Overrides)
	}
}

func TestBuildChainedInvocations(t *testing.T) {
	jf := buildJustfile(t, "a:\n    echo a\nb:\n    echo b\n")
	p, err := Build(jf, []string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Invocations) != 2 || p.Invocations[0].Recipe.Name != "a" || p.Invocations[1].Recipe.Name != "b" {
		t.Fatalf("invocations = %#v", p.Invocations)
	}
}

func TestBuildVariadicConsumesRemainder(t *testing.T) {
	jf := buildJustfile(t, "push *files:\n    echo {{ files }}\n")
	p, err := Build(jf, []string{"push", "a", "b", "c"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv := p.Invocations[0]
	if len(inv.Args) != 3 {
		t.Fatalf("args = %#v", inv.Args)
	}
}

func TestBuildUnknownRecipe(t *testing.T) {
	jf := buildJustfile(t, "build:\n    echo hi\n")
	_, err := Build(jf, []string{"biuld"}, nil)
	if err == nil {
		t.Fatalf("expected UnknownRecipe error")
	}
	if !containsSuggestion(err.Error(), "build") {
		t.Fatalf("expected a did-you-mean suggestion, got %v", err)
	}
}

func newSubmoduleWithRecipe(name, recipeName string) *justfile.Justfile {
	child := justfile.New(name)
	r := &ast.Recipe{Name: recipeName}
	child.Recipes[recipeName] = r
	child.RecipeOrder = append(child.RecipeOrder, recipeName)
	child.DefaultRecipe = r
	return child
}

func TestBuildModulePath(t *testing.T) {
	jf := buildJustfile(t, "mod docker\n")
	child := newSubmoduleWithRecipe("docker", "build")
	jf.Submodules["docker"] = child
	jf.SubmoduleOrder = append(jf.SubmoduleOrder, "docker")

	p, err := Build(jf, []string{"docker", "build"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv := p.Invocations[0]
	if len(inv.ModulePath) != 1 || inv.ModulePath[0] != "docker" || inv.Recipe.Name != "build" {
		t.Fatalf("invocation = %#v", inv)
	}
}

func TestBuildModulePathDoubleColon(t *testing.T) {
	jf := buildJustfile(t, "mod docker\n")
	child := newSubmoduleWithRecipe("docker", "build")
	jf.Submodules["docker"] = child
	jf.SubmoduleOrder = append(jf.SubmoduleOrder, "docker")

	p, err := Build(jf, []string{"docker::build"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv := p.Invocations[0]
	if inv.Recipe.Name != "build" {
		t.Fatalf("invocation = %#v", inv)
	}
}

func TestValidateArgumentPattern(t *testing.T) {
	jf := buildJustfile(t, "[arg(\"env\", \"^(dev|prod)$\")]\ndeploy env:\n    echo {{ env }}\n")
	p, err := Build(jf, []string{"deploy", "staging"}, nil)
	if err != nil {
		t.Fatalf("unexpected plan error: %v", err)
	}
	if err := Validate(p.Invocations[0]); err == nil {
		t.Fatalf("expected a pattern mismatch error")
	}
}

func containsSuggestion(msg, want string) bool {
	return strings.Contains(msg, want)
}
