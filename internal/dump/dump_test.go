package dump

import (
	"encoding/json"
	"testing"

	"github.com/mtlynch/gojust/internal/analyzer"
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

func TestDumpProducesValidJSON(t *testing.T) {
	jf := buildJustfile(t, "greet name=\"world\":\n    echo hello {{ name }}\n")
	d := Dump(jf)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["first"] != "greet" {
		t.Fatalf("first = %v, want %q", decoded["first"], "greet")
	}
	recipes, ok := decoded["recipes"].(map[string]any)
	if !ok || recipes["greet"] == nil {
		t.Fatalf("recipes = %#v, want a \"greet\" entry", decoded["recipes"])
	}
}

func TestDumpIsDeterministicAcrossRuns(t *testing.T) {
	jf := buildJustfile(t, "[group(\"ci\")]\nbuild target pattern=\"*\":\n    echo {{ target }} {{ pattern }}\n")

	var outputs [][]byte
	for i := 0; i < 5; i++ {
		b, err := json.Marshal(Dump(jf))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		outputs = append(outputs, b)
	}
	for i := 1; i < len(outputs); i++ {
		if string(outputs[i]) != string(outputs[0]) {
			t.Fatalf("dump output changed across runs:\n%s\nvs\n%s", outputs[0], outputs[i])
		}
	}
}

func TestDumpPrivateRecipeByUnderscorePrefix(t *testing.T) {
	jf := buildJustfile(t, "_helper:\n    echo hi\n")
	d := Dump(jf)
	b, _ := json.Marshal(d)
	var decoded map[string]any
	json.Unmarshal(b, &decoded)
	recipes := decoded["recipes"].(map[string]any)
	entry := recipes["_helper"].(map[string]any)
	if entry["private"] != true {
		t.Fatalf("expected _helper to be marked private, got %#v", entry)
	}
}

func TestDumpRecursesIntoSubmodules(t *testing.T) {
	root := buildJustfile(t, "mod docker\n")
	child := buildJustfile(t, "build:\n    echo building\n")
	root.Submodules["docker"] = child
	root.SubmoduleOrder = append(root.SubmoduleOrder, "docker")

	d := Dump(root)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	modules := decoded["modules"].(map[string]any)
	docker, ok := modules["docker"].(map[string]any)
	if !ok {
		t.Fatalf("modules = %#v, want a \"docker\" entry", decoded["modules"])
	}
	if docker["first"] != "build" {
		t.Fatalf("docker module's first recipe = %v, want %q", docker["first"], "build")
	}
}

func TestDumpInterpolationFragmentShape(t *testing.T) {
	jf := buildJustfile(t, "greet name:\n    echo {{ name }}\n")
	d := Dump(jf)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	recipes := decoded["recipes"].(map[string]any)
	greet := recipes["greet"].(map[string]any)
	body := greet["body"].([]any)
	if len(body) != 1 {
		t.Fatalf("body = %#v, want one line", body)
	}
	line := body[0].([]any)
	var sawInterpolation bool
	for _, frag := range line {
		if pair, ok := frag.([]any); ok && len(pair) == 2 && pair[0] == "interpolation" {
			sawInterpolation = true
		}
	}
	if !sawInterpolation {
		t.Fatalf("body line = %#v, want an [\"interpolation\", ...] fragment", line)
	}
}
