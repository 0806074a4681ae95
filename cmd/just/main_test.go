package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mtlynch/gojust/internal/justfile"
)

func TestExtractSetFlags(t *testing.T) {
	tests := []struct {
		name      string
		argv      []string
		overrides map[string]string
		rest      []string
	}{
		{
			name:      "no set flags",
			argv:      []string{"build", "--verbose"},
			overrides: map[string]string{},
			rest:      []string{"build", "--verbose"},
		},
		{
			name:      "single set pair",
			argv:      []string{"--set", "env", "prod", "deploy"},
			overrides: map[string]string{"env": "prod"},
			rest:      []string{"deploy"},
		},
		{
			name:      "repeated set pairs",
			argv:      []string{"--set", "a", "1", "--set", "b", "2", "run"},
			overrides: map[string]string{"a": "1", "b": "2"},
			rest:      []string{"run"},
		},
		{
			name:      "trailing incomplete set is left alone",
			argv:      []string{"build", "--set", "onlykey"},
			overrides: map[string]string{},
			rest:      []string{"build", "--set", "onlykey"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overrides, rest := extractSetFlags(tt.argv)
			if len(overrides) != len(tt.overrides) {
				t.Fatalf("overrides = %v, want %v", overrides, tt.overrides)
			}
			for k, v := range tt.overrides {
				if overrides[k] != v {
					t.Errorf("overrides[%q] = %q, want %q", k, overrides[k], v)
				}
			}
			if !reflect.DeepEqual(rest, tt.rest) {
				t.Errorf("rest = %v, want %v", rest, tt.rest)
			}
		})
	}
}

func TestLocateJustfileExplicitPath(t *testing.T) {
	g := &globalFlags{justfilePath: "/some/explicit/justfile"}
	path, err := locateJustfile(g)
	if err != nil {
		t.Fatalf("locateJustfile: %v", err)
	}
	if path != "/some/explicit/justfile" {
		t.Errorf("path = %q, want explicit path unchanged", path)
	}
}

func TestLocateJustfileWalksUpToCeiling(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	justfilePath := filepath.Join(root, "justfile")
	if err := os.WriteFile(justfilePath, []byte("default:\n    echo hi\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldwd)
	if err := os.Chdir(child); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	g := &globalFlags{ceiling: root}
	path, err := locateJustfile(g)
	if err != nil {
		t.Fatalf("locateJustfile: %v", err)
	}
	if path != justfilePath {
		t.Errorf("path = %q, want %q", path, justfilePath)
	}
}

func TestLocateJustfileNoneFound(t *testing.T) {
	root := t.TempDir()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldwd)
	if err := os.Chdir(root); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	g := &globalFlags{ceiling: root}
	if _, err := locateJustfile(g); err == nil {
		t.Fatal("expected an error when no justfile exists up to the ceiling")
	}
}

func TestApplyOverrideSettingsCLIWins(t *testing.T) {
	jf := justfile.New("test.just")
	jf.Settings.Shell = []string{"bash", "-c"}
	jf.Settings.DotenvFilename = ".env.justfile"

	g := &globalFlags{
		shell:          "zsh",
		shellArgs:      []string{"-eu"},
		dotenvPath:     "/etc/env",
		dotenvFilename: ".env.override",
		quiet:          true,
	}
	applyOverrideSettings(jf, g)

	wantShell := []string{"zsh", "-eu"}
	if !reflect.DeepEqual(jf.Settings.Shell, wantShell) {
		t.Errorf("Shell = %v, want %v", jf.Settings.Shell, wantShell)
	}
	if jf.Settings.DotenvPath != "/etc/env" {
		t.Errorf("DotenvPath = %q, want /etc/env", jf.Settings.DotenvPath)
	}
	if !jf.Settings.DotenvLoad {
		t.Error("DotenvLoad = false, want true once --dotenv-path is set")
	}
	if jf.Settings.DotenvFilename != ".env.override" {
		t.Errorf("DotenvFilename = %q, want .env.override", jf.Settings.DotenvFilename)
	}
	if !jf.Settings.Quiet {
		t.Error("Quiet = false, want true")
	}
}

func TestApplyOverrideSettingsLeavesJustfileDefaultsWhenUnset(t *testing.T) {
	jf := justfile.New("test.just")
	jf.Settings.Shell = []string{"bash", "-c"}

	applyOverrideSettings(jf, &globalFlags{})

	if !reflect.DeepEqual(jf.Settings.Shell, []string{"bash", "-c"}) {
		t.Errorf("Shell = %v, want unchanged bash -c", jf.Settings.Shell)
	}
	if jf.Settings.Quiet {
		t.Error("Quiet = true, want unchanged false")
	}
}

func TestRunRecipeExists(t *testing.T) {
	jf := justfile.New("test.just")
	jf.Recipes["build"] = nil
	jf.RecipeOrder = append(jf.RecipeOrder, "build")

	if code := runRecipeExists(jf, "build"); code != 0 {
		t.Errorf("runRecipeExists(build) = %d, want 0", code)
	}
	if code := runRecipeExists(jf, "missing"); code != 1 {
		t.Errorf("runRecipeExists(missing) = %d, want 1", code)
	}
}

func TestSourceFor(t *testing.T) {
	if got := sourceFor(""); got != "" {
		t.Errorf("sourceFor(\"\") = %q, want empty", got)
	}
	if got := sourceFor("/nonexistent/path/justfile"); got != "" {
		t.Errorf("sourceFor(nonexistent) = %q, want empty", got)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "justfile")
	if err := os.WriteFile(path, []byte("default:\n    echo hi\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := sourceFor(path); got != "default:\n    echo hi\n" {
		t.Errorf("sourceFor(path) = %q, want file contents", got)
	}
}
