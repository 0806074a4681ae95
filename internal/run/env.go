package run

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mtlynch/gojust/internal/eval"
	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/justfile"
)

// buildEnvironment implements spec.md §4.7's six-step environment overlay:
// process env, exported module assignments, exported parameter bindings
// (when `set export` is on), `[env(...)]` attribute bindings, `unexport`
// removals, then a dotenv merge that never overrides an already-set name.
//
// Grounded on the teacher's plain os.Environ()-passthrough pattern (there:
// generated programs read process env directly with no overlay machinery);
// the overlay steps themselves have no teacher analogue and are built
// straight from spec.md §4.7.
func buildEnvironment(jf *justfile.Justfile, ev *eval.Evaluator, recipe *ast.Recipe, bound map[string]string) ([]string, error) {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	for _, name := range jf.AssignmentOrder {
		asn := jf.Assignments[name]
		if !asn.Exported {
			continue
		}
		v, err := ev.EvalAssignment(name)
		if err != nil {
			return nil, err
		}
		env[name] = v
	}

	if jf.Settings.Export {
		for name, v := range bound {
			env[name] = v
		}
	}

	for _, attr := range recipe.Attributes {
		if attr.Name != "env" {
			continue
		}
		for i := 0; i+1 < len(attr.Args); i += 2 {
			env[attr.Args[i]] = attr.Args[i+1]
		}
	}

	for _, name := range jf.Unexports {
		delete(env, name)
	}

	dotenv, err := loadDotenv(jf)
	if err != nil {
		return nil, err
	}
	for k, v := range dotenv {
		if _, exists := env[k]; !exists {
			env[k] = v
		}
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out, nil
}

// loadDotenv reads the module's dotenv file, if `set dotenv-load` or
// `set dotenv-path` asks for one. A missing file is silent unless
// `set dotenv-required` is set.
func loadDotenv(jf *justfile.Justfile) (map[string]string, error) {
	if !jf.Settings.DotenvLoad && jf.Settings.DotenvPath == "" {
		return nil, nil
	}
	path := jf.Settings.DotenvPath
	if path == "" {
		name := jf.Settings.DotenvFilename
		if name == "" {
			name = ".env"
		}
		path = filepath.Join(filepath.Dir(jf.ModulePath), name)
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if jf.Settings.DotenvRequired {
			return nil, fmt.Errorf("reading required dotenv file %q: %w", path, err)
		}
		return nil, nil
	}
	return vals, nil
}
